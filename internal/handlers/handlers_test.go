package handlers_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunthawk-systems/hunthawk/internal/campaign"
	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/connector"
	"github.com/hunthawk-systems/hunthawk/internal/events"
	"github.com/hunthawk-systems/hunthawk/internal/guard"
	"github.com/hunthawk-systems/hunthawk/internal/handlers"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/models"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
	"github.com/hunthawk-systems/hunthawk/internal/server"
	"github.com/hunthawk-systems/hunthawk/internal/service"
	"github.com/hunthawk-systems/hunthawk/internal/tasks"
)

type stubConnector struct{}

func (stubConnector) Query(ctx context.Context, a *models.Analytic, from, to time.Time) ([]connector.Row, error) {
	return []connector.Row{{Hostname: "hostA", EventCount: 1}}, nil
}

func setup(t *testing.T) (http.Handler, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	log := logging.New(slog.LevelError, "text")
	reg := connector.NewRegistry()
	reg.Register("edr", stubConnector{})
	cfg := config.CampaignConfig{
		MaxHostsThreshold: 1000,
		OnMaxHostsReached: config.MaxHostsPolicy{Threshold: 3},
		DataRetentionDays: 2,
	}
	g := guard.New(repo, cfg, events.Noop{}, log)
	tracker := tasks.NewMemoryTracker()
	runner := tasks.NewRunner(tracker, log)
	engine := campaign.NewEngine(repo, reg, g, events.Noop{}, tracker, cfg, log)
	svc := service.New(repo, reg, engine, runner, tracker, events.Noop{}, cfg, config.WorkflowConfig{DaysBeforeReview: 30}, log)

	h := handlers.NewHandler(svc, log)
	return server.NewRouter(h), repo
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, _ := setup(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateAnalytic(t *testing.T) {
	router, repo := setup(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/analytics",
		`{"name":"susp-ps","query":"EventType = 'Process'","connector":"edr","run_daily":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	a, err := repo.GetAnalyticByName(context.Background(), "susp-ps")
	require.NoError(t, err)
	assert.True(t, a.RunDaily)
}

func TestCreateAnalyticEmptyQuery(t *testing.T) {
	router, _ := setup(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/analytics",
		`{"name":"bad","connector":"edr"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnalyticNotFound(t *testing.T) {
	router, _ := setup(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/analytics/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/analytics/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCampaignAccepted(t *testing.T) {
	router, repo := setup(t)
	require.NoError(t, repo.CreateAnalytic(context.Background(), &models.Analytic{
		Name: "daily", Query: "q", Connector: "edr", RunDaily: true,
	}))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns/run", `{"date":"2026-08-28"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["task_id"])
	assert.Equal(t, "daily_cron_2026-08-28", resp["campaign"])
}

func TestRunCampaignBadDate(t *testing.T) {
	router, _ := setup(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/campaigns/run", `{"date":"28/08/2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegenerateNotFound(t *testing.T) {
	router, _ := setup(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/analytics/42/regenerate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerateAccepted(t *testing.T) {
	router, repo := setup(t)
	a := &models.Analytic{Name: "regen", Query: "q", Connector: "edr", RunDaily: true}
	require.NoError(t, repo.CreateAnalytic(context.Background(), a))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/analytics/1/regenerate", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	assert.Eventually(t, func() bool {
		return len(repo.Snapshots(a.ID)) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTransitionAnalytic(t *testing.T) {
	router, repo := setup(t)
	a := &models.Analytic{Name: "flow", Query: "q", Connector: "edr", RunDaily: true}
	require.NoError(t, repo.CreateAnalytic(context.Background(), a))

	rec := doJSON(t, router, http.MethodPut, "/api/v1/analytics/1/status", `{"status":"PUB"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/analytics/1/status", `{"status":"ARCH"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := repo.GetAnalytic(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, stored.Status)
	assert.False(t, stored.RunDaily)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/analytics/1/status", `{"status":"DRAFT"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "only PUB, ARCH and PENDING are API transitions")
}

func TestTaskLifecycleOverAPI(t *testing.T) {
	router, _ := setup(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []models.TaskStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Data)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/tasks/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/tasks/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurge(t *testing.T) {
	router, repo := setup(t)
	old := &models.Campaign{Name: "daily_cron_2020-01-01", DateStart: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.CreateCampaign(context.Background(), old))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/purge", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := repo.CampaignByName("daily_cron_2020-01-01")
	assert.False(t, ok)
}
