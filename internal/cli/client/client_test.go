package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

func TestRunCampaign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/campaigns/run", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-08-20", body["date"])

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(LaunchResponse{TaskID: "t-1", Campaign: "daily_cron_2026-08-20"})
	}))
	defer srv.Close()

	resp, err := New(srv.URL).RunCampaign("2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, "t-1", resp.TaskID)
	assert.Equal(t, "daily_cron_2026-08-20", resp.Campaign)
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "campaign already running"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).RunCampaign("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign already running")
	assert.Contains(t, err.Error(), "409")
}

func TestListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []models.TaskStatus{{Name: "daily_campaign", TaskID: "t-2", Progress: 40}},
		})
	}))
	defer srv.Close()

	statuses, err := New(srv.URL).ListTasks()
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "t-2", statuses[0].TaskID)
	assert.Equal(t, 40.0, statuses[0].Progress)
}

func TestCancelTaskNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
	}))
	defer srv.Close()

	assert.NoError(t, New(srv.URL).CancelTask("t-3"))
}
