package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hunthawk-systems/hunthawk/internal/httputil"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/models"
	"github.com/hunthawk-systems/hunthawk/internal/repository"
	"github.com/hunthawk-systems/hunthawk/internal/service"
	"github.com/hunthawk-systems/hunthawk/internal/tasks"
)

type Handler struct {
	service *service.Service
	log     *logging.Logger
}

func NewHandler(svc *service.Service, log *logging.Logger) *Handler {
	return &Handler{service: svc, log: log}
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// RunCampaign handles POST /api/v1/campaigns/run. An optional "date" body
// field (YYYY-MM-DD) runs the campaign for a historical date.
func (h *Handler) RunCampaign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	taskID, err := h.service.RunCampaignAsync(r.Context(), date)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskAlreadyRunning) {
			httputil.WriteError(w, http.StatusConflict, "campaign already running")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to launch campaign", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to launch campaign")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"task_id":  taskID,
		"campaign": models.DailyCampaignName(date),
	})
}

// RegenerateStats handles POST /api/v1/analytics/{id}/regenerate
func (h *Handler) RegenerateStats(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "analytic id must be an integer")
		return
	}

	taskID, err := h.service.RegenerateAsync(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAnalyticNotFound):
			httputil.WriteError(w, http.StatusNotFound, "analytic not found")
		case errors.Is(err, tasks.ErrTaskAlreadyRunning):
			httputil.WriteError(w, http.StatusConflict, "regeneration already running")
		default:
			h.log.ErrorContext(r.Context(), "failed to launch regeneration", "analytic_id", id, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to launch regeneration")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

// GetAnalytic handles GET /api/v1/analytics/{id}
func (h *Handler) GetAnalytic(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "analytic id must be an integer")
		return
	}

	a, err := h.service.GetAnalytic(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAnalyticNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "analytic not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to get analytic", "analytic_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get analytic")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// CreateAnalytic handles POST /api/v1/analytics
func (h *Handler) CreateAnalytic(w http.ResponseWriter, r *http.Request) {
	var a models.Analytic
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.CreateAnalytic(r.Context(), &a); err != nil {
		switch {
		case errors.Is(err, models.ErrEmptyQuery):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrAnalyticExists):
			httputil.WriteError(w, http.StatusConflict, "analytic name already exists")
		default:
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

// UpdateAnalyticQuery handles PUT /api/v1/analytics/{id}/query
func (h *Handler) UpdateAnalyticQuery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "analytic id must be an integer")
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.UpdateQuery(r.Context(), id, req.Query)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAnalyticNotFound):
			httputil.WriteError(w, http.StatusNotFound, "analytic not found")
		case errors.Is(err, models.ErrEmptyQuery):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			h.log.ErrorContext(r.Context(), "failed to update query", "analytic_id", id, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to update query")
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// TransitionAnalytic handles PUT /api/v1/analytics/{id}/status
func (h *Handler) TransitionAnalytic(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "analytic id must be an integer")
		return
	}

	var req struct {
		Status models.AnalyticStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var a *models.Analytic
	switch req.Status {
	case models.StatusPublished:
		a, err = h.service.Publish(r.Context(), id)
	case models.StatusArchived:
		a, err = h.service.Archive(r.Context(), id)
	case models.StatusPending:
		a, err = h.service.MarkPending(r.Context(), id)
	default:
		httputil.WriteError(w, http.StatusBadRequest, "status must be PUB, ARCH or PENDING")
		return
	}
	if err != nil {
		if errors.Is(err, repository.ErrAnalyticNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "analytic not found")
			return
		}
		h.log.ErrorContext(r.Context(), "status transition failed", "analytic_id", id, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "status transition failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

// ListTasks handles GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.ListTasks(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list tasks", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": statuses})
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to get task", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// CancelTask handles DELETE /api/v1/tasks/{id}
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelTask(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to cancel task", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to cancel task")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Purge handles POST /api/v1/purge
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Purge(r.Context()); err != nil {
		h.log.ErrorContext(r.Context(), "purge failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "purge failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
