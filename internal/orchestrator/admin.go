package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/clipmetrics/syncengine/internal/model"
)

var storeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// LogReader is the narrow seam AdminHandler needs to serve /admin/sync/logs,
// implemented by *internal/synclog.Writer.
type LogReader interface {
	RecentLogs(ctx context.Context, storeID string, limit int) ([]model.SyncLogEntry, error)
}

// AdminHandler exposes the orchestrator's manual-trigger and observability
// surface as plain handler functions, for an external router to mount.
type AdminHandler struct {
	orchestrator *Orchestrator
	logs         LogReader
}

// NewAdminHandler builds an AdminHandler. logs may be nil, in which case
// HandleLogs always responds with an empty list.
func NewAdminHandler(o *Orchestrator, logs LogReader) *AdminHandler {
	return &AdminHandler{orchestrator: o, logs: logs}
}

// HandleRun triggers job=<all|user|video|refresh_tokens> against store_id
// (required for job=all, optional otherwise — omitted means "every eligible
// store"). Runs synchronously and returns the resulting summary.
func (h *AdminHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	job := JobName(r.URL.Query().Get("job"))
	if job == "" {
		job = JobAll
	}
	storeID := r.URL.Query().Get("store_id")
	if storeID != "" && !storeIDPattern.MatchString(storeID) {
		writeJSONError(w, http.StatusBadRequest, "invalid store_id")
		return
	}
	if job == JobAll && storeID == "" {
		writeJSONError(w, http.StatusBadRequest, "job=all requires store_id")
		return
	}

	summary, err := h.orchestrator.RunJob(r.Context(), job, storeID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// statusResponse is the GET /admin/sync/status body: schedule state plus a
// per-job snapshot of cron timing, in-flight status, and the last run.
type statusResponse struct {
	Enabled  bool                   `json:"enabled"`
	Timezone string                 `json:"timezone,omitempty"`
	Jobs     []statusJob            `json:"jobs"`
	LastRun  map[JobName]RunSummary `json:"last_run"`
}

type statusJob struct {
	Name     JobName   `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	Running  bool      `json:"running"`
}

// HandleStatus reports whether the cron scheduler is enabled, its timezone,
// each scheduled job's next fire time and in-flight status, and the most
// recent run summary recorded per job.
func (h *AdminHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.mu.Lock()
	lastRun := make(map[JobName]RunSummary, len(h.orchestrator.lastRun))
	for k, v := range h.orchestrator.lastRun {
		lastRun[k] = v
	}
	h.orchestrator.mu.Unlock()

	resp := statusResponse{LastRun: lastRun}
	if sched := h.orchestrator.scheduler; sched != nil {
		resp.Enabled = true
		resp.Timezone = sched.Timezone()
		for _, j := range sched.Jobs() {
			resp.Jobs = append(resp.Jobs, statusJob{Name: j.Name, Schedule: j.Schedule, NextRun: j.NextRun, Running: j.Running})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleLogs returns recent sync log entries, optionally scoped to store_id.
func (h *AdminHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	storeID := r.URL.Query().Get("store_id")
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	if h.logs == nil {
		writeJSON(w, http.StatusOK, []model.SyncLogEntry{})
		return
	}
	entries, err := h.logs.RecentLogs(r.Context(), storeID, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
