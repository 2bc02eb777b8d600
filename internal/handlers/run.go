package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crucial707/hci-scheduler/internal/apperr"
	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/scheduler"
)

// latestRunID is accepted wherever a run id is, meaning the most recently started run.
const latestRunID = "latest"

const runNotFound = "scan run not found"

// RunHandler starts, lists, inspects and cancels scan runs.
type RunHandler struct {
	Runner *scheduler.Runner
	Ledger *scheduler.Ledger
}

// TriggerRun starts an on-demand scan. 409 when a scan is already running.
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runner.RunNow(r.Context())
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": run.ID,
		"status": run.Status,
	})
}

// ListRuns returns run history newest first (query: limit, offset) with the total run count.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := h.Ledger.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	if list == nil {
		list = []models.ScanRun{}
	}
	total, err := h.Ledger.Count(r.Context())
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": total, "limit": limit, "offset": offset})
}

// GetRun returns one run with its log lines.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.lookup(r)
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunLogs returns only the status and log lines of a run.
func (h *RunHandler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	run, err := h.lookup(r)
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	lines := run.LogLines
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": run.ID,
		"status": run.Status,
		"lines":  lines,
	})
}

// CancelRun cancels a running scan. 409 when the run is not running.
func (h *RunHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := h.resolveID(r)
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	run, err := h.Runner.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, r, err, runNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RunHandler) lookup(r *http.Request) (*models.ScanRun, error) {
	id, err := h.resolveID(r)
	if err != nil {
		return nil, err
	}
	return h.Ledger.Get(r.Context(), id)
}

// resolveID maps the "latest" alias to a concrete run id.
func (h *RunHandler) resolveID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if id != latestRunID {
		return id, nil
	}
	latest, err := h.Ledger.Latest(r.Context())
	if err != nil {
		return "", err
	}
	if latest == nil {
		return "", apperr.ErrNotFound
	}
	return latest.ID, nil
}
