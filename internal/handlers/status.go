package handlers

import (
	"net/http"

	"github.com/crucial707/hci-scheduler/internal/models"
	"github.com/crucial707/hci-scheduler/internal/scheduler"
)

// StatusHandler reports scheduler status.
type StatusHandler struct {
	Reporter *scheduler.Reporter
	// Daemon is optional; when set its lifecycle state is included.
	Daemon *scheduler.Daemon
}

type statusResponse struct {
	models.StatusSnapshot
	Daemon scheduler.DaemonState `json:"daemon,omitempty"`
}

// GetStatus always answers 200; back-end failures show as "degraded": true.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{StatusSnapshot: h.Reporter.Snapshot(r.Context())}
	if h.Daemon != nil {
		resp.Daemon = h.Daemon.State()
	}
	writeJSON(w, http.StatusOK, resp)
}
