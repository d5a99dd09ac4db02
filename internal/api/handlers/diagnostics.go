package handlers

import (
	"context"
	"net/http"

	"github.com/narvanalabs/ops-dashboard/internal/notify"
	"github.com/narvanalabs/ops-dashboard/internal/status"
	"github.com/narvanalabs/ops-dashboard/pkg/logger"
)

// Collector builds the service status list.
type Collector interface {
	Collect(ctx context.Context) ([]status.ServiceStatus, []status.Failure)
}

// DiagnosticsHandler serves the diagnostics view.
type DiagnosticsHandler struct {
	collector Collector
	notes     *notify.Queue
	logger    *logger.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(c Collector, notes *notify.Queue, log *logger.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		collector: c,
		notes:     notes,
		logger:    log.WithComponent("diagnostics"),
	}
}

// Get handles GET /v1/diagnostics. Collaborator failures still produce a
// full list; each one also raises a destructive notification.
func (h *DiagnosticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	list, failures := h.collector.Collect(r.Context())

	for _, f := range failures {
		h.logger.WithContext(r.Context()).Warn("service status check failed", "service", f.Service, "error", f.Err)
		if h.notes != nil {
			h.notes.Error(f.Service+" unavailable", "Failed to fetch service status")
		}
	}

	if list == nil {
		list = []status.ServiceStatus{}
	}
	WriteJSON(w, http.StatusOK, list)
}
