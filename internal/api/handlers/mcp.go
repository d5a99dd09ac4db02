package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/narvanalabs/ops-dashboard/internal/integrations/jenkins"
	"github.com/narvanalabs/ops-dashboard/internal/mcp"
	"github.com/narvanalabs/ops-dashboard/internal/notify"
	"github.com/narvanalabs/ops-dashboard/pkg/logger"
)

// Dispatcher routes MCP queries to the CI server.
type Dispatcher interface {
	Dispatch(ctx context.Context, req mcp.Request) (json.RawMessage, error)
	Stats() mcp.Stats
}

// MCPHandler handles Jenkins MCP queries.
type MCPHandler struct {
	dispatcher Dispatcher
	notes      *notify.Queue
	logger     *logger.Logger
}

// NewMCPHandler creates a new MCP handler.
func NewMCPHandler(d Dispatcher, notes *notify.Queue, log *logger.Logger) *MCPHandler {
	return &MCPHandler{
		dispatcher: d,
		notes:      notes,
		logger:     log.WithComponent("mcp"),
	}
}

// Query handles POST /api/jenkins/mcp. Every failure, including a body that
// does not decode, yields the same 500 envelope.
func (h *MCPHandler) Query(w http.ResponseWriter, r *http.Request) {
	log := h.logger.WithContext(r.Context())

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("MCP query panicked", "panic", rec)
			h.fail(w)
		}
	}()

	var req mcp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode MCP request", "error", err)
		h.fail(w)
		return
	}

	data, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		attrs := []any{"error", err, "context", req.Context, "job", req.JobName()}
		var upstreamErr *jenkins.UpstreamError
		if errors.As(err, &upstreamErr) {
			attrs = append(attrs, "upstream_status", upstreamErr.StatusCode, "upstream_url", upstreamErr.URL)
		}
		log.Error("MCP query failed", attrs...)
		h.fail(w)
		return
	}

	log.Info("MCP query served", "context", req.Context, "job", req.JobName())
	WriteJSON(w, http.StatusOK, mcp.Response{Data: data})
}

func (h *MCPHandler) fail(w http.ResponseWriter) {
	if h.notes != nil {
		h.notes.Error("Jenkins query failed", mcp.ErrorMessage)
	}
	WriteJSON(w, http.StatusInternalServerError, mcp.ErrorResponse{Error: mcp.ErrorMessage})
}

// ContextsResponse lists the supported context tags.
type ContextsResponse struct {
	Contexts []mcp.Context `json:"contexts"`
}

// Contexts handles GET /api/mcp/contexts.
func (h *MCPHandler) Contexts(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ContextsResponse{Contexts: mcp.Contexts()})
}

// Stats handles GET /api/mcp/stats.
func (h *MCPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.dispatcher.Stats())
}
