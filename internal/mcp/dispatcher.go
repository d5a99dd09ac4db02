// Package mcp implements the Model Context Protocol query dispatcher that
// routes a context tag to a single upstream CI call.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Context selects which upstream query the dispatcher performs.
type Context string

// Supported context tags.
const (
	ContextBuilds      Context = "builds"
	ContextPipeline    Context = "pipeline"
	ContextTestResults Context = "test_results"
	ContextHealth      Context = "health"
)

// ErrorMessage is the only failure detail ever returned to callers.
const ErrorMessage = "Failed to process Jenkins MCP query"

var (
	// ErrMissingCredential is returned when the upstream token is not configured.
	ErrMissingCredential = errors.New("upstream credential not configured")
	// ErrUnsupportedContext is returned for tags outside the dispatch table.
	ErrUnsupportedContext = errors.New("unsupported MCP context")
)

// Contexts returns the supported context tags in dispatch-table order.
func Contexts() []Context {
	return []Context{ContextBuilds, ContextPipeline, ContextTestResults, ContextHealth}
}

// Request is an inbound MCP query.
type Request struct {
	Context    string         `json:"context"`
	Query      string         `json:"query"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// JobName returns parameters.jobName when it is a string, or "".
func (r *Request) JobName() string {
	if r.Parameters == nil {
		return ""
	}
	name, _ := r.Parameters["jobName"].(string)
	return name
}

// Response is the success envelope.
type Response struct {
	Data json.RawMessage `json:"data"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Upstream is the CI server surface the dispatcher needs.
type Upstream interface {
	Configured() bool
	Builds(ctx context.Context, job string) (json.RawMessage, error)
	PipelineRuns(ctx context.Context, job string) (json.RawMessage, error)
	TestReport(ctx context.Context, job string) (json.RawMessage, error)
	HealthReport(ctx context.Context, job string) (json.RawMessage, error)
}

// Stats summarizes dispatcher activity.
type Stats struct {
	ActiveContexts int               `json:"active_contexts"`
	Served         map[Context]int64 `json:"served"`
	Failed         int64             `json:"failed"`
	LastLatency    time.Duration     `json:"last_latency"`
}

// Total returns the number of successfully served queries.
func (s Stats) Total() int64 {
	var n int64
	for _, c := range s.Served {
		n += c
	}
	return n
}

// Dispatcher maps context tags to upstream calls.
type Dispatcher struct {
	upstream Upstream
	logger   *slog.Logger

	mu          sync.Mutex
	served      map[Context]int64
	failed      int64
	lastLatency time.Duration
}

// NewDispatcher creates a dispatcher over the given upstream.
func NewDispatcher(upstream Upstream, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		upstream: upstream,
		logger:   logger,
		served:   make(map[Context]int64),
	}
}

// Dispatch performs exactly one upstream fetch for req and returns the
// pass-through JSON. The credential check happens before the tag is looked at.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()

	data, err := d.dispatch(ctx, req)

	d.record(Context(req.Context), time.Since(start), err)
	return data, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) (json.RawMessage, error) {
	if !d.upstream.Configured() {
		return nil, ErrMissingCredential
	}

	job := req.JobName()
	d.logger.Debug("dispatching MCP query", "context", req.Context, "job", job, "query", req.Query)

	switch Context(req.Context) {
	case ContextBuilds:
		return d.upstream.Builds(ctx, job)
	case ContextPipeline:
		return d.upstream.PipelineRuns(ctx, job)
	case ContextTestResults:
		return d.upstream.TestReport(ctx, job)
	case ContextHealth:
		return d.upstream.HealthReport(ctx, job)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContext, req.Context)
	}
}

func (d *Dispatcher) record(c Context, latency time.Duration, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastLatency = latency
	if err != nil {
		d.failed++
		return
	}
	d.served[c]++
}

// Stats returns a snapshot of dispatcher activity.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	served := make(map[Context]int64, len(d.served))
	for k, v := range d.served {
		served[k] = v
	}

	return Stats{
		ActiveContexts: len(Contexts()),
		Served:         served,
		Failed:         d.failed,
		LastLatency:    d.lastLatency,
	}
}
