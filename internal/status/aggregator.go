// Package status builds the service status list shown by the dashboard's
// diagnostics view from the OpenShift, GitHub and MCP collaborators.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/narvanalabs/ops-dashboard/internal/integrations/github"
	"github.com/narvanalabs/ops-dashboard/internal/integrations/openshift"
	"github.com/narvanalabs/ops-dashboard/internal/mcp"
)

// Level is the coarse state of a service.
type Level string

const (
	LevelHealthy Level = "healthy"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Service names, in display order.
const (
	NameOpenShift = "OpenShift Cluster"
	NameGitHub    = "GitHub Integration"
	NameMCP       = "Model Context Protocol"
)

// ServiceStatus is one entry of the diagnostics list. Metric values are
// numbers or preformatted strings.
type ServiceStatus struct {
	Name      string         `json:"name"`
	Status    Level          `json:"status"`
	Details   string         `json:"details"`
	Timestamp string         `json:"timestamp"`
	Metrics   map[string]any `json:"metrics,omitempty"`
}

// StatsSource exposes dispatcher activity.
type StatsSource interface {
	Stats() mcp.Stats
}

// Options configure the queries sent to the collaborators.
type Options struct {
	Namespace string
	Owner     string
	Repo      string
}

// Failure records a collaborator error encountered during Collect.
type Failure struct {
	Service string
	Err     error
}

// Aggregator collects service statuses.
type Aggregator struct {
	cluster openshift.StatusFetcher
	github  github.StatusFetcher
	mcp     StatsSource
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewAggregator creates an aggregator over the given collaborators.
func NewAggregator(cluster openshift.StatusFetcher, gh github.StatusFetcher, stats StatsSource, opts Options, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Namespace == "" {
		opts.Namespace = "default"
	}
	return &Aggregator{
		cluster: cluster,
		github:  gh,
		mcp:     stats,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// Collect returns the OpenShift, GitHub and MCP entries in that order, all
// stamped with the same time. Collaborator errors degrade the matching entry
// and are returned alongside the list.
func (a *Aggregator) Collect(ctx context.Context) ([]ServiceStatus, []Failure) {
	timestamp := a.now().UTC().Format(time.RFC3339)
	var failures []Failure

	cluster, err := a.cluster.FetchStatus(ctx, openshift.ClusterQuery{
		Query:        "status",
		Context:      "health",
		Namespace:    a.opts.Namespace,
		ResourceType: "cluster",
	})
	if err != nil {
		a.logger.Error("failed to fetch cluster status", "error", err)
		failures = append(failures, Failure{Service: NameOpenShift, Err: err})
	}

	gh, err := a.github.FetchStatus(ctx, github.SearchQuery{
		Query: "status",
		Type:  "integration",
		Owner: a.opts.Owner,
		Repo:  a.opts.Repo,
	})
	if err != nil {
		a.logger.Error("failed to fetch github status", "error", err)
		failures = append(failures, Failure{Service: NameGitHub, Err: err})
	}

	return []ServiceStatus{
		clusterEntry(cluster, timestamp),
		githubEntry(gh, timestamp),
		mcpEntry(a.mcp.Stats(), timestamp),
	}, failures
}

func clusterEntry(s *openshift.ClusterStatus, timestamp string) ServiceStatus {
	if s == nil {
		s = &openshift.ClusterStatus{}
	}

	level := LevelError
	if s.Healthy {
		level = LevelHealthy
	}

	return ServiceStatus{
		Name:      NameOpenShift,
		Status:    level,
		Details:   orDefault(s.Message, "Cluster status check completed"),
		Timestamp: timestamp,
		Metrics: map[string]any{
			"Active Pods": s.Pods.Running,
			"Deployments": s.Deployments.Total,
			"Services":    s.Services.Available,
		},
	}
}

func githubEntry(s *github.Status, timestamp string) ServiceStatus {
	if s == nil {
		s = &github.Status{}
	}

	level := LevelWarning
	if s.Connected {
		level = LevelHealthy
	}

	return ServiceStatus{
		Name:      NameGitHub,
		Status:    level,
		Details:   orDefault(s.Message, "Integration check completed"),
		Timestamp: timestamp,
		Metrics: map[string]any{
			"Active Webhooks": s.Webhooks.Active,
			"Recent Commits":  s.Activity.Commits,
			"Open PRs":        s.PullRequests.Open,
		},
	}
}

func mcpEntry(stats mcp.Stats, timestamp string) ServiceStatus {
	return ServiceStatus{
		Name:      NameMCP,
		Status:    LevelHealthy,
		Details:   "MCP Service is running",
		Timestamp: timestamp,
		Metrics: map[string]any{
			"Active Contexts": stats.ActiveContexts,
			"Query Latency":   fmt.Sprintf("%dms", stats.LastLatency.Milliseconds()),
			"Queries Served":  stats.Total(),
		},
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
