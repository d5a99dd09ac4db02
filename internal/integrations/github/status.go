// Package github reports GitHub integration status for the dashboard, either
// from a fixed mock or from the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// recentWindow bounds the "recent commits" metric.
const recentWindow = 7 * 24 * time.Hour

// SearchQuery selects what integration status to fetch.
type SearchQuery struct {
	Query string `json:"query"`
	Type  string `json:"type"`
	Repo  string `json:"repo,omitempty"`
	Owner string `json:"owner,omitempty"`
}

// WebhookCounts counts repository webhooks.
type WebhookCounts struct {
	Active int `json:"active"`
	Total  int `json:"total"`
}

// Activity summarizes recent repository activity.
type Activity struct {
	Commits  int `json:"commits"`
	Branches int `json:"branches"`
}

// PullRequestCounts counts pull requests.
type PullRequestCounts struct {
	Open  int `json:"open"`
	Total int `json:"total"`
}

// Status is the fixed-shape status object consumed by the dashboard.
type Status struct {
	Connected    bool              `json:"connected"`
	Message      string            `json:"message"`
	Webhooks     WebhookCounts     `json:"webhooks"`
	Activity     Activity          `json:"activity"`
	PullRequests PullRequestCounts `json:"pullRequests"`
}

// StatusFetcher fetches GitHub integration status.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, q SearchQuery) (*Status, error)
}

// MockFetcher returns a fixed, connected integration status.
type MockFetcher struct{}

// NewMockFetcher creates a mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// FetchStatus returns the demonstration status regardless of the query.
func (m *MockFetcher) FetchStatus(ctx context.Context, q SearchQuery) (*Status, error) {
	return &Status{
		Connected: true,
		Message:   "GitHub integration active",
		Webhooks: WebhookCounts{
			Active: 5,
			Total:  5,
		},
		Activity: Activity{
			Commits:  128,
			Branches: 4,
		},
		PullRequests: PullRequestCounts{
			Open:  3,
			Total: 12,
		},
	}, nil
}

// ErrNoRepository is returned when neither the query nor the fetcher names a repository.
var ErrNoRepository = errors.New("github owner and repo are required")

// LiveFetcher builds a Status from the GitHub REST API.
type LiveFetcher struct {
	client *Client
	owner  string
	repo   string
	logger *slog.Logger
	now    func() time.Time
}

// NewLiveFetcher creates a fetcher for owner/repo. The query may override both.
func NewLiveFetcher(client *Client, owner, repo string, logger *slog.Logger) *LiveFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveFetcher{
		client: client,
		owner:  owner,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// FetchStatus queries the repository. Webhooks need admin rights, so a failure
// there is reported in the message rather than failing the whole status.
func (f *LiveFetcher) FetchStatus(ctx context.Context, q SearchQuery) (*Status, error) {
	owner, repo := f.owner, f.repo
	if q.Owner != "" {
		owner = q.Owner
	}
	if q.Repo != "" {
		repo = q.Repo
	}
	if owner == "" || repo == "" {
		return nil, ErrNoRepository
	}

	if _, err := f.client.GetRepository(ctx, owner, repo); err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, err)
	}

	status := &Status{
		Connected: true,
		Message:   "GitHub integration active",
	}

	hooks, err := f.client.ListHooks(ctx, owner, repo)
	if err != nil {
		f.logger.Warn("failed to list webhooks", "owner", owner, "repo", repo, "error", err)
		status.Message = "GitHub integration active (webhooks unavailable)"
	} else {
		status.Webhooks.Total = len(hooks)
		for _, h := range hooks {
			if h.Active {
				status.Webhooks.Active++
			}
		}
	}

	if status.Activity.Commits, err = f.client.CountCommitsSince(ctx, owner, repo, f.now().Add(-recentWindow)); err != nil {
		return nil, fmt.Errorf("counting commits: %w", err)
	}
	if status.Activity.Branches, err = f.client.CountBranches(ctx, owner, repo); err != nil {
		return nil, fmt.Errorf("counting branches: %w", err)
	}
	if status.PullRequests.Open, err = f.client.CountPullRequests(ctx, owner, repo, "open"); err != nil {
		return nil, fmt.Errorf("counting open pull requests: %w", err)
	}
	if status.PullRequests.Total, err = f.client.CountPullRequests(ctx, owner, repo, "all"); err != nil {
		return nil, fmt.Errorf("counting pull requests: %w", err)
	}

	return status, nil
}
