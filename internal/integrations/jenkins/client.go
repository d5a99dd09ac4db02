// Package jenkins provides a read-only client for the Jenkins REST API.
package jenkins

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8080"

// DefaultUsername is paired with the API token in the Basic auth header.
const DefaultUsername = "admin"

// Upstream resource paths relative to /job/<name>.
const (
	buildsPath      = "/api/json?tree=builds[number,result,timestamp,duration,url,building]"
	runsPath        = "/wfapi/runs"
	testReportPath  = "/lastBuild/testReport/api/json"
	healthPath      = "/api/json?tree=healthReport[score,description]"
	maxErrorBodyLen = 512
)

var (
	// ErrMissingToken is returned before any network call when no API token is configured.
	ErrMissingToken = errors.New("jenkins API token not configured")
	// ErrUpstream wraps transport failures and non-2xx responses.
	ErrUpstream = errors.New("jenkins upstream error")
	// ErrParse wraps malformed JSON responses.
	ErrParse = errors.New("jenkins response parse error")
)

// UpstreamError describes a non-2xx response from Jenkins.
type UpstreamError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("jenkins returned status %d for %s", e.StatusCode, e.URL)
}

// Unwrap lets errors.Is match ErrUpstream.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// Config configures a Client.
type Config struct {
	BaseURL  string
	Username string
	APIToken string
	// Timeout of zero means no client-side timeout.
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a minimal Jenkins API client.
type Client struct {
	baseURL  string
	username string
	token    string
	hc       *http.Client
}

// NewClient creates a new Jenkins API client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	username := cfg.Username
	if username == "" {
		username = DefaultUsername
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:  baseURL,
		username: username,
		token:    cfg.APIToken,
		hc:       hc,
	}
}

// BaseURL returns the normalized Jenkins base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Configured reports whether an API token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

// Builds returns the raw builds array of a job.
func (c *Client) Builds(ctx context.Context, job string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.jobURL(job, buildsPath))
	if err != nil {
		return nil, err
	}
	return field(body, "builds")
}

// PipelineRuns returns the raw pipeline run list of a job.
func (c *Client) PipelineRuns(ctx context.Context, job string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.jobURL(job, runsPath))
	if err != nil {
		return nil, err
	}
	return whole(body)
}

// TestReport returns the raw test report of the job's last build.
func (c *Client) TestReport(ctx context.Context, job string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.jobURL(job, testReportPath))
	if err != nil {
		return nil, err
	}
	return whole(body)
}

// HealthReport returns the raw healthReport array of a job.
func (c *Client) HealthReport(ctx context.Context, job string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.jobURL(job, healthPath))
	if err != nil {
		return nil, err
	}
	return field(body, "healthReport")
}

// Ping checks that the Jenkins root API answers with valid JSON.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.get(ctx, c.baseURL+"/api/json")
	if err != nil {
		return err
	}
	_, err = whole(body)
	return err
}

// jobURL builds <base>/job/<job><suffix>. An empty job name is kept as is.
func (c *Client) jobURL(job, suffix string) string {
	return c.baseURL + "/job/" + url.PathEscape(job) + suffix
}

func (c *Client) authHeader() string {
	creds := c.username + ":" + c.token
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

func (c *Client) get(ctx context.Context, targetURL string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrorBodyLen {
			snippet = snippet[:maxErrorBodyLen]
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, URL: targetURL, Body: snippet}
	}

	return body, nil
}

func whole(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w: body is not valid JSON", ErrParse)
	}
	return json.RawMessage(trimmed), nil
}

// field returns the named member of a JSON object. A missing member, or a
// body that is not an object, yields JSON null.
func field(body []byte, name string) (json.RawMessage, error) {
	raw, err := whole(body)
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return json.RawMessage("null"), nil
	}

	value, ok := obj[name]
	if !ok {
		return json.RawMessage("null"), nil
	}
	return value, nil
}
