package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// Credentials authenticate the client. Token wins over App credentials.
type Credentials struct {
	Token          string
	AppID          int64
	PrivateKeyPEM  string
	InstallationID int64
}

// Client is a minimal GitHub API client.
type Client struct {
	hc     *http.Client
	apiURL string
	creds  Credentials

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// NewClient creates a new GitHub API client.
func NewClient(apiURL string, creds Credentials) *Client {
	apiURL = strings.TrimRight(apiURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
		apiURL: apiURL,
		creds:  creds,
	}
}

// token returns the bearer token for API calls, minting and caching an
// installation token when App credentials are configured.
func (c *Client) token(ctx context.Context) (string, error) {
	if c.creds.Token != "" {
		return c.creds.Token, nil
	}
	if c.creds.AppID == 0 {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.cachedToken, nil
	}

	token, expiry, err := c.GenerateInstallationToken(ctx, c.creds.AppID, c.creds.PrivateKeyPEM, c.creds.InstallationID)
	if err != nil {
		return "", err
	}
	c.cachedToken = token
	c.tokenExpiry = expiry
	return token, nil
}

// GenerateInstallationToken generates an access token for a specific installation.
func (c *Client) GenerateInstallationToken(ctx context.Context, appID int64, privateKeyPEM string, installationID int64) (string, time.Time, error) {
	// 1. Create JWT
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("parsing private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Add(-60 * time.Second).Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": fmt.Sprintf("%d", appID),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing jwt: %w", err)
	}

	// 2. Exchange JWT for installation token
	apiURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.apiURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, nil)
	if err != nil {
		return "", time.Time{}, err
	}

	req.Header.Set("Authorization", "Bearer "+signedToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", time.Time{}, fmt.Errorf("failed to get installation token: status %d", resp.StatusCode)
	}

	var tokenResp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	if tokenResp.ExpiresAt.IsZero() {
		tokenResp.ExpiresAt = now.Add(time.Hour)
	}
	return tokenResp.Token, tokenResp.ExpiresAt, nil
}

// getJSON performs an authenticated GET of path (relative to the API URL) and decodes into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// Hook is a repository webhook.
type Hook struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// ListHooks lists the webhooks of a repository. Requires admin access.
func (c *Client) ListHooks(ctx context.Context, owner, repo string) ([]Hook, error) {
	var hooks []Hook
	err := c.getJSON(ctx, repoPath(owner, repo, "/hooks"), url.Values{"per_page": {"100"}}, &hooks)
	return hooks, err
}

// CountCommitsSince counts commits on the default branch since the given time, up to 100.
func (c *Client) CountCommitsSince(ctx context.Context, owner, repo string, since time.Time) (int, error) {
	var commits []map[string]any
	query := url.Values{
		"since":    {since.UTC().Format(time.RFC3339)},
		"per_page": {"100"},
	}
	if err := c.getJSON(ctx, repoPath(owner, repo, "/commits"), query, &commits); err != nil {
		return 0, err
	}
	return len(commits), nil
}

// CountBranches counts repository branches, up to 100.
func (c *Client) CountBranches(ctx context.Context, owner, repo string) (int, error) {
	var branches []map[string]any
	if err := c.getJSON(ctx, repoPath(owner, repo, "/branches"), url.Values{"per_page": {"100"}}, &branches); err != nil {
		return 0, err
	}
	return len(branches), nil
}

// CountPullRequests counts pull requests in the given state ("open", "closed", "all"), up to 100.
func (c *Client) CountPullRequests(ctx context.Context, owner, repo, state string) (int, error) {
	var pulls []map[string]any
	query := url.Values{
		"state":    {state},
		"per_page": {"100"},
	}
	if err := c.getJSON(ctx, repoPath(owner, repo, "/pulls"), query, &pulls); err != nil {
		return 0, err
	}
	return len(pulls), nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (map[string]any, error) {
	var repository map[string]any
	if err := c.getJSON(ctx, repoPath(owner, repo, ""), nil, &repository); err != nil {
		return nil, err
	}
	return repository, nil
}

func repoPath(owner, repo, suffix string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + suffix
}
