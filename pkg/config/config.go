// Package config provides environment-based configuration for the dashboard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Status collaborator modes.
const (
	StatusModeMock = "mock"
	StatusModeLive = "live"
)

// Config holds all configuration for the dashboard server.
type Config struct {
	// Server configuration
	APIHost         string        `yaml:"api_host"`
	APIPort         int           `yaml:"api_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Jenkins   JenkinsConfig   `yaml:"jenkins"`
	Status    StatusConfig    `yaml:"status"`
	OpenShift OpenShiftConfig `yaml:"openshift"`
	GitHub    GitHubConfig    `yaml:"github"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// JenkinsConfig holds the upstream CI server settings.
type JenkinsConfig struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	// APIToken is not required at startup. Every query fails while it is empty.
	APIToken string `yaml:"api_token"`
	// Timeout of zero leaves outbound calls unbounded.
	Timeout time.Duration `yaml:"timeout"`
}

// StatusConfig selects how the OpenShift and GitHub collaborators are backed.
type StatusConfig struct {
	Mode string `yaml:"mode"`
}

// OpenShiftConfig holds cluster access settings for live mode.
type OpenShiftConfig struct {
	Namespace  string `yaml:"namespace"`
	Kubeconfig string `yaml:"kubeconfig"`
}

// GitHubConfig holds GitHub access settings for live mode.
type GitHubConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`

	// GitHub App credentials, used when Token is empty.
	AppID          int64  `yaml:"app_id"`
	AppPrivateKey  string `yaml:"app_private_key"`
	InstallationID int64  `yaml:"installation_id"`
}

// NotifyConfig holds notification queue settings.
type NotifyConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
	Capacity int           `yaml:"capacity"`
}

// Load reads configuration from the optional DASHBOARD_CONFIG file and then
// from environment variables. Environment values win over the file.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration from the environment without validation.
// Useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		APIHost:         "0.0.0.0",
		APIPort:         3000,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "json",
		Jenkins: JenkinsConfig{
			URL:  "http://localhost:8080",
			User: "admin",
		},
		Status: StatusConfig{
			Mode: StatusModeMock,
		},
		OpenShift: OpenShiftConfig{
			Namespace: "default",
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Notify: NotifyConfig{
			Lifetime: 3 * time.Second,
			Capacity: 20,
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIHost = getEnv("API_HOST", c.APIHost)
	c.APIPort = getIntEnv("API_PORT", c.APIPort)
	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.Jenkins.URL = getEnv("JENKINS_URL", c.Jenkins.URL)
	c.Jenkins.User = getEnv("JENKINS_USER", c.Jenkins.User)
	c.Jenkins.APIToken = getEnv("JENKINS_API_TOKEN", c.Jenkins.APIToken)
	c.Jenkins.Timeout = getDurationEnv("JENKINS_TIMEOUT", c.Jenkins.Timeout)

	c.Status.Mode = strings.ToLower(getEnv("STATUS_MODE", c.Status.Mode))

	c.OpenShift.Namespace = getEnv("OPENSHIFT_NAMESPACE", c.OpenShift.Namespace)
	c.OpenShift.Kubeconfig = getEnv("KUBECONFIG", c.OpenShift.Kubeconfig)

	c.GitHub.APIURL = getEnv("GITHUB_API_URL", c.GitHub.APIURL)
	c.GitHub.Token = getEnv("GITHUB_TOKEN", c.GitHub.Token)
	c.GitHub.Owner = getEnv("GITHUB_OWNER", c.GitHub.Owner)
	c.GitHub.Repo = getEnv("GITHUB_REPO", c.GitHub.Repo)
	c.GitHub.AppID = getInt64Env("GITHUB_APP_ID", c.GitHub.AppID)
	c.GitHub.AppPrivateKey = getEnv("GITHUB_APP_PRIVATE_KEY", c.GitHub.AppPrivateKey)
	c.GitHub.InstallationID = getInt64Env("GITHUB_INSTALLATION_ID", c.GitHub.InstallationID)

	c.Notify.Lifetime = getDurationEnv("NOTIFY_LIFETIME", c.Notify.Lifetime)
	c.Notify.Capacity = getIntEnv("NOTIFY_CAPACITY", c.Notify.Capacity)
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535")
	}
	switch c.Status.Mode {
	case StatusModeMock, StatusModeLive:
	default:
		return fmt.Errorf("STATUS_MODE must be %q or %q, got %q", StatusModeMock, StatusModeLive, c.Status.Mode)
	}
	if c.Jenkins.Timeout < 0 {
		return fmt.Errorf("JENKINS_TIMEOUT must not be negative")
	}
	if c.Notify.Lifetime <= 0 {
		return fmt.Errorf("NOTIFY_LIFETIME must be positive")
	}
	if c.Notify.Capacity <= 0 {
		return fmt.Errorf("NOTIFY_CAPACITY must be positive")
	}
	if c.Status.Mode == StatusModeLive && c.GitHub.Token == "" && c.GitHub.AppID != 0 {
		if c.GitHub.AppPrivateKey == "" || c.GitHub.InstallationID == 0 {
			return fmt.Errorf("GITHUB_APP_PRIVATE_KEY and GITHUB_INSTALLATION_ID are required with GITHUB_APP_ID")
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
