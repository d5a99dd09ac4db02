package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG", "")
	t.Setenv("JENKINS_URL", "")
	t.Setenv("JENKINS_API_TOKEN", "")
	t.Setenv("STATUS_MODE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Jenkins.URL != "http://localhost:8080" {
		t.Errorf("Jenkins.URL = %q, want local default", cfg.Jenkins.URL)
	}
	if cfg.Jenkins.User != "admin" {
		t.Errorf("Jenkins.User = %q, want admin", cfg.Jenkins.User)
	}
	if cfg.Jenkins.APIToken != "" {
		t.Errorf("Jenkins.APIToken = %q, want empty", cfg.Jenkins.APIToken)
	}
	if cfg.Status.Mode != StatusModeMock {
		t.Errorf("Status.Mode = %q, want mock", cfg.Status.Mode)
	}
	if cfg.Notify.Lifetime != 3*time.Second {
		t.Errorf("Notify.Lifetime = %v, want 3s", cfg.Notify.Lifetime)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.yaml")
	content := `
api_port: 9000
jenkins:
  url: http://ci.example.com
  api_token: from-file
  timeout: 5s
status:
  mode: live
openshift:
  namespace: ops
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DASHBOARD_CONFIG", path)
	t.Setenv("JENKINS_API_TOKEN", "from-env")
	t.Setenv("JENKINS_URL", "")
	t.Setenv("STATUS_MODE", "")
	t.Setenv("OPENSHIFT_NAMESPACE", "")
	t.Setenv("API_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", cfg.APIPort)
	}
	if cfg.Jenkins.URL != "http://ci.example.com" {
		t.Errorf("Jenkins.URL = %q", cfg.Jenkins.URL)
	}
	if cfg.Jenkins.APIToken != "from-env" {
		t.Errorf("Jenkins.APIToken = %q, env should win over file", cfg.Jenkins.APIToken)
	}
	if cfg.Jenkins.Timeout != 5*time.Second {
		t.Errorf("Jenkins.Timeout = %v, want 5s", cfg.Jenkins.Timeout)
	}
	if cfg.Status.Mode != StatusModeLive {
		t.Errorf("Status.Mode = %q, want live", cfg.Status.Mode)
	}
	if cfg.OpenShift.Namespace != "ops" {
		t.Errorf("OpenShift.Namespace = %q, want ops", cfg.OpenShift.Namespace)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad mode", func(c *Config) { c.Status.Mode = "remote" }, true},
		{"bad port", func(c *Config) { c.APIPort = 0 }, true},
		{"negative timeout", func(c *Config) { c.Jenkins.Timeout = -time.Second }, true},
		{"zero capacity", func(c *Config) { c.Notify.Capacity = 0 }, true},
		{"app without key", func(c *Config) {
			c.Status.Mode = StatusModeLive
			c.GitHub.AppID = 42
		}, true},
		{"app with key", func(c *Config) {
			c.Status.Mode = StatusModeLive
			c.GitHub.AppID = 42
			c.GitHub.AppPrivateKey = "pem"
			c.GitHub.InstallationID = 7
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
