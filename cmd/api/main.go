// Package main provides the entry point for the dashboard API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/narvanalabs/ops-dashboard/internal/api"
	"github.com/narvanalabs/ops-dashboard/internal/integrations/github"
	"github.com/narvanalabs/ops-dashboard/internal/integrations/jenkins"
	"github.com/narvanalabs/ops-dashboard/internal/integrations/openshift"
	"github.com/narvanalabs/ops-dashboard/internal/mcp"
	"github.com/narvanalabs/ops-dashboard/internal/notify"
	"github.com/narvanalabs/ops-dashboard/internal/shutdown"
	"github.com/narvanalabs/ops-dashboard/internal/status"
	"github.com/narvanalabs/ops-dashboard/pkg/config"
	"github.com/narvanalabs/ops-dashboard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), strings.EqualFold(cfg.LogFormat, "json"))

	jenkinsClient := jenkins.NewClient(jenkins.Config{
		BaseURL:  cfg.Jenkins.URL,
		Username: cfg.Jenkins.User,
		APIToken: cfg.Jenkins.APIToken,
		Timeout:  cfg.Jenkins.Timeout,
	})
	if !jenkinsClient.Configured() {
		log.Warn("JENKINS_API_TOKEN not set, every MCP query will fail until it is configured")
	}

	dispatcher := mcp.NewDispatcher(jenkinsClient, log.WithComponent("mcp").Logger)

	clusterFetcher, githubFetcher, err := statusFetchers(cfg, log)
	if err != nil {
		log.Error("failed to initialize status collaborators", "error", err)
		os.Exit(1)
	}

	aggregator := status.NewAggregator(clusterFetcher, githubFetcher, dispatcher, status.Options{
		Namespace: cfg.OpenShift.Namespace,
		Owner:     cfg.GitHub.Owner,
		Repo:      cfg.GitHub.Repo,
	}, log.WithComponent("status").Logger)

	notifications := notify.NewQueue(cfg.Notify.Lifetime, cfg.Notify.Capacity)

	server := api.NewServer(cfg, api.Deps{
		Dispatcher:    dispatcher,
		Collector:     aggregator,
		Notifications: notifications,
		Jenkins:       jenkinsClient,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	log.Info("starting dashboard",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
		"jenkins_url", jenkinsClient.BaseURL(),
		"status_mode", cfg.Status.Mode,
	)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.WithComponent("shutdown").Logger),
	)
	coordinator.Register(shutdown.NewFunc("notifications", func(context.Context) error {
		notifications.Close()
		return nil
	}))
	coordinator.Register(server)

	startErr := server.Start(ctx)
	stop()
	if startErr != nil {
		log.Error("server error", "error", startErr)
	}

	code := shutdown.ExitCode(coordinator.Shutdown(context.Background()))
	if startErr != nil {
		code = 1
	}
	log.Info("server stopped", "exit_code", code)
	os.Exit(code)
}

// statusFetchers builds the OpenShift and GitHub collaborators for the
// configured mode.
func statusFetchers(cfg *config.Config, log *logger.Logger) (openshift.StatusFetcher, github.StatusFetcher, error) {
	if cfg.Status.Mode != config.StatusModeLive {
		return openshift.NewMockFetcher(), github.NewMockFetcher(), nil
	}

	clientset, err := openshift.NewClientset(cfg.OpenShift.Kubeconfig)
	if err != nil {
		return nil, nil, err
	}

	ghClient := github.NewClient(cfg.GitHub.APIURL, github.Credentials{
		Token:          cfg.GitHub.Token,
		AppID:          cfg.GitHub.AppID,
		PrivateKeyPEM:  cfg.GitHub.AppPrivateKey,
		InstallationID: cfg.GitHub.InstallationID,
	})

	return openshift.NewLiveFetcher(clientset, cfg.OpenShift.Namespace, log.WithComponent("openshift").Logger),
		github.NewLiveFetcher(ghClient, cfg.GitHub.Owner, cfg.GitHub.Repo, log.WithComponent("github").Logger),
		nil
}
