// Command sadguard runs the PR review guard: it serves the signed GitHub
// webhook endpoint and drives each pull_request run to completion in the
// background.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sadguard/sadguard/pkg/api"
	"github.com/sadguard/sadguard/pkg/config"
	"github.com/sadguard/sadguard/pkg/container"
	"github.com/sadguard/sadguard/pkg/database"
	"github.com/sadguard/sadguard/pkg/llm"
	"github.com/sadguard/sadguard/pkg/orchestrator"
	"github.com/sadguard/sadguard/pkg/platform"
	"github.com/sadguard/sadguard/pkg/recipe"
	"github.com/sadguard/sadguard/pkg/store"
	"github.com/sadguard/sadguard/pkg/version"
	"github.com/sadguard/sadguard/pkg/workspace"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	slog.Info("starting sadguard", "version", version.Full())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	workspaceBaseDir := getEnv("WORKSPACE_BASE_DIR", os.TempDir())
	httpAddr := ":" + getEnv("HTTP_PORT", "8080")

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database configuration", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to database")

	runStore := store.NewPRRunStore(dbClient.SQL)
	eventStore := store.NewPREventStore(dbClient.SQL)
	reviewStore := store.NewAIReviewStore(dbClient.SQL)

	platformClient, err := platform.NewClient(cfg.AppID, cfg.PrivateKeyPath)
	if err != nil {
		slog.Error("failed to initialize GitHub App client", "error", err)
		os.Exit(1)
	}

	workspaceManager := workspace.NewManager(workspaceBaseDir)

	containerDriver, err := container.NewDriver()
	if err != nil {
		slog.Error("failed to initialize container driver", "error", err)
		os.Exit(1)
	}

	llmClient := llm.NewClient(cfg.LLMAPIKey)

	orch := orchestrator.New(orchestrator.Dependencies{
		Platform:  platformClient,
		Workspace: workspaceManager,
		Recipe:    recipe.Resolve,
		Container: containerDriver,
		LLM:       llmClient,
		Runs:      runStore,
		Events:    eventStore,
		Reviews:   reviewStore,
		Config: orchestrator.Config{
			ContainerRunTimeout:  cfg.ContainerRunTimeout,
			LLMRequestTimeout:    cfg.LLMRequestTimeout,
			ReviewMaxIterations:  cfg.ReviewMaxIterations,
			ProgressLogThrottle:  cfg.ProgressLogThrottle,
			ProgressStatThrottle: cfg.ProgressStatThrottle,
		},
	})

	server := api.NewServer(dbClient, orch, []byte(cfg.WebhookSecret))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", httpAddr)
		if err := server.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("sadguard stopped")
}
