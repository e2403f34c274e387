// Package config loads the orchestrator's environment-driven configuration:
// GitHub App credentials, the webhook shared secret, the LLM API key, and
// the run-level timeouts and limits the orchestrator applies to every run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived setting the orchestrator needs
// beyond the database connection (see pkg/database.Config).
type Config struct {
	// GitHub App credentials used to mint per-call installation tokens.
	AppID          int64
	PrivateKeyPath string

	// WebhookSecret is the shared HMAC-SHA256 secret validated against the
	// X-Hub-Signature-256 header on every inbound webhook.
	WebhookSecret string

	// LLMAPIKey authenticates calls to the LLM provider.
	LLMAPIKey string

	// ContainerRunTimeout bounds a streaming container run (default 300s).
	ContainerRunTimeout time.Duration

	// LLMRequestTimeout bounds a single LLM completion call (upper bound 600s).
	LLMRequestTimeout time.Duration

	// ReviewMaxIterations bounds the review loop (default 3).
	ReviewMaxIterations int

	// ProgressLogThrottle / ProgressStatThrottle bound how often the
	// progress comment may be rewritten by each observer.
	ProgressLogThrottle  time.Duration
	ProgressStatThrottle time.Duration
}

// Load reads required and optional environment variables, applying the
// same production-ready defaults convention as database.LoadConfigFromEnv:
// required values are validated up front, missing ones are a startup-time
// fatal for the caller to report.
func Load() (*Config, error) {
	appID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid or missing GITHUB_APP_ID: %w", err)
	}

	privateKeyPath := os.Getenv("GITHUB_APP_PRIVATE_KEY_PATH")
	if privateKeyPath == "" {
		return nil, fmt.Errorf("GITHUB_APP_PRIVATE_KEY_PATH is required")
	}

	webhookSecret := os.Getenv("GITHUB_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return nil, fmt.Errorf("GITHUB_WEBHOOK_SECRET is required")
	}

	llmAPIKey := os.Getenv("LLM_API_KEY")
	if llmAPIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required")
	}

	containerRunTimeout, err := durationOrDefault("CONTAINER_RUN_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, err
	}

	llmRequestTimeout, err := durationOrDefault("LLM_REQUEST_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, err
	}
	if llmRequestTimeout > 600*time.Second {
		return nil, fmt.Errorf("LLM_REQUEST_TIMEOUT must not exceed 600s, got %s", llmRequestTimeout)
	}

	maxIterations, err := intOrDefault("REVIEW_MAX_ITERATIONS", 3)
	if err != nil {
		return nil, err
	}

	logThrottle, err := durationOrDefault("PROGRESS_LOG_THROTTLE", 10*time.Second)
	if err != nil {
		return nil, err
	}

	statThrottle, err := durationOrDefault("PROGRESS_STAT_THROTTLE", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		AppID:                appID,
		PrivateKeyPath:       privateKeyPath,
		WebhookSecret:        webhookSecret,
		LLMAPIKey:            llmAPIKey,
		ContainerRunTimeout:  containerRunTimeout,
		LLMRequestTimeout:    llmRequestTimeout,
		ReviewMaxIterations:  maxIterations,
		ProgressLogThrottle:  logThrottle,
		ProgressStatThrottle: statThrottle,
	}, nil
}

func durationOrDefault(key string, def time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intOrDefault(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
