package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the Melodie conversation agent.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// Realtime (voice) transport.
	RealtimeBaseURL string
	RealtimeModel   string
	RealtimeVoice   string

	// Text-only fallback transport.
	CompletionsURL   string
	CompletionsModel string
	CompletionsKey   string

	// Credential service issuing ephemeral realtime tokens.
	AuthBaseURL     string
	AuthProjectName string
	AuthToken       string

	// Conversation-log persistence.
	RecorderBaseURL string
	RecorderToken   string
	DatabaseURL     string

	SessionInactivityTimeout time.Duration
	ResponseTimeout          time.Duration
	ContinuationDelay        time.Duration
	CommitDelay              time.Duration
	SwitchSettleDelay        time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "melodie"),
		AllowAnyOrigin:   false,
		RealtimeBaseURL:  envOrDefault("REALTIME_BASE_URL", "https://api.openai.com/v1/realtime"),
		RealtimeModel:    envOrDefault("REALTIME_MODEL", "gpt-4o-realtime-preview-2024-12-17"),
		// The widget persona speaks with a warm female voice.
		RealtimeVoice:            envOrDefault("REALTIME_VOICE", "shimmer"),
		CompletionsURL:           envOrDefault("COMPLETIONS_URL", "https://api.openai.com/v1/chat/completions"),
		CompletionsModel:         envOrDefault("COMPLETIONS_MODEL", "gpt-4.1-mini"),
		CompletionsKey:           stringsTrimSpace("COMPLETIONS_API_KEY"),
		AuthBaseURL:              stringsTrimSpace("AUTH_BASE_URL"),
		AuthProjectName:          envOrDefault("AUTH_PROJECT_NAME", "UAM_UVC"),
		AuthToken:                stringsTrimSpace("AUTH_TOKEN"),
		RecorderBaseURL:          stringsTrimSpace("RECORDER_BASE_URL"),
		RecorderToken:            stringsTrimSpace("RECORDER_TOKEN"),
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
		ResponseTimeout:          20 * time.Second,
		// Protocol-ordering delays: a function output or audio commit must be
		// observed by the remote session before the next response is requested.
		ContinuationDelay: 100 * time.Millisecond,
		CommitDelay:       50 * time.Millisecond,
		SwitchSettleDelay: 60 * time.Millisecond,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ResponseTimeout, err = durationFromEnv("APP_RESPONSE_TIMEOUT", cfg.ResponseTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ContinuationDelay, err = durationFromEnv("APP_CONTINUATION_DELAY", cfg.ContinuationDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.CommitDelay, err = durationFromEnv("APP_COMMIT_DELAY", cfg.CommitDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.SwitchSettleDelay, err = durationFromEnv("APP_SWITCH_SETTLE_DELAY", cfg.SwitchSettleDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ResponseTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_RESPONSE_TIMEOUT must be at least 1s")
	}
	if cfg.ContinuationDelay < 0 || cfg.CommitDelay < 0 || cfg.SwitchSettleDelay < 0 {
		return Config{}, fmt.Errorf("protocol delays must not be negative")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
