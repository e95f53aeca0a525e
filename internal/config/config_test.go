package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.RealtimeModel != "gpt-4o-realtime-preview-2024-12-17" {
		t.Fatalf("RealtimeModel = %q, want realtime preview default", cfg.RealtimeModel)
	}
	if cfg.RealtimeVoice != "shimmer" {
		t.Fatalf("RealtimeVoice = %q, want %q", cfg.RealtimeVoice, "shimmer")
	}
	if cfg.ResponseTimeout != 20*time.Second {
		t.Fatalf("ResponseTimeout = %v, want 20s", cfg.ResponseTimeout)
	}
	if cfg.ContinuationDelay != 100*time.Millisecond {
		t.Fatalf("ContinuationDelay = %v, want 100ms", cfg.ContinuationDelay)
	}
	if cfg.AuthProjectName != "UAM_UVC" {
		t.Fatalf("AuthProjectName = %q, want %q", cfg.AuthProjectName, "UAM_UVC")
	}
}

func TestLoadUsesExplicitRealtimeBaseURL(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("REALTIME_BASE_URL", "http://localhost:7777/realtime")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RealtimeBaseURL != "http://localhost:7777/realtime" {
		t.Fatalf("RealtimeBaseURL = %q, want explicit value", cfg.RealtimeBaseURL)
	}
}

func TestLoadRejectsShortResponseTimeout(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_RESPONSE_TIMEOUT", "200ms")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for sub-second response timeout")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_RESPONSE_TIMEOUT",
		"APP_CONTINUATION_DELAY",
		"APP_COMMIT_DELAY",
		"APP_SWITCH_SETTLE_DELAY",
		"REALTIME_BASE_URL",
		"REALTIME_MODEL",
		"REALTIME_VOICE",
		"COMPLETIONS_URL",
		"COMPLETIONS_MODEL",
		"COMPLETIONS_API_KEY",
		"AUTH_BASE_URL",
		"AUTH_PROJECT_NAME",
		"AUTH_TOKEN",
		"RECORDER_BASE_URL",
		"RECORDER_TOKEN",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
