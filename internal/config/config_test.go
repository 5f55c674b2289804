package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"PDFCHAT_SERVER", "PDFCHAT_DB", "PDFCHAT_CACHE_DIR", "PDFCHAT_RECENT_FILE",
	"PDFCHAT_LOG_FILE", "PDFCHAT_LOG_LEVEL", "PDFCHAT_ADDR", "PDFCHAT_POLL_INTERVAL",
	"PDFCHAT_REPLY_TIMEOUT_CYCLES", "PDFCHAT_PUSH", "OLLAMA_HOST", "OLLAMA_MODEL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Embedded() {
		t.Fatal("default config should run embedded")
	}
	if cfg.PollInterval != 2*time.Second || cfg.ReplyTimeoutCycles != 30 || cfg.Push {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.ListenAddr != "localhost:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.DatabasePath, "pdfchat.db") {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	body := "PDFCHAT_SERVER=http://localhost:9000/\nPDFCHAT_POLL_INTERVAL=500ms\nPDFCHAT_PUSH=true\nPDFCHAT_LOG_LEVEL=DEBUG\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides variables that are already set, so unset the cleared keys.
	for _, key := range []string{"PDFCHAT_SERVER", "PDFCHAT_POLL_INTERVAL", "PDFCHAT_PUSH", "PDFCHAT_LOG_LEVEL"} {
		os.Unsetenv(key)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "http://localhost:9000" || cfg.Embedded() {
		t.Fatalf("server url not loaded: %+v", cfg)
	}
	if cfg.PollInterval != 500*time.Millisecond || !cfg.Push || cfg.LogLevel != "debug" {
		t.Fatalf("env file values not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PDFCHAT_LOG_LEVEL":            "verbose",
		"PDFCHAT_POLL_INTERVAL":        "soon",
		"PDFCHAT_REPLY_TIMEOUT_CYCLES": "0",
		"PDFCHAT_SERVER":               "not a url",
		"PDFCHAT_PUSH":                 "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}
