package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestUseProxy(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		token   string
		want    bool
	}{
		{"both set", "https://proxy.example.com", "tok", true},
		{"url only", "https://proxy.example.com", "", false},
		{"token only", "", "tok", false},
		{"neither", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Config{ProxyBaseURL: tt.baseURL, ProxyToken: tt.token}
			if c.UseProxy() != tt.want {
				t.Errorf("UseProxy() = %v, want %v", c.UseProxy(), tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"garbage", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("90s", DefaultRequestTimeout); got != 90*time.Second {
		t.Errorf("parseDuration(90s) = %v", got)
	}
	if got := parseDuration("nonsense", DefaultRequestTimeout); got != DefaultRequestTimeout {
		t.Errorf("invalid duration should fall back, got %v", got)
	}
	if got := parseDuration("-5s", DefaultRequestTimeout); got != DefaultRequestTimeout {
		t.Errorf("non-positive duration should fall back, got %v", got)
	}
}

func TestLoadWithFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "proxy_base_url: https://file.example.com\nrequest_timeout: 90s\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile: %v", err)
	}
	if cfg.ProxyBaseURL != "https://file.example.com" {
		t.Errorf("ProxyBaseURL = %q, file value should win", cfg.ProxyBaseURL)
	}
	if cfg.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	// Values the file does not set keep their defaults.
	if cfg.LLMProvider == "" {
		t.Error("unset file values must not clear defaults")
	}
}

func TestLoadWithFileMissingIsFine(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}
