// Package config loads runtime configuration for the circles core.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider identifiers for the direct route.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultRequestTimeout bounds every AI request, proxy or direct.
// The upstream contract specifies none; 45s is the documented default.
const DefaultRequestTimeout = 45 * time.Second

// Config holds all configuration values.
type Config struct {
	// Proxy backend route. Both must be non-empty for the proxy
	// route to be selected.
	ProxyBaseURL string `yaml:"proxy_base_url"`
	ProxyToken   string `yaml:"proxy_token"`

	// Direct provider route
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OllamaHost      string `yaml:"ollama_host"`

	// Streaming recognizer
	RecognizerURL string `yaml:"recognizer_url"`
	RecognizerKey string `yaml:"recognizer_key"`

	// SurrealDB contact store
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`

	// Operation queue
	QueuePath string `yaml:"queue_path"`

	// Proxy backend server
	ServerPort  string `yaml:"server_port"`
	ServerToken string `yaml:"server_token"`

	// Timeouts
	RequestTimeout time.Duration `yaml:"-"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, with defaults
// suitable for local development.
func Load() Config {
	return Config{
		ProxyBaseURL: getEnv("CIRCLES_PROXY_URL", ""),
		ProxyToken:   getEnv("CIRCLES_PROXY_TOKEN", ""),

		LLMProvider:     getEnv("CIRCLES_LLM_PROVIDER", ProviderOllama),
		LLMModel:        getEnv("CIRCLES_LLM_MODEL", "llama3.2"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		RecognizerURL: getEnv("CIRCLES_RECOGNIZER_URL", ""),
		RecognizerKey: getEnv("CIRCLES_RECOGNIZER_KEY", ""),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "circles"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "contacts"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),

		QueuePath: getEnv("CIRCLES_QUEUE_PATH", defaultQueuePath()),

		ServerPort:  getEnv("CIRCLES_SERVER_PORT", "8787"),
		ServerToken: getEnv("CIRCLES_SERVER_TOKEN", ""),

		RequestTimeout: parseDuration(getEnv("CIRCLES_REQUEST_TIMEOUT", ""), DefaultRequestTimeout),

		LogFile:  getEnv("CIRCLES_LOG_FILE", "/tmp/circles.log"),
		LogLevel: parseLogLevel(getEnv("CIRCLES_LOG_LEVEL", "INFO")),
	}
}

// LoadWithFile loads env configuration and overlays values from a YAML
// file if it exists. File values win only where set.
func LoadWithFile(path string) (Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	// Durations come in as strings like "90s".
	var timeouts struct {
		RequestTimeout string `yaml:"request_timeout"`
	}
	if err := yaml.Unmarshal(data, &timeouts); err == nil && timeouts.RequestTimeout != "" {
		overlay.RequestTimeout = parseDuration(timeouts.RequestTimeout, 0)
	}

	cfg.merge(overlay)
	return cfg, nil
}

// UseProxy reports whether the proxy backend route is configured.
// Both a base URL and a token are required; this is decided once at
// startup, not per call.
func (c Config) UseProxy() bool {
	return c.ProxyBaseURL != "" && c.ProxyToken != ""
}

func (c *Config) merge(o Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.ProxyBaseURL, o.ProxyBaseURL)
	set(&c.ProxyToken, o.ProxyToken)
	set(&c.LLMProvider, o.LLMProvider)
	set(&c.LLMModel, o.LLMModel)
	set(&c.OpenAIAPIKey, o.OpenAIAPIKey)
	set(&c.AnthropicAPIKey, o.AnthropicAPIKey)
	set(&c.OllamaHost, o.OllamaHost)
	set(&c.RecognizerURL, o.RecognizerURL)
	set(&c.RecognizerKey, o.RecognizerKey)
	set(&c.SurrealDBURL, o.SurrealDBURL)
	set(&c.SurrealDBNamespace, o.SurrealDBNamespace)
	set(&c.SurrealDBDatabase, o.SurrealDBDatabase)
	set(&c.SurrealDBUser, o.SurrealDBUser)
	set(&c.SurrealDBPass, o.SurrealDBPass)
	set(&c.QueuePath, o.QueuePath)
	set(&c.ServerPort, o.ServerPort)
	set(&c.ServerToken, o.ServerToken)
	set(&c.LogFile, o.LogFile)
	if o.RequestTimeout > 0 {
		c.RequestTimeout = o.RequestTimeout
	}
}

func defaultQueuePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "circles-queue.sqlite"
	}
	return home + "/.circles/queue.sqlite"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
