package testsupport

import (
	"path/filepath"
	"testing"

	"mixlingo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test,
// bound to an ephemeral loopback port, with both capabilities unconfigured.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Bind = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.StateDir = filepath.Join(base, "state")
	cfg.STT.TempDir = filepath.Join(base, "tmp")
	cfg.Logging.Dir = ""

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithLLMKey configures a text generation credential and endpoint.
func WithLLMKey(key, baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.APIKey = key
		if baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
}

// WithSTTKey configures a speech-to-text credential and endpoint.
func WithSTTKey(key, baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.STT.APIKey = key
		if baseURL != "" {
			cfg.STT.BaseURL = baseURL
		}
	}
}

// WithAllowedOrigins overrides the CORS/WebSocket origin allow list.
func WithAllowedOrigins(origins ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = origins
	}
}
