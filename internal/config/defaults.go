package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigPath           = "~/.config/mixlingo/config.toml"
	projectConfigName           = "mixlingo.toml"
	defaultBind                 = "0.0.0.0"
	defaultPort                 = 3001
	defaultAllowedOrigin        = "http://localhost:5173"
	defaultMaxUploadMB          = 25
	defaultStateDir             = "~/.local/state/mixlingo"
	defaultLLMBaseURL           = "https://api.openai.com/v1"
	defaultLLMModel             = "gpt-4"
	defaultMapTemperature       = 0.1
	defaultTranslateTemperature = 0.3
	defaultMaxTokens            = 1000
	defaultLLMTimeoutSeconds    = 60
	defaultSTTBaseURL           = "https://api.lemonfox.ai/v1"
	defaultSTTModel             = "whisper-1"
	defaultSTTTimeoutSeconds    = 120
	defaultDetectTimeoutSeconds = 5
	defaultWriteTimeoutSeconds  = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind:           defaultBind,
			Port:           defaultPort,
			AllowedOrigins: []string{defaultAllowedOrigin},
			MaxUploadMB:    defaultMaxUploadMB,
			StateDir:       defaultStateDir,
		},
		LLM: LLM{
			BaseURL:              defaultLLMBaseURL,
			Model:                defaultLLMModel,
			MapTemperature:       defaultMapTemperature,
			TranslateTemperature: defaultTranslateTemperature,
			MaxTokens:            defaultMaxTokens,
			TimeoutSeconds:       defaultLLMTimeoutSeconds,
		},
		STT: STT{
			BaseURL:        defaultSTTBaseURL,
			Model:          defaultSTTModel,
			TempDir:        os.TempDir(),
			TimeoutSeconds: defaultSTTTimeoutSeconds,
		},
		Relay: Relay{
			DetectTimeoutSeconds: defaultDetectTimeoutSeconds,
			WriteTimeoutSeconds:  defaultWriteTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// defaultStateDirFor honours XDG_STATE_HOME when set.
func defaultStateDirFor() string {
	if base, ok := os.LookupEnv("XDG_STATE_HOME"); ok && base != "" {
		return filepath.Join(base, "mixlingo")
	}
	return defaultStateDir
}
