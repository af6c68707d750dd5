package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. Missing credentials are not
// an error: they select the fallback pipeline variants.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateSTT(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"relay.detect_timeout_seconds": c.Relay.DetectTimeoutSeconds,
		"relay.write_timeout_seconds":  c.Relay.WriteTimeoutSeconds,
	}); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.New("server.max_upload_mb must be positive")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validateURL(origin); err != nil {
			return fmt.Errorf("server.allowed_origins: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if err := validateURL(c.LLM.BaseURL); err != nil {
		return fmt.Errorf("llm.base_url: %w", err)
	}
	if c.LLM.MapTemperature < 0 || c.LLM.MapTemperature > 2 {
		return errors.New("llm.map_temperature must be between 0 and 2")
	}
	if c.LLM.TranslateTemperature < 0 || c.LLM.TranslateTemperature > 2 {
		return errors.New("llm.translate_temperature must be between 0 and 2")
	}
	return ensurePositiveMap(map[string]int{
		"llm.max_tokens":      c.LLM.MaxTokens,
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateSTT() error {
	if err := validateURL(c.STT.BaseURL); err != nil {
		return fmt.Errorf("stt.base_url: %w", err)
	}
	if c.STT.TimeoutSeconds <= 0 {
		return errors.New("stt.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q is missing a host", raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
