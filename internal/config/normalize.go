package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays the environment variables deployments use to inject
// settings and secrets. Set variables always win over the file.
func (c *Config) applyEnv() error {
	if value, ok := lookupEnv("PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("PORT: %q is not a number", value)
		}
		c.Server.Port = port
	}
	if value, ok := lookupEnv("CLIENT_URL"); ok {
		c.Server.AllowedOrigins = splitList(value)
	}
	if value, ok := lookupEnv("OPENAI_API_KEY"); ok {
		c.LLM.APIKey = value
	}
	if value, ok := lookupEnv("OPENAI_BASE_URL"); ok {
		c.LLM.BaseURL = value
	}
	if value, ok := lookupEnv("LLM_MODEL"); ok {
		c.LLM.Model = value
	}
	if value, ok := lookupEnv("LEMONFOX_API_KEY"); ok {
		c.STT.APIKey = value
	}
	if value, ok := lookupEnv("LEMONFOX_BASE_URL"); ok {
		c.STT.BaseURL = value
	}
	if value, ok := lookupEnv("MIXLINGO_LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *Config) normalize() error {
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLLM()
	if err := c.normalizeSTT(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.GRPCBind = strings.TrimSpace(c.Server.GRPCBind)
	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.Server.AllowedOrigins = origins
	if strings.TrimSpace(c.Server.StateDir) == "" || c.Server.StateDir == defaultStateDir {
		c.Server.StateDir = defaultStateDirFor()
	}
	var err error
	if c.Server.StateDir, err = expandPath(c.Server.StateDir); err != nil {
		return fmt.Errorf("server.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
}

func (c *Config) normalizeSTT() error {
	c.STT.APIKey = strings.TrimSpace(c.STT.APIKey)
	c.STT.BaseURL = strings.TrimRight(strings.TrimSpace(c.STT.BaseURL), "/")
	if c.STT.BaseURL == "" {
		c.STT.BaseURL = defaultSTTBaseURL
	}
	c.STT.Model = strings.TrimSpace(c.STT.Model)
	if c.STT.Model == "" {
		c.STT.Model = defaultSTTModel
	}
	if strings.TrimSpace(c.STT.TempDir) == "" {
		c.STT.TempDir = os.TempDir()
	}
	var err error
	if c.STT.TempDir, err = expandPath(c.STT.TempDir); err != nil {
		return fmt.Errorf("stt.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	if strings.TrimSpace(c.Logging.Dir) != "" {
		var err error
		if c.Logging.Dir, err = expandPath(c.Logging.Dir); err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
	}
	return nil
}
