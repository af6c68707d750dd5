package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains bind addresses and HTTP surface settings.
type Server struct {
	Bind           string   `toml:"bind"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
	GRPCBind       string   `toml:"grpc_bind"`
	MaxUploadMB    int      `toml:"max_upload_mb"`
	StateDir       string   `toml:"state_dir"`
}

// LLM contains the text-generation capability settings shared by the
// language mapper and the translator.
type LLM struct {
	APIKey               string  `toml:"api_key"`
	BaseURL              string  `toml:"base_url"`
	Model                string  `toml:"model"`
	MapTemperature       float64 `toml:"map_temperature"`
	TranslateTemperature float64 `toml:"translate_temperature"`
	MaxTokens            int     `toml:"max_tokens"`
	TimeoutSeconds       int     `toml:"timeout_seconds"`
}

// STT contains the speech-to-text capability settings.
type STT struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TempDir        string `toml:"temp_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Relay contains per-connection timing knobs.
type Relay struct {
	DetectTimeoutSeconds int `toml:"detect_timeout_seconds"`
	WriteTimeoutSeconds  int `toml:"write_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for the relay server and CLI.
//
// Configuration sections by subsystem:
//   - Server: HTTP/WebSocket bind, CORS origins, optional gRPC bind
//   - LLM: text generation used for language mapping and translation
//   - STT: speech-to-text used for audio transcription
//   - Relay: client timeouts and per-connection write deadlines
//   - Logging: log format, level, and optional JSON log directory
type Config struct {
	Server  Server  `toml:"server"`
	LLM     LLM     `toml:"llm"`
	STT     STT     `toml:"stt"`
	Relay   Relay   `toml:"relay"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file so deployments can inject secrets
// without editing it. A missing file is not an error.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// ListenAddress returns the host:port the HTTP server binds to.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Server.Bind, strconv.Itoa(c.Server.Port))
}

// BaseURL returns the http URL clients use to reach the server. Wildcard
// binds are reported as loopback.
func (c *Config) BaseURL() string {
	host := c.Server.Bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// MaxUploadBytes converts the upload ceiling to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// LLMConfigured reports whether live text generation can be attempted.
func (c *Config) LLMConfigured() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// STTConfigured reports whether live speech-to-text can be attempted.
func (c *Config) STTConfigured() bool {
	return strings.TrimSpace(c.STT.APIKey) != ""
}

// LLMTimeout returns the per-request text generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// STTTimeout returns the per-request transcription timeout.
func (c *Config) STTTimeout() time.Duration {
	return time.Duration(c.STT.TimeoutSeconds) * time.Second
}

// DetectTimeout returns the client-side detectLanguages timeout.
func (c *Config) DetectTimeout() time.Duration {
	return time.Duration(c.Relay.DetectTimeoutSeconds) * time.Second
}

// WriteTimeout returns the per-frame relay write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Relay.WriteTimeoutSeconds) * time.Second
}

// EnsureDirectories creates the state and temp directories the server uses.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Server.StateDir, c.STT.TempDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Redacted returns a copy with credentials masked, suitable for display.
func (c Config) Redacted() Config {
	c.LLM.APIKey = redact(c.LLM.APIKey)
	c.STT.APIKey = redact(c.STT.APIKey)
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return c
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

func redact(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "…" + value[len(value)-2:]
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
