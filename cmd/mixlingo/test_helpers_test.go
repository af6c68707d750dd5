package main

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mixlingo/internal/logging"
	"mixlingo/internal/relay"
	"mixlingo/internal/server"
	"mixlingo/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	serverURL  string
}

// setupCLITestEnv isolates HOME and the environment overrides, and writes a
// config with both capabilities unconfigured.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"PORT", "CLIENT_URL", "OPENAI_API_KEY", "OPENAI_BASE_URL", "LLM_MODEL", "LEMONFOX_API_KEY", "LEMONFOX_BASE_URL", "MIXLINGO_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	configPath := filepath.Join(homeDir, ".config", "mixlingo", "config.toml")
	writeTestConfig(t, configPath, base, "")
	return &cliTestEnv{baseDir: base, configPath: configPath}
}

// startServer serves the fallback pipeline over httptest and records its URL.
func (e *cliTestEnv) startServer(t *testing.T) string {
	t.Helper()
	srv, err := server.New(testsupport.NewConfig(t), relay.Pipeline{}, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	e.serverURL = ts.URL
	return ts.URL
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	flags := []string{"--config", e.configPath}
	if e.serverURL != "" {
		flags = append(flags, "--server", e.serverURL)
	}
	return runCLI(t, append(flags, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path, base, llmKey string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	content := fmt.Sprintf(
		"[server]\nbind = \"127.0.0.1\"\nport = 3999\nstate_dir = %q\n\n[llm]\napi_key = %q\n\n[stt]\ntemp_dir = %q\n",
		filepath.Join(base, "state"),
		llmKey,
		filepath.Join(base, "tmp"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
