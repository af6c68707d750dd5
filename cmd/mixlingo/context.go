package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"mixlingo/internal/config"
	"mixlingo/internal/logging"
	"mixlingo/internal/relay"
	"mixlingo/internal/relayclient"
	"mixlingo/internal/serverrun"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// baseURL prefers --server and falls back to the configured bind.
func (c *commandContext) baseURL() (string, error) {
	if c.serverFlag != nil {
		if flag := strings.TrimSpace(*c.serverFlag); flag != "" {
			return flag, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return cfg.BaseURL(), nil
}

func (c *commandContext) api() (*relayclient.API, error) {
	base, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return relayclient.NewAPI(base, nil), nil
}

func (c *commandContext) withRelay(ctx context.Context, fn func(*relayclient.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	base, err := c.baseURL()
	if err != nil {
		return err
	}
	endpoint, err := relayclient.EndpointFromBase(base)
	if err != nil {
		return err
	}
	client, err := relayclient.Dial(ctx, endpoint, relayclient.WithDetectTimeout(cfg.DetectTimeout()))
	if err != nil {
		return wrapDialError(err, base)
	}
	defer client.Close()
	return fn(client)
}

// pipeline builds the local mapping, translation, and transcription stages.
// Diagnostics go to stderr so stdout stays parseable.
func (c *commandContext) pipeline(cmd *cobra.Command) (relay.Pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return relay.Pipeline{}, err
	}
	return serverrun.BuildPipeline(cfg, c.stderrLogger(cmd, cfg)), nil
}

func (c *commandContext) stderrLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: "console",
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func wrapDialError(err error, base string) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to server: %s refused the connection; start it with `mixlingo serve`", base)
	default:
		return fmt.Errorf("connect to server %s: %w", base, err)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
