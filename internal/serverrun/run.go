package serverrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"mixlingo/internal/capability"
	"mixlingo/internal/config"
	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
	"mixlingo/internal/preflight"
	"mixlingo/internal/relay"
	"mixlingo/internal/server"
	"mixlingo/internal/services/llm"
	"mixlingo/internal/services/stt"
	"mixlingo/internal/transcriber"
	"mixlingo/internal/translator"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Preflight probes directories and configured capabilities before
	// binding. Failures are logged, never fatal.
	Preflight bool
}

// BuildPipeline selects live or fallback variants for each stage from the
// configured credentials. Missing credentials never fail startup.
func BuildPipeline(cfg *config.Config, logger *slog.Logger) relay.Pipeline {
	var gen capability.TextGenerator
	if cfg.LLMConfigured() {
		gen = capability.NewLLM(llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			MaxTokens:      cfg.LLM.MaxTokens,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}))
	}
	var speech capability.SpeechToText
	if cfg.STTConfigured() {
		speech = capability.NewWhisper(stt.NewClient(stt.Config{
			APIKey:         cfg.STT.APIKey,
			BaseURL:        cfg.STT.BaseURL,
			Model:          cfg.STT.Model,
			TimeoutSeconds: cfg.STT.TimeoutSeconds,
		}))
	}
	return relay.Pipeline{
		Mapper:      mapper.New(gen, cfg.LLM.MapTemperature, logger),
		Translator:  translator.New(gen, cfg.LLM.TranslateTemperature, logger),
		Transcriber: transcriber.New(speech, cfg.STT.TempDir, logger),
	}
}

// Run starts the relay server and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	pipeline := BuildPipeline(cfg, logger)
	logCapabilitySnapshot(logger, cfg, pipeline)
	if opts.Preflight {
		logPreflight(signalCtx, logger, cfg)
	}

	srv, err := server.New(cfg, pipeline, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(signalCtx); err != nil {
		logger.Error("server start failed",
			logging.String(logging.FieldEventType, "server_start_failed"),
			logging.String("lock", srv.LockPath()),
			logging.Error(err),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mixlingo server shutting down")
	srv.Stop()
	return nil
}

func newLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" && !opts.Development {
		return logging.NewFromConfig(cfg)
	}
	scoped := *cfg
	if opts.LogLevel != "" {
		scoped.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(&scoped)
	if err != nil {
		return nil, err
	}
	if opts.Development {
		logger = logger.With(logging.Bool("development", true))
	}
	return logger, nil
}

func logCapabilitySnapshot(logger *slog.Logger, cfg *config.Config, pipeline relay.Pipeline) {
	caps := pipeline.Capabilities()
	logger.Info("capability snapshot",
		logging.String(logging.FieldEventType, "capability_snapshot"),
		logging.String("text_generation", string(caps.TextGeneration)),
		logging.String("llm_model", cfg.LLM.Model),
		logging.String("llm_base_url", cfg.LLM.BaseURL),
		logging.String("speech_to_text", string(caps.SpeechToText)),
		logging.String("stt_model", cfg.STT.Model),
		logging.String("stt_base_url", cfg.STT.BaseURL),
		logging.String("listen", cfg.ListenAddress()),
		logging.String("grpc_bind", cfg.Server.GRPCBind),
	)
	if caps.TextGeneration == capability.ModeFallback {
		logging.WarnWithContext(logger, "text generation not configured", "capability_fallback",
			logging.String(logging.FieldImpact, "mapping tags text as English and translations are mocked"),
		)
	}
	if caps.SpeechToText == capability.ModeFallback {
		logging.WarnWithContext(logger, "speech-to-text not configured", "capability_fallback",
			logging.String(logging.FieldImpact, "transcriptions return a fixed mock sentence"),
		)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "affected requests fall back or fail"),
		)
	}
	logger.Info("preflight complete",
		logging.String(logging.FieldEventType, "preflight_complete"),
		logging.Int("checks", len(results)),
		logging.Int("failed", len(preflight.Failed(results))),
	)
}
