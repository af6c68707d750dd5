package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"google.golang.org/grpc"

	"mixlingo/internal/config"
	"mixlingo/internal/logging"
	"mixlingo/internal/relay"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the HTTP surface, the WebSocket relay, and the optional gRPC
// relay, and holds a per-bind single-instance lock while running.
type Server struct {
	cfg      *config.Config
	pipeline relay.Pipeline
	hub      *relay.Hub
	logger   *slog.Logger
	started  time.Time
	handler  http.Handler

	lockPath string
	lock     *flock.Flock

	stopOnce     sync.Once
	mu           sync.Mutex
	httpServer   *http.Server
	listener     net.Listener
	grpcServer   *grpc.Server
	grpcListener net.Listener
}

// New assembles the server. Nothing is bound until Start.
func New(cfg *config.Config, pipeline relay.Pipeline, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires configuration")
	}
	lockPath := filepath.Join(cfg.Server.StateDir, lockFileName(cfg.ListenAddress()))
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline.WithDefaults(),
		hub:      relay.NewHub(),
		logger:   logging.NewComponentLogger(logger, "server"),
		started:  time.Now(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	s.handler = s.routes()
	return s, nil
}

func lockFileName(addr string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "[", "", "]", "")
	return "mixlingo-" + replacer.Replace(addr) + ".lock"
}

// Handler returns the HTTP handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Hub exposes live relay statistics.
func (s *Server) Hub() *relay.Hub {
	return s.hub
}

// LockPath reports the single-instance lock file.
func (s *Server) LockPath() string {
	return s.lockPath
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/api/languages", s.handleLanguages)
	mux.Handle("/ws", relay.NewWSHandler(s.pipeline, s.hub, s.logger, relay.WSOptions{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		WriteTimeout:   s.cfg.WriteTimeout(),
	}))
	return corsMiddleware(s.cfg.Server.AllowedOrigins, mux)
}

// Start acquires the instance lock and begins serving. Serving stops when
// ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.Server.StateDir, 0o755); err != nil {
		return fmt.Errorf("ensure state dir: %w", err)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another mixlingo server is already bound to %s (lock %s)", s.cfg.ListenAddress(), s.lockPath)
	}

	listener, err := net.Listen("tcp", s.cfg.ListenAddress())
	if err != nil {
		_ = s.lock.Unlock()
		return fmt.Errorf("http listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpServer
	s.mu.Unlock()

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()
	s.logger.Info("http server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("text_generation", string(s.pipeline.Capabilities().TextGeneration)),
		logging.String("speech_to_text", string(s.pipeline.Capabilities().SpeechToText)),
	)

	if bind := strings.TrimSpace(s.cfg.Server.GRPCBind); bind != "" {
		if err := s.startGRPC(bind); err != nil {
			s.Stop()
			return err
		}
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Server) startGRPC(bind string) error {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcServer := relay.NewGRPCServer(relay.NewGRPCService(s.pipeline, s.hub, s.logger))

	s.mu.Lock()
	s.grpcListener = listener
	s.grpcServer = grpcServer
	s.mu.Unlock()

	go func() {
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			s.logger.Error("grpc server error", logging.Error(err))
		}
	}()
	s.logger.Info("grpc relay listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound HTTP address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GRPCAddr returns the bound gRPC address, or "" when disabled.
func (s *Server) GRPCAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Stop shuts both transports down within the shutdown timeout and releases
// the lock. Concurrent and repeated calls wait for the first to finish.
func (s *Server) Stop() {
	s.stopOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	httpServer, grpcServer := s.httpServer, s.grpcServer
	s.httpServer, s.grpcServer = nil, nil
	s.listener, s.grpcListener = nil, nil
	s.mu.Unlock()

	if httpServer == nil && grpcServer == nil {
		return
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
	}
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", logging.Error(err))
		}
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release server lock", logging.Error(err))
	}
	s.logger.Info("server stopped")
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
