package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"mixlingo/internal/capability"
	"mixlingo/internal/language"
	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
	"mixlingo/internal/services"
	"mixlingo/internal/tags"
	"mixlingo/internal/transcriber"
	"mixlingo/internal/translator"
)

// Pipeline bundles the stages a session drives.
type Pipeline struct {
	Mapper      mapper.Mapper
	Translator  translator.Translator
	Transcriber transcriber.Transcriber
}

// Capabilities reports whether each capability runs live or in fallback.
type Capabilities struct {
	TextGeneration capability.Mode `json:"textGeneration"`
	SpeechToText   capability.Mode `json:"speechToText"`
}

// Capabilities derives the capability modes from the configured stages.
func (p Pipeline) Capabilities() Capabilities {
	caps := Capabilities{TextGeneration: capability.ModeFallback, SpeechToText: capability.ModeFallback}
	if p.Mapper != nil && p.Mapper.Mode() == capability.ModeLive {
		caps.TextGeneration = capability.ModeLive
	}
	if p.Transcriber != nil {
		caps.SpeechToText = p.Transcriber.Mode()
	}
	return caps
}

// WithDefaults fills missing stages with their fallback variants.
func (p Pipeline) WithDefaults() Pipeline {
	if p.Mapper == nil {
		p.Mapper = mapper.Fallback{}
	}
	if p.Translator == nil {
		p.Translator = translator.Fallback{}
	}
	if p.Transcriber == nil {
		p.Transcriber = transcriber.Fallback{}
	}
	return p
}

// Session serves one relay connection. Every inbound envelope runs in its
// own goroutine; requests are neither serialized nor cancelled by later
// ones, so responses may interleave when a client does not wait.
type Session struct {
	id       string
	pipeline Pipeline
	out      Emitter
	hub      *Hub
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewSession creates a session writing to out. hub may be nil.
func NewSession(pipeline Pipeline, out Emitter, hub *Hub, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		pipeline: pipeline.WithDefaults(),
		out:      out,
		hub:      hub,
		logger:   logging.NewComponentLogger(logger, "relay"),
	}
}

// ID returns the connection identifier.
func (s *Session) ID() string {
	return s.id
}

// Handle dispatches env on a new goroutine. ctx is the connection context;
// cancelling it abandons in-flight requests.
func (s *Session) Handle(ctx context.Context, env Envelope) {
	ctx = services.WithConnectionID(ctx, s.id)
	ctx = services.WithEvent(ctx, env.Event)
	if env.Seq != nil {
		ctx = services.WithSequence(ctx, *env.Seq)
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, env)
	}()
}

// Wait blocks until every dispatched request has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

type request struct {
	hub   *Hub
	state State
	seq   *uint64
}

func (r *request) advance(step Step) {
	next := Next(r.state, step)
	r.hub.move(r.state, next)
	r.state = next
}

func (s *Session) dispatch(ctx context.Context, env Envelope) {
	logger := logging.WithContext(ctx, s.logger)
	req := &request{hub: s.hub, seq: env.Seq}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("relay handler panicked",
				logging.String(logging.FieldEventType, "relay_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
			s.emit(logger, failureEvent(env.Event), req.seq, failureMessage(env.Event))
		}
		if req.state != Idle {
			req.advance(StepFailed)
		}
		logger.Debug("relay request finished", logging.Duration("elapsed", time.Since(started)))
	}()

	logger.Debug("relay request received", logging.Int("payload_bytes", len(env.Data)))

	switch env.Event {
	case EventSendText:
		in, err := DecodeTextRequest(env.Data)
		if err != nil {
			logger.Warn("sendText payload malformed; treating as empty", logging.Error(err))
		}
		s.relayText(ctx, logger, req, in)
	case EventDetectLanguages:
		in, err := DecodeDetectRequest(env.Data)
		if err != nil {
			logger.Warn("detectLanguages payload malformed; treating as empty", logging.Error(err))
		}
		s.detect(ctx, logger, req, in)
	case EventSendAudio:
		var in AudioRequest
		if err := env.Decode(&in); err != nil {
			logger.Warn("sendAudio payload malformed", logging.Error(err))
			s.emit(logger, EventTranscriptionError, req.seq, MessageTranscriptionFailed)
			return
		}
		s.relayAudio(ctx, logger, req, in)
	default:
		logger.Warn("unknown relay event", logging.String("requested_event", env.Event))
		s.emit(logger, EventError, req.seq, unknownEventMessage(env.Event))
	}
}

func (s *Session) relayText(ctx context.Context, logger *slog.Logger, req *request, in TextRequest) {
	if !tags.HasContent(in.Text) {
		s.emit(logger, EventReceiveAnnotatedText, req.seq, mapper.Annotate(""))
		s.emit(logger, EventReceiveTranslation, req.seq, "")
		return
	}

	req.advance(StepSubmit)
	mapped, err := s.pipeline.Mapper.Map(ctx, in.Text, in.Languages)
	if err != nil {
		s.fail(ctx, logger, req, EventTranslationError, MessageTranslationFailed, err)
		return
	}
	req.advance(StepMapped)
	result := mapper.Annotate(mapped)
	s.emit(logger, EventReceiveAnnotatedText, req.seq, result)

	translation, err := s.pipeline.Translator.Translate(ctx, mapped, in.TargetLanguage, in.Languages)
	if err != nil {
		s.fail(ctx, logger, req, EventTranslationError, MessageTranslationFailed, err)
		return
	}
	req.advance(StepTranslated)
	s.emit(logger, EventReceiveTranslation, req.seq, translation)
	logger.Info("text relayed",
		logging.Int("chars", len(in.Text)),
		logging.String("languages", fmt.Sprint(result.DetectedLanguages)),
		logging.String("target", language.NormalizeTarget(in.TargetLanguage)),
	)
}

func (s *Session) detect(ctx context.Context, logger *slog.Logger, req *request, in DetectRequest) {
	if !tags.HasContent(in.Text) {
		s.emit(logger, EventLanguageDetected, req.seq, Detection{})
		return
	}
	req.advance(StepSubmit)
	mapped, err := s.pipeline.Mapper.Map(ctx, in.Text, []string{language.Auto})
	if err != nil {
		s.fail(ctx, logger, req, EventLanguageDetectionError, MessageDetectionFailed, err)
		return
	}
	req.advance(StepDetected)
	s.emit(logger, EventLanguageDetected, req.seq, Detection{TaggedText: mapped})
}

func (s *Session) relayAudio(ctx context.Context, logger *slog.Logger, req *request, in AudioRequest) {
	text, err := s.pipeline.Transcriber.Transcribe(ctx, transcriber.AudioClip{Data: in.Audio, Filename: in.Filename})
	if err != nil {
		s.fail(ctx, logger, req, EventTranscriptionError, MessageTranscriptionFailed, err)
		return
	}
	s.emit(logger, EventReceiveTranscription, req.seq, Transcription{Text: text})

	follow := TextRequest{Text: text, TargetLanguage: in.TargetLanguage}
	follow.applyDefaults()
	s.relayText(ctx, logger, req, follow)
}

// fail reports a step failure to the client and returns the request to Idle.
// Failures caused by the connection going away are not reported.
func (s *Session) fail(ctx context.Context, logger *slog.Logger, req *request, event, message string, err error) {
	req.advance(StepFailed)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Debug("relay request abandoned", logging.Error(err))
		return
	}
	logger.Warn("relay step failed",
		logging.String(logging.FieldEventType, event),
		logging.String("error_kind", string(services.Classify(err))),
		logging.Error(err),
	)
	s.emit(logger, event, req.seq, message)
}

func (s *Session) emit(logger *slog.Logger, event string, seq *uint64, payload any) {
	env, err := NewEnvelope(event, seq, payload)
	if err != nil {
		logger.Error("relay emission encode failed", logging.String("emit_event", event), logging.Error(err))
		return
	}
	if !s.out.Emit(env) {
		logger.Debug("relay emission dropped; connection closed", logging.String("emit_event", event))
	}
}

func failureEvent(event string) string {
	switch event {
	case EventSendText:
		return EventTranslationError
	case EventDetectLanguages:
		return EventLanguageDetectionError
	case EventSendAudio:
		return EventTranscriptionError
	default:
		return EventError
	}
}

func failureMessage(event string) string {
	switch event {
	case EventSendText:
		return MessageTranslationFailed
	case EventDetectLanguages:
		return MessageDetectionFailed
	case EventSendAudio:
		return MessageTranscriptionFailed
	default:
		return "Internal error."
	}
}

func unknownEventMessage(event string) string {
	if event == "" {
		return "Missing event name."
	}
	return "Unknown event: " + event
}
