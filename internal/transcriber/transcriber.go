package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"mixlingo/internal/capability"
	"mixlingo/internal/logging"
	"mixlingo/internal/services"
)

// DefaultFilename is used when a clip arrives without a usable name.
const DefaultFilename = "audio.webm"

// MockTranscription is returned by the Fallback variant.
const MockTranscription = "Mocked transcription (speech-to-text not configured): The quick brown fox jumps over the lazy dog."

var (
	// ErrEmptyAudio rejects clips with no bytes before any capability call.
	ErrEmptyAudio = services.Wrap(services.ErrValidation, "transcriber", "", "audio buffer is empty", nil)
	// ErrTranscriptionFailed marks every capability or staging failure.
	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Error reports a failed transcription step.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcribe %s: %v", e.Op, e.Cause)
}

// Unwrap exposes both ErrTranscriptionFailed and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrTranscriptionFailed, e.Cause}
}

// AudioClip is an uploaded or streamed recording.
type AudioClip struct {
	Data     []byte
	Filename string
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip) (string, error)
	Mode() capability.Mode
}

// New returns a Live transcriber when s is non-nil and a Fallback otherwise.
func New(s capability.SpeechToText, tempDir string, logger *slog.Logger) Transcriber {
	if s == nil {
		return Fallback{}
	}
	return NewLive(s, tempDir, logger)
}

// Fallback returns MockTranscription for any non-empty clip.
type Fallback struct{}

// Transcribe implements Transcriber.
func (Fallback) Transcribe(ctx context.Context, clip AudioClip) (string, error) {
	if len(clip.Data) == 0 {
		return "", ErrEmptyAudio
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return MockTranscription, nil
}

// Mode implements Transcriber.
func (Fallback) Mode() capability.Mode { return capability.ModeFallback }

// Live stages each clip to a uniquely named temp file and hands the path to
// a speech-to-text capability. The file is removed on every exit path.
type Live struct {
	stt     capability.SpeechToText
	tempDir string
	logger  *slog.Logger
}

// NewLive constructs a Live transcriber. An empty tempDir uses os.TempDir.
func NewLive(s capability.SpeechToText, tempDir string, logger *slog.Logger) *Live {
	if strings.TrimSpace(tempDir) == "" {
		tempDir = os.TempDir()
	}
	return &Live{
		stt:     s,
		tempDir: tempDir,
		logger:  logging.NewComponentLogger(logger, "transcriber"),
	}
}

// Mode implements Transcriber.
func (t *Live) Mode() capability.Mode { return capability.ModeLive }

// Transcribe implements Transcriber.
func (t *Live) Transcribe(ctx context.Context, clip AudioClip) (string, error) {
	if len(clip.Data) == 0 {
		return "", ErrEmptyAudio
	}
	logger := logging.WithContext(ctx, t.logger)

	path, err := t.stage(clip)
	if err != nil {
		return "", &Error{Op: "stage", Cause: err}
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("temp audio cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}()

	started := time.Now()
	text, err := t.stt.TranscribeFile(ctx, path)
	if err != nil {
		logger.Error("transcription failed",
			logging.String(logging.FieldEventType, "transcription_failed"),
			logging.Int("bytes", len(clip.Data)),
			logging.Error(err),
		)
		return "", &Error{Op: "upload", Cause: err}
	}
	logger.Info("audio transcribed",
		logging.Int("bytes", len(clip.Data)),
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("chars", len(text)),
	)
	return strings.TrimSpace(text), nil
}

func (t *Live) stage(clip AudioClip) (string, error) {
	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure temp dir: %w", err)
	}
	path := filepath.Join(t.tempDir, TempName(clip.Filename))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp audio: %w", err)
	}
	if _, err := file.Write(clip.Data); err != nil {
		file.Close()
		os.Remove(path)
		return "", fmt.Errorf("write temp audio: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close temp audio: %w", err)
	}
	return path, nil
}

// TempName builds "mixlingo-<uuid>-<sanitized filename>".
func TempName(filename string) string {
	return "mixlingo-" + uuid.NewString() + "-" + SanitizeFilename(filename)
}

// SanitizeFilename reduces a client-supplied name to a safe base name,
// defaulting to DefaultFilename.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" || strings.Trim(cleaned, "_") == "" {
		return DefaultFilename
	}
	return cleaned
}
