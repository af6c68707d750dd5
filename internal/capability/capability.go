package capability

import (
	"context"

	"mixlingo/internal/services/llm"
	"mixlingo/internal/services/stt"
)

// Mode names which variant of a pipeline component is active.
type Mode string

const (
	ModeLive     Mode = "live"
	ModeFallback Mode = "fallback"
)

// Prompt is a single-turn text generation request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// SpeechToText transcribes an audio file on disk.
type SpeechToText interface {
	TranscribeFile(ctx context.Context, path string) (string, error)
}

// LLM adapts the chat completion client to TextGenerator.
type LLM struct {
	client *llm.Client
}

// NewLLM wraps client.
func NewLLM(client *llm.Client) *LLM {
	return &LLM{client: client}
}

// Generate implements TextGenerator.
func (g *LLM) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return g.client.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: prompt.Temperature,
	})
}

// Whisper adapts the transcription client to SpeechToText.
type Whisper struct {
	client *stt.Client
}

// NewWhisper wraps client.
func NewWhisper(client *stt.Client) *Whisper {
	return &Whisper{client: client}
}

// TranscribeFile implements SpeechToText.
func (w *Whisper) TranscribeFile(ctx context.Context, path string) (string, error) {
	resp, err := w.client.Transcribe(ctx, stt.Request{FilePath: path})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt Prompt) (string, error)

// Generate implements TextGenerator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}

// Unwrap strips a code fence the model may have wrapped around its answer.
func Unwrap(completion string) string {
	return llm.StripCodeFence(completion)
}
