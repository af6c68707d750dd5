package testsupport

import (
	"context"
	"os"
	"sync"

	"mixlingo/internal/capability"
)

// FakeGenerator is a scripted capability.TextGenerator. Respond, when set,
// decides each reply; otherwise Reply and Err are returned.
type FakeGenerator struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Respond func(ctx context.Context, prompt capability.Prompt) (string, error)
	// Block, when non-nil, holds every call until it is closed or ctx ends.
	Block   chan struct{}
	prompts []capability.Prompt
}

// Generate implements capability.TextGenerator.
func (f *FakeGenerator) Generate(ctx context.Context, prompt capability.Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	respond, reply, err, block := f.Respond, f.Reply, f.Err, f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if respond != nil {
		return respond(ctx, prompt)
	}
	return reply, err
}

// Prompts returns a copy of every prompt received so far.
func (f *FakeGenerator) Prompts() []capability.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capability.Prompt(nil), f.prompts...)
}

// Calls returns how many times Generate was invoked.
func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// FakeSpeech is a scripted capability.SpeechToText that records the bytes it
// was asked to transcribe.
type FakeSpeech struct {
	mu    sync.Mutex
	Text  string
	Err   error
	paths []string
	seen  [][]byte
}

// TranscribeFile implements capability.SpeechToText.
func (f *FakeSpeech) TranscribeFile(_ context.Context, path string) (string, error) {
	data, readErr := os.ReadFile(path)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.seen = append(f.seen, data)
	text, err := f.Text, f.Err
	f.mu.Unlock()
	if readErr != nil {
		return "", readErr
	}
	return text, err
}

// Paths returns every staged file path the fake was handed.
func (f *FakeSpeech) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// Payloads returns the audio bytes read from each staged file.
func (f *FakeSpeech) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.seen...)
}
