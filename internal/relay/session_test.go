package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mixlingo/internal/capability"
	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
	"mixlingo/internal/services"
	"mixlingo/internal/tags"
	"mixlingo/internal/testsupport"
	"mixlingo/internal/transcriber"
	"mixlingo/internal/translator"
)

func seqPtr(v uint64) *uint64 { return &v }

func mustEnvelope(t *testing.T, event string, seq *uint64, payload any) Envelope {
	t.Helper()
	env, err := NewEnvelope(event, seq, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func nextEnvelope(t *testing.T, out *Outbox) Envelope {
	t.Helper()
	select {
	case env := <-out.Messages():
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for emission")
		return Envelope{}
	}
}

func decodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s data %s: %v", env.Event, env.Data, err)
	}
	return v
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestSession(pipeline Pipeline, hub *Hub) (*Session, *Outbox) {
	out := NewOutbox(16)
	return NewSession(pipeline, out, hub, logging.NewNop()), out
}

func TestSessionSendTextFallback(t *testing.T) {
	session, out := newTestSession(Pipeline{}, nil)
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, seqPtr(7), TextRequest{Text: "Hello", TargetLanguage: "es"}))
	session.Wait()

	annotated := nextEnvelope(t, out)
	if annotated.Event != EventReceiveAnnotatedText {
		t.Fatalf("first event = %q, want %q", annotated.Event, EventReceiveAnnotatedText)
	}
	if annotated.Seq == nil || *annotated.Seq != 7 {
		t.Fatalf("annotated seq = %v, want 7", annotated.Seq)
	}
	result := decodeData[mapper.Result](t, annotated)
	if result.MappedText != "[[EN]]Hello" {
		t.Fatalf("annotatedText = %q", result.MappedText)
	}
	if len(result.DetectedLanguages) != 1 || result.DetectedLanguages[0] != "EN" {
		t.Fatalf("detectedLanguages = %v", result.DetectedLanguages)
	}

	translation := nextEnvelope(t, out)
	if translation.Event != EventReceiveTranslation {
		t.Fatalf("second event = %q", translation.Event)
	}
	if got := decodeData[string](t, translation); got != "[MOCK TRANSLATION TO ES] [MOCK] olleH" {
		t.Fatalf("translation = %q", got)
	}
}

func TestSessionSendTextBareStringDefaultsToEnglish(t *testing.T) {
	session, out := newTestSession(Pipeline{}, nil)
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, nil, "[[ru]]Привет"))
	session.Wait()

	annotated := nextEnvelope(t, out)
	if annotated.Seq != nil {
		t.Fatalf("seq should be omitted when the client sent none, got %d", *annotated.Seq)
	}
	if result := decodeData[mapper.Result](t, annotated); result.MappedText != "[[RU]]Привет" {
		t.Fatalf("annotatedText = %q", result.MappedText)
	}
	translation := decodeData[string](t, nextEnvelope(t, out))
	target, source, ok := translator.ParseMock(translation)
	if !ok || target != "EN" || source != "Привет" {
		t.Fatalf("ParseMock(%q) = %q, %q, %v", translation, target, source, ok)
	}
}

func TestSessionSendTextEmptyInput(t *testing.T) {
	gen := &testsupport.FakeGenerator{Reply: "[[EN]]unused"}
	pipeline := Pipeline{
		Mapper:     mapper.NewLive(gen, 0.1, logging.NewNop()),
		Translator: translator.NewLive(gen, 0.3, logging.NewNop()),
	}
	for _, payload := range []any{"", "   ", TextRequest{Text: "[[EN]]  "}, nil, 42} {
		session, out := newTestSession(pipeline, nil)
		session.Handle(context.Background(), mustEnvelope(t, EventSendText, nil, payload))
		session.Wait()

		result := decodeData[mapper.Result](t, nextEnvelope(t, out))
		if result.MappedText != "" || result.DetectedLanguages == nil || len(result.DetectedLanguages) != 0 {
			t.Fatalf("payload %v: annotated = %+v", payload, result)
		}
		if got := decodeData[string](t, nextEnvelope(t, out)); got != "" {
			t.Fatalf("payload %v: translation = %q", payload, got)
		}
	}
	if gen.Calls() != 0 {
		t.Fatalf("empty input reached the capability %d times", gen.Calls())
	}
}

func TestSessionTranslationUnavailable(t *testing.T) {
	gen := &testsupport.FakeGenerator{Err: services.Wrap(services.ErrConfiguration, "llm", "complete", "api key rejected", nil)}
	hub := NewHub()
	session, out := newTestSession(Pipeline{Translator: translator.NewLive(gen, 0.3, logging.NewNop())}, hub)
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, seqPtr(3), "hola"))
	session.Wait()

	if env := nextEnvelope(t, out); env.Event != EventReceiveAnnotatedText {
		t.Fatalf("first event = %q", env.Event)
	}
	failure := nextEnvelope(t, out)
	if failure.Event != EventTranslationError || failure.Seq == nil || *failure.Seq != 3 {
		t.Fatalf("failure = %+v", failure)
	}
	if msg := decodeData[string](t, failure); msg != MessageTranslationFailed {
		t.Fatalf("message = %q", msg)
	}
	if stats := hub.Snapshot(); stats.AwaitingMap != 0 || stats.AwaitingTranslation != 0 {
		t.Fatalf("in-flight counts leaked: %+v", stats)
	}
}

func TestSessionDetectLanguages(t *testing.T) {
	gen := &testsupport.FakeGenerator{Reply: "[[EN]]I love [[ES]]tacos"}
	session, out := newTestSession(Pipeline{Mapper: mapper.NewLive(gen, 0.1, logging.NewNop())}, nil)
	session.Handle(context.Background(), mustEnvelope(t, EventDetectLanguages, seqPtr(1), DetectRequest{Text: "I love tacos"}))
	session.Wait()

	env := nextEnvelope(t, out)
	if env.Event != EventLanguageDetected {
		t.Fatalf("event = %q", env.Event)
	}
	if got := decodeData[Detection](t, env); got.TaggedText != "[[EN]]I love [[ES]]tacos" {
		t.Fatalf("taggedText = %q", got.TaggedText)
	}
	prompts := gen.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one mapping call, got %d", len(prompts))
	}

	session.Handle(context.Background(), mustEnvelope(t, EventDetectLanguages, nil, ""))
	session.Wait()
	if got := decodeData[Detection](t, nextEnvelope(t, out)); got.TaggedText != "" {
		t.Fatalf("empty detect taggedText = %q", got.TaggedText)
	}
}

func TestSessionSendAudioFallback(t *testing.T) {
	session, out := newTestSession(Pipeline{}, nil)
	session.Handle(context.Background(), mustEnvelope(t, EventSendAudio, seqPtr(9), AudioRequest{Audio: []byte("RIFF"), Filename: "clip.webm"}))
	session.Wait()

	transcript := nextEnvelope(t, out)
	if transcript.Event != EventReceiveTranscription {
		t.Fatalf("first event = %q", transcript.Event)
	}
	if got := decodeData[Transcription](t, transcript); got.Text != transcriber.MockTranscription {
		t.Fatalf("transcription = %q", got.Text)
	}
	annotated := decodeData[mapper.Result](t, nextEnvelope(t, out))
	if annotated.MappedText != tags.Wrap("EN", transcriber.MockTranscription) {
		t.Fatalf("annotatedText = %q", annotated.MappedText)
	}
	if env := nextEnvelope(t, out); env.Event != EventReceiveTranslation || *env.Seq != 9 {
		t.Fatalf("translation envelope = %+v", env)
	}
}

func TestSessionSendAudioFailure(t *testing.T) {
	speech := &testsupport.FakeSpeech{Err: errors.New("upstream 502")}
	pipeline := Pipeline{Transcriber: transcriber.NewLive(speech, t.TempDir(), logging.NewNop())}

	cases := []struct {
		name    string
		payload any
	}{
		{name: "capability error", payload: AudioRequest{Audio: []byte("data")}},
		{name: "empty audio", payload: AudioRequest{}},
		{name: "malformed", payload: "not an object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session, out := newTestSession(pipeline, nil)
			session.Handle(context.Background(), mustEnvelope(t, EventSendAudio, nil, tc.payload))
			session.Wait()
			env := nextEnvelope(t, out)
			if env.Event != EventTranscriptionError {
				t.Fatalf("event = %q", env.Event)
			}
			if msg := decodeData[string](t, env); msg != MessageTranscriptionFailed {
				t.Fatalf("message = %q", msg)
			}
		})
	}
}

func TestSessionUnknownEvent(t *testing.T) {
	session, out := newTestSession(Pipeline{}, nil)
	session.Handle(context.Background(), Envelope{Event: "launchRockets", Seq: seqPtr(4)})
	session.Wait()

	env := nextEnvelope(t, out)
	if env.Event != EventError || *env.Seq != 4 {
		t.Fatalf("envelope = %+v", env)
	}
	if msg := decodeData[string](t, env); msg != "Unknown event: launchRockets" {
		t.Fatalf("message = %q", msg)
	}
}

type panickingMapper struct{}

func (panickingMapper) Map(context.Context, string, []string) (tags.TaggedText, error) {
	panic("mapper exploded")
}

func (panickingMapper) Mode() capability.Mode { return capability.ModeLive }

func TestSessionRecoversFromPanic(t *testing.T) {
	hub := NewHub()
	session, out := newTestSession(Pipeline{Mapper: panickingMapper{}}, hub)
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, nil, "boom"))
	session.Wait()

	if env := nextEnvelope(t, out); env.Event != EventTranslationError {
		t.Fatalf("event = %q", env.Event)
	}
	if stats := hub.Snapshot(); stats.AwaitingMap != 0 {
		t.Fatalf("awaitingMap = %d after panic", stats.AwaitingMap)
	}

	// The session keeps serving after a panic.
	session.Handle(context.Background(), Envelope{Event: "ping"})
	session.Wait()
	if env := nextEnvelope(t, out); env.Event != EventError {
		t.Fatalf("event after panic = %q", env.Event)
	}
}

func TestSessionConcurrentRequestsTracked(t *testing.T) {
	block := make(chan struct{})
	gen := &testsupport.FakeGenerator{Reply: "[[EN]]same text", Block: block}
	hub := NewHub()
	session, out := newTestSession(Pipeline{Mapper: mapper.NewLive(gen, 0.1, logging.NewNop())}, hub)

	session.Handle(context.Background(), mustEnvelope(t, EventSendText, seqPtr(1), "same text"))
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, seqPtr(2), "same text"))
	waitFor(t, func() bool { return hub.Snapshot().AwaitingMap == 2 })

	close(block)
	session.Wait()

	seen := map[uint64]int{}
	for range 4 {
		env := nextEnvelope(t, out)
		if env.Seq == nil {
			t.Fatalf("emission without seq: %+v", env)
		}
		seen[*env.Seq]++
	}
	if seen[1] != 2 || seen[2] != 2 {
		t.Fatalf("emissions per seq = %v", seen)
	}
	if stats := hub.Snapshot(); stats.AwaitingMap != 0 || stats.AwaitingTranslation != 0 {
		t.Fatalf("in-flight counts after completion: %+v", stats)
	}
}

func TestSessionDropsEmissionsAfterClose(t *testing.T) {
	session, out := newTestSession(Pipeline{}, nil)
	out.Close()
	session.Handle(context.Background(), mustEnvelope(t, EventSendText, nil, "late"))
	session.Wait()

	select {
	case env := <-out.Messages():
		t.Fatalf("unexpected emission after close: %+v", env)
	default:
	}
}

func TestSessionCancelledContextIsSilent(t *testing.T) {
	gen := &testsupport.FakeGenerator{Block: make(chan struct{})}
	session, out := newTestSession(Pipeline{Mapper: mapper.NewLive(gen, 0.1, logging.NewNop())}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	session.Handle(ctx, mustEnvelope(t, EventDetectLanguages, nil, "hello"))
	waitFor(t, func() bool { return gen.Calls() == 1 })
	cancel()
	session.Wait()

	select {
	case env := <-out.Messages():
		t.Fatalf("cancelled request emitted %+v", env)
	default:
	}
}

func TestPipelineCapabilities(t *testing.T) {
	if caps := (Pipeline{}).Capabilities(); caps.TextGeneration != capability.ModeFallback || caps.SpeechToText != capability.ModeFallback {
		t.Fatalf("empty pipeline caps = %+v", caps)
	}
	live := Pipeline{
		Mapper:      mapper.NewLive(&testsupport.FakeGenerator{}, 0.1, nil),
		Transcriber: transcriber.NewLive(&testsupport.FakeSpeech{}, t.TempDir(), nil),
	}
	if caps := live.Capabilities(); caps.TextGeneration != capability.ModeLive || caps.SpeechToText != capability.ModeLive {
		t.Fatalf("live pipeline caps = %+v", caps)
	}
}
