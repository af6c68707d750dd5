package relay

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"mixlingo/internal/services"
)

func TestDecodeTextRequest(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantText  string
		wantLangs []string
		wantTo    string
		wantErr   bool
	}{
		{name: "bare string", data: `"hola amigo"`, wantText: "hola amigo", wantLangs: []string{"auto"}, wantTo: "en"},
		{name: "object", data: `{"text":"hi","languages":["en","es"],"targetLanguage":"fr"}`, wantText: "hi", wantLangs: []string{"en", "es"}, wantTo: "fr"},
		{name: "single hint string", data: `{"text":"hi","languages":"kk"}`, wantText: "hi", wantLangs: []string{"kk"}, wantTo: "en"},
		{name: "empty languages", data: `{"text":"hi","languages":[],"targetLanguage":"  "}`, wantText: "hi", wantLangs: []string{"auto"}, wantTo: "en"},
		{name: "null", data: `null`, wantLangs: []string{"auto"}, wantTo: "en"},
		{name: "absent", data: ``, wantLangs: []string{"auto"}, wantTo: "en"},
		{name: "number", data: `17`, wantLangs: []string{"auto"}, wantTo: "en", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := DecodeTextRequest(json.RawMessage(tc.data))
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Text != tc.wantText {
				t.Errorf("text = %q, want %q", req.Text, tc.wantText)
			}
			if !slices.Equal(req.Languages, tc.wantLangs) {
				t.Errorf("languages = %v, want %v", req.Languages, tc.wantLangs)
			}
			if req.TargetLanguage != tc.wantTo {
				t.Errorf("target = %q, want %q", req.TargetLanguage, tc.wantTo)
			}
		})
	}
}

func TestDecodeDetectRequest(t *testing.T) {
	for data, want := range map[string]string{
		`"bonjour"`:          "bonjour",
		`{"text":"bonjour"}`: "bonjour",
		`null`:               "",
	} {
		req, err := DecodeDetectRequest(json.RawMessage(data))
		if err != nil {
			t.Fatalf("DecodeDetectRequest(%s): %v", data, err)
		}
		if req.Text != want {
			t.Errorf("DecodeDetectRequest(%s) text = %q, want %q", data, req.Text, want)
		}
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	env, err := NewEnvelope(EventReceiveTranslation, seqPtr(12), "hola")
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(raw), `{"event":"receiveTranslation","data":"hola","seq":12}`; got != want {
		t.Fatalf("wire = %s, want %s", got, want)
	}

	env, _ = NewEnvelope(EventLanguageDetected, nil, Detection{})
	raw, _ = json.Marshal(env)
	if got, want := string(raw), `{"event":"languageDetected","data":{"taggedText":""}}`; got != want {
		t.Fatalf("wire without seq = %s, want %s", got, want)
	}
}

func TestAudioRequestDecodesBase64(t *testing.T) {
	env := Envelope{Event: EventSendAudio, Data: json.RawMessage(`{"audio":"aGVsbG8=","filename":"a.wav"}`)}
	var req AudioRequest
	if err := env.Decode(&req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(req.Audio) != "hello" || req.Filename != "a.wav" {
		t.Fatalf("decoded = %+v", req)
	}
}
