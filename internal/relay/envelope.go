package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mixlingo/internal/language"
	"mixlingo/internal/services"
)

// Inbound events.
const (
	EventSendText        = "sendText"
	EventDetectLanguages = "detectLanguages"
	EventSendAudio       = "sendAudio"
)

// Outbound events.
const (
	EventReceiveAnnotatedText   = "receiveAnnotatedText"
	EventReceiveTranslation     = "receiveTranslation"
	EventTranslationError       = "translationError"
	EventLanguageDetected       = "languageDetected"
	EventLanguageDetectionError = "languageDetectionError"
	EventReceiveTranscription   = "receiveTranscription"
	EventTranscriptionError     = "transcriptionError"
	EventError                  = "error"
)

// Messages carried by the error events.
const (
	MessageTranslationFailed   = "Failed to translate text. Please try again."
	MessageDetectionFailed     = "Failed to detect languages."
	MessageTranscriptionFailed = "Failed to transcribe audio."
)

// Envelope is the frame exchanged over every relay transport. Seq is
// optional; when a client sets it, every emission for that request echoes it.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Seq   *uint64         `json:"seq,omitempty"`
}

// NewEnvelope marshals payload into an envelope for event.
func NewEnvelope(event string, seq *uint64, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data, Seq: seq}, nil
}

// Decode unmarshals the envelope data into v.
func (e Envelope) Decode(v any) error {
	if isAbsent(e.Data) {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return services.Wrap(services.ErrValidation, "relay", "decode "+e.Event, "malformed payload", err)
	}
	return nil
}

// Hints accepts either a JSON array of codes or a single code string.
type Hints []string

// UnmarshalJSON implements json.Unmarshaler.
func (h *Hints) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*h = Hints{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*h = list
	return nil
}

// TextRequest is the sendText payload. A bare JSON string is accepted as
// the text.
type TextRequest struct {
	Text           string `json:"text"`
	Languages      Hints  `json:"languages,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// DecodeTextRequest parses a sendText payload and applies the defaults:
// languages ["auto"] and target "en".
func DecodeTextRequest(data json.RawMessage) (TextRequest, error) {
	var req TextRequest
	err := decodeTextOrObject(data, &req.Text, &req)
	req.applyDefaults()
	return req, err
}

func (r *TextRequest) applyDefaults() {
	if len(r.Languages) == 0 {
		r.Languages = Hints{language.Auto}
	}
	r.TargetLanguage = strings.TrimSpace(r.TargetLanguage)
	if r.TargetLanguage == "" {
		r.TargetLanguage = language.DefaultTarget
	}
}

// DetectRequest is the detectLanguages payload.
type DetectRequest struct {
	Text string `json:"text"`
}

// DecodeDetectRequest parses a detectLanguages payload.
func DecodeDetectRequest(data json.RawMessage) (DetectRequest, error) {
	var req DetectRequest
	err := decodeTextOrObject(data, &req.Text, &req)
	return req, err
}

// AudioRequest is the sendAudio payload. Audio is base64 in JSON.
type AudioRequest struct {
	Audio          []byte `json:"audio"`
	Filename       string `json:"filename,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
}

// Detection is the languageDetected payload.
type Detection struct {
	TaggedText string `json:"taggedText"`
}

// Transcription is the receiveTranscription payload.
type Transcription struct {
	Text string `json:"text"`
}

func decodeTextOrObject(data json.RawMessage, text *string, obj any) error {
	if isAbsent(data) {
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	target := obj
	if trimmed[0] == '"' {
		target = text
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return services.Wrap(services.ErrValidation, "relay", "decode", "malformed payload", err)
	}
	return nil
}

func isAbsent(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
