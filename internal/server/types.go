package server

import (
	"mixlingo/internal/language"
	"mixlingo/internal/relay"
)

// StatusResponse is the GET /status payload.
type StatusResponse struct {
	Status         string             `json:"status"`
	Connections    int64              `json:"connections"`
	SessionsServed uint64             `json:"sessionsServed"`
	Uptime         string             `json:"uptime"`
	UptimeSeconds  float64            `json:"uptimeSeconds"`
	InFlight       InFlight           `json:"inFlight"`
	Capabilities   relay.Capabilities `json:"capabilities"`
	GRPCAddress    string             `json:"grpcAddress,omitempty"`
}

// InFlight counts relay requests by pipeline state.
type InFlight struct {
	AwaitingMap         int64 `json:"awaitingMap"`
	AwaitingTranslation int64 `json:"awaitingTranslation"`
}

// TranscribeResponse is the POST /api/transcribe success payload.
type TranscribeResponse struct {
	TranscribedText string `json:"transcribedText"`
}

// LanguagesResponse is the GET /api/languages payload.
type LanguagesResponse struct {
	Languages     []language.Option `json:"languages"`
	DefaultInput  string            `json:"defaultInput"`
	DefaultOutput string            `json:"defaultOutput"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
