// Package stt uploads audio to an OpenAI-compatible speech-to-text endpoint
// (Lemonfox by default) and decodes the transcription.
//
// Failures carry the services markers so callers can tell a rejected
// credential (services.ErrConfiguration) from a provider outage
// (services.ErrExternalTool).
package stt
