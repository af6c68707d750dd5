// Package server hosts the HTTP surface: liveness and status endpoints, the
// multipart transcription upload, the language list, and the WebSocket
// relay, plus the optional gRPC relay listener.
package server
