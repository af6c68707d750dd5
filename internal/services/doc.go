// Package services defines shared utilities consumed by the pipeline
// components and their external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp connection IDs, event names, client sequence
//     numbers, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which sorts
//     failures into input, capability, and transport classes so callers can
//     pick between a fallback value and a named error event.
//
// The llm and stt subpackages hold the HTTP clients for the hosted
// text-generation and speech-to-text capabilities.
package services
