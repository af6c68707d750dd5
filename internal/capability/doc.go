// Package capability defines the black-box external services the pipeline
// depends on: text generation (used for language mapping and translation)
// and speech-to-text. Live adapters wrap the HTTP clients in
// internal/services; tests substitute fakes.
package capability
