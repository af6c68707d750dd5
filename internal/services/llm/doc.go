// Package llm provides an OpenAI-compatible chat client used for language
// mapping and translation.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive plain-text content.
// Client.HealthCheck: verify API key and model availability.
// StripCodeFence: remove a fenced block wrapper from model output.
//
// # Errors
//
// Failures are tagged with the services markers: a missing key or an HTTP
// 401/403 wraps services.ErrConfiguration, timeouts wrap services.ErrTimeout,
// and every other provider failure wraps services.ErrExternalTool.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, empty content, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Retry-After is honoured. Context cancellation aborts retries
// immediately.
package llm
