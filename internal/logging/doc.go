// Package logging assembles structured slog loggers and formatting helpers used
// across the relay server and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code tags log lines
// with connection IDs, event names, and client sequence numbers. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
