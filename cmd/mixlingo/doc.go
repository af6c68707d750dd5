// Package main hosts the mixlingo CLI entrypoint and command graph.
//
// The Cobra command tree runs the relay server in the foreground, drives the
// mapping, translation, and transcription pipeline locally for one-off
// requests, and talks to a running server over its WebSocket relay and HTTP
// endpoints for detection and status. Configuration is resolved once per
// invocation and shared by every subcommand.
package main
