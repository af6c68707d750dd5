// Package relayclient is the Go client for the relay WebSocket endpoint. The
// CLI uses it to drive a running server.
package relayclient
