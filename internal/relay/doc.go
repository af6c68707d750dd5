// Package relay implements the per-connection duplex channel between clients
// and the mapping, translation, and transcription pipeline.
//
// A Session is transport agnostic: it decodes inbound envelopes, runs each
// request on its own goroutine, and queues replies on an Outbox that a
// single writer drains. WSHandler serves sessions over WebSocket at /ws and
// GRPCService serves them over the mixlingo.Relay/Stream bidirectional
// stream using a JSON codec. Hub aggregates connection and in-flight counts
// for the status endpoint.
package relay
