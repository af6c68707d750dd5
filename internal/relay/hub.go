package relay

import "sync/atomic"

// Hub aggregates live connection and in-flight request counts across all
// transports.
type Hub struct {
	connections         atomic.Int64
	sessions            atomic.Uint64
	awaitingMap         atomic.Int64
	awaitingTranslation atomic.Int64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Connections         int64  `json:"connections"`
	SessionsServed      uint64 `json:"sessionsServed"`
	AwaitingMap         int64  `json:"awaitingMap"`
	AwaitingTranslation int64  `json:"awaitingTranslation"`
}

// Snapshot reads the current counters.
func (h *Hub) Snapshot() Stats {
	if h == nil {
		return Stats{}
	}
	return Stats{
		Connections:         h.connections.Load(),
		SessionsServed:      h.sessions.Load(),
		AwaitingMap:         h.awaitingMap.Load(),
		AwaitingTranslation: h.awaitingTranslation.Load(),
	}
}

func (h *Hub) connect() {
	if h == nil {
		return
	}
	h.connections.Add(1)
	h.sessions.Add(1)
}

func (h *Hub) disconnect() {
	if h == nil {
		return
	}
	h.connections.Add(-1)
}

func (h *Hub) move(from, to State) {
	if h == nil || from == to {
		return
	}
	h.counter(from, -1)
	h.counter(to, 1)
}

func (h *Hub) counter(s State, delta int64) {
	switch s {
	case AwaitingMap:
		h.awaitingMap.Add(delta)
	case AwaitingTranslation:
		h.awaitingTranslation.Add(delta)
	}
}
