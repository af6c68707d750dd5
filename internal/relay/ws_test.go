package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
)

func startWS(t *testing.T, hub *Hub, origins ...string) string {
	t.Helper()
	handler := NewWSHandler(Pipeline{}, hub, logging.NewNop(), WSOptions{AllowedOrigins: origins})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func TestWSRelaysSendText(t *testing.T) {
	hub := NewHub()
	conn := dialWS(t, startWS(t, hub, "http://localhost:5173"), http.Header{"Origin": {"http://localhost:5173"}})

	if err := conn.WriteJSON(mustEnvelope(t, EventSendText, seqPtr(5), TextRequest{Text: "Hola", TargetLanguage: "en"})); err != nil {
		t.Fatalf("write: %v", err)
	}
	annotated := readEnvelope(t, conn)
	if annotated.Event != EventReceiveAnnotatedText || annotated.Seq == nil || *annotated.Seq != 5 {
		t.Fatalf("annotated envelope = %+v", annotated)
	}
	if result := decodeData[mapper.Result](t, annotated); result.MappedText != "[[EN]]Hola" {
		t.Fatalf("annotatedText = %q", result.MappedText)
	}
	translation := readEnvelope(t, conn)
	if got := decodeData[string](t, translation); got != "[MOCK TRANSLATION TO EN] [MOCK] aloH" {
		t.Fatalf("translation = %q", got)
	}
	if got := hub.Snapshot().Connections; got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}

	conn.Close()
	waitFor(t, func() bool { return hub.Snapshot().Connections == 0 })
	if got := hub.Snapshot().SessionsServed; got != 1 {
		t.Fatalf("sessions served = %d, want 1", got)
	}
}

func TestWSMalformedFrameKeepsConnection(t *testing.T) {
	conn := dialWS(t, startWS(t, nil, "*"), nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if env := readEnvelope(t, conn); env.Event != EventError {
		t.Fatalf("event = %q, want %q", env.Event, EventError)
	}

	if err := conn.WriteJSON(mustEnvelope(t, EventDetectLanguages, nil, "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if env := readEnvelope(t, conn); env.Event != EventLanguageDetected {
		t.Fatalf("event = %q, want %q", env.Event, EventLanguageDetected)
	}
}

func TestWSRejectsForeignOrigin(t *testing.T) {
	url := startWS(t, nil, "http://localhost:5173")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected dial to fail for foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", resp)
	}
	resp.Body.Close()
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:5173/", "https://app.example.com"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"HTTP://LOCALHOST:5173", true},
		{"https://app.example.com", true},
		{"http://app.example.com", false},
		{"http://localhost:3000", false},
	}
	for _, tc := range tests {
		if got := OriginAllowed(allowed, tc.origin); got != tc.want {
			t.Errorf("OriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
	if !OriginAllowed([]string{"*"}, "http://anything.example") {
		t.Error("wildcard should allow any origin")
	}
}
