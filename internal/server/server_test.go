package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mixlingo/internal/capability"
	"mixlingo/internal/config"
	"mixlingo/internal/logging"
	"mixlingo/internal/mapper"
	"mixlingo/internal/relay"
	"mixlingo/internal/server"
	"mixlingo/internal/testsupport"
	"mixlingo/internal/transcriber"
)

func newServer(t *testing.T, cfg *config.Config, pipeline relay.Pipeline) *server.Server {
	t.Helper()
	srv, err := server.New(cfg, pipeline, logging.NewNop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv
}

func serveHTTP(t *testing.T, pipeline relay.Pipeline, opts ...testsupport.ConfigOption) (*server.Server, *httptest.Server) {
	t.Helper()
	srv := newServer(t, testsupport.NewConfig(t, opts...), pipeline)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func multipartUpload(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	} else if err := writer.WriteField("note", "no file here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestRootLiveness(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != server.LivenessText {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d", resp.StatusCode)
	}
}

func TestStatusReportsCapabilitiesAndConnections(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{})

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	status := decodeJSON[server.StatusResponse](t, resp)
	if status.Status != "ok" || status.Connections != 0 {
		t.Fatalf("status = %+v", status)
	}
	if status.Capabilities.TextGeneration != capability.ModeFallback || status.Capabilities.SpeechToText != capability.ModeFallback {
		t.Fatalf("capabilities = %+v", status.Capabilities)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial /ws: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/status")
		if err != nil {
			t.Fatalf("GET /status: %v", err)
		}
		if decodeJSON[server.StatusResponse](t, resp).Connections == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("status never reported the open connection")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStatusLiveCapabilities(t *testing.T) {
	pipeline := relay.Pipeline{
		Mapper:      mapper.NewLive(&testsupport.FakeGenerator{}, 0.1, nil),
		Transcriber: transcriber.NewLive(&testsupport.FakeSpeech{}, t.TempDir(), nil),
	}
	_, ts := serveHTTP(t, pipeline)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	status := decodeJSON[server.StatusResponse](t, resp)
	if status.Capabilities.TextGeneration != capability.ModeLive || status.Capabilities.SpeechToText != capability.ModeLive {
		t.Fatalf("capabilities = %+v", status.Capabilities)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	failing := relay.Pipeline{Transcriber: transcriber.NewLive(&testsupport.FakeSpeech{Err: errors.New("upstream down")}, t.TempDir(), nil)}
	working := relay.Pipeline{Transcriber: transcriber.NewLive(&testsupport.FakeSpeech{Text: "  hola mundo "}, t.TempDir(), nil)}

	tests := []struct {
		name       string
		pipeline   relay.Pipeline
		field      string
		data       []byte
		wantStatus int
		wantText   string
		wantError  string
	}{
		{name: "fallback", pipeline: relay.Pipeline{}, field: "audioFile", data: []byte("webm"), wantStatus: http.StatusOK, wantText: transcriber.MockTranscription},
		{name: "live", pipeline: working, field: "audioFile", data: []byte("webm"), wantStatus: http.StatusOK, wantText: "hola mundo"},
		{name: "missing file", pipeline: relay.Pipeline{}, wantStatus: http.StatusBadRequest, wantError: "No audio file uploaded."},
		{name: "wrong field", pipeline: relay.Pipeline{}, field: "file", data: []byte("webm"), wantStatus: http.StatusBadRequest, wantError: "No audio file uploaded."},
		{name: "empty file", pipeline: relay.Pipeline{}, field: "audioFile", data: nil, wantStatus: http.StatusBadRequest, wantError: "Uploaded audio file is empty."},
		{name: "capability failure", pipeline: failing, field: "audioFile", data: []byte("webm"), wantStatus: http.StatusInternalServerError, wantError: "Failed to transcribe audio."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ts := serveHTTP(t, tc.pipeline)
			body, contentType := multipartUpload(t, tc.field, "clip.webm", tc.data)
			resp, err := http.Post(ts.URL+"/api/transcribe", contentType, body)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				resp.Body.Close()
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if tc.wantError != "" {
				if got := decodeJSON[server.ErrorResponse](t, resp); got.Error != tc.wantError {
					t.Fatalf("error = %q, want %q", got.Error, tc.wantError)
				}
				return
			}
			if got := decodeJSON[server.TranscribeResponse](t, resp); got.TranscribedText != tc.wantText {
				t.Fatalf("transcribedText = %q, want %q", got.TranscribedText, tc.wantText)
			}
		})
	}
}

func TestTranscribeRejectsOversizedUpload(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{}, func(cfg *config.Config) { cfg.Server.MaxUploadMB = 1 })
	body, contentType := multipartUpload(t, "audioFile", "big.webm", bytes.Repeat([]byte{1}, 2<<20))

	resp, err := http.Post(ts.URL+"/api/transcribe", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
}

func TestTranscribeRequiresPost(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{})
	resp, err := http.Get(ts.URL + "/api/transcribe")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestLanguagesEndpoint(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{})
	resp, err := http.Get(ts.URL + "/api/languages")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	payload := decodeJSON[server.LanguagesResponse](t, resp)
	if payload.DefaultInput != "auto" || payload.DefaultOutput != "en" {
		t.Fatalf("defaults = %q/%q", payload.DefaultInput, payload.DefaultOutput)
	}
	if len(payload.Languages) != 10 {
		t.Fatalf("languages = %d entries", len(payload.Languages))
	}
	if payload.Languages[0].Code != "en" || payload.Languages[0].Name != "English" {
		t.Fatalf("first language = %+v", payload.Languages[0])
	}
}

func TestCORS(t *testing.T) {
	_, ts := serveHTTP(t, relay.Pipeline{}, testsupport.WithAllowedOrigins("http://localhost:5173"))

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/transcribe", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Fatalf("allow methods = %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin received allow header %q", got)
	}
}

func TestStartEnforcesSingleInstanceAndServesGRPC(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) { cfg.Server.GRPCBind = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newServer(t, cfg, relay.Pipeline{})
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.Addr() == "" || first.GRPCAddr() == "" {
		t.Fatalf("addresses not bound: http=%q grpc=%q", first.Addr(), first.GRPCAddr())
	}

	second := newServer(t, cfg, relay.Pipeline{})
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second server started while the lock was held")
	}

	resp, err := http.Get("http://" + first.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	status := decodeJSON[server.StatusResponse](t, resp)
	if status.GRPCAddress != first.GRPCAddr() {
		t.Fatalf("grpcAddress = %q, want %q", status.GRPCAddress, first.GRPCAddr())
	}

	cancel()
	first.Stop()

	third := newServer(t, cfg, relay.Pipeline{})
	if err := third.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	third.Stop()
}
