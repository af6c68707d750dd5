package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mixlingo/internal/services"
)

func completionHandler(t *testing.T, content string, inspect func(chatCompletionRequest)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(req)
		}
		payload := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func TestClientComplete(t *testing.T) {
	var seen chatCompletionRequest
	server := httptest.NewServer(completionHandler(t, "  [[EN]]hello  ", func(req chatCompletionRequest) { seen = req }))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo-model"})
	got, err := client.Complete(context.Background(), Request{System: "sys", User: "hello", Temperature: 0.1})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if got != "[[EN]]hello" {
		t.Fatalf("unexpected content %q", got)
	}
	if seen.Model != "demo-model" || seen.Temperature != 0.1 || seen.MaxTokens != defaultMaxTokens {
		t.Fatalf("unexpected request %+v", seen)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "hello" {
		t.Fatalf("unexpected messages %+v", seen.Messages)
	}
}

func TestClientCompleteOmitsEmptySystemPrompt(t *testing.T) {
	var seen chatCompletionRequest
	server := httptest.NewServer(completionHandler(t, "ok", func(req chatCompletionRequest) { seen = req }))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1"})
	if _, err := client.Complete(context.Background(), Request{User: "hi", MaxTokens: 7}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(seen.Messages) != 1 || seen.Messages[0].Role != "user" || seen.MaxTokens != 7 {
		t.Fatalf("unexpected request %+v", seen)
	}
}

func TestClientCompleteRequiresKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Complete(context.Background(), Request{User: "hi"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	_, err = NewClient(Config{APIKey: "k"}).Complete(context.Background(), Request{User: "  "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClientStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusForbidden, services.ErrConfiguration},
		{http.StatusBadRequest, services.ErrExternalTool},
		{http.StatusInternalServerError, services.ErrExternalTool},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			client := NewClient(
				Config{APIKey: "test", BaseURL: server.URL},
				WithRetryMaxAttempts(1),
			)
			_, err := client.Complete(context.Background(), Request{User: "hi"})
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			var statusErr *StatusError
			if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.status {
				t.Fatalf("expected StatusError %d, got %v", tt.status, err)
			}
		})
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "OK", nil))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1", Model: "demo"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"content":""}}]}`))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithRetryBackoff(0, 0),
		WithSleeper(func(time.Duration) {}),
	)
	_, err := client.Complete(context.Background(), Request{User: "hi"})
	if err == nil {
		t.Fatal("expected empty content to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestClientDeltaAndLegacyText(t *testing.T) {
	for name, body := range map[string]string{
		"delta": `{"choices":[{"delta":{"content":"hola"}}]}`,
		"text":  `{"choices":[{"text":"hola"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			got, err := NewClient(Config{APIKey: "test", BaseURL: server.URL}).Complete(context.Background(), Request{User: "hi"})
			if err != nil || got != "hola" {
				t.Fatalf("Complete = %q, %v", got, err)
			}
		})
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL},
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	got, err := client.Complete(context.Background(), Request{User: "hi"})
	if err != nil || got != "done" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Fatalf("expected single sleep of 1s, got %v", slept)
	}
}

func TestClientDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL}, WithSleeper(func(time.Duration) {}))
	if _, err := client.Complete(context.Background(), Request{User: "hi"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestClientCancelledContext(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, "late", nil))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{APIKey: "test", BaseURL: server.URL + "/v1"}).Complete(ctx, Request{User: "hi"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := client.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"plain":                        "plain",
		"```\n[[EN]]hi\n```":           "[[EN]]hi",
		"```text\n[[ES]]hola\n```":     "[[ES]]hola",
		"  ```[[EN]]inline```  ":       "[[EN]]inline",
		"```\nfirst line has words\n```": "first line has words",
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
