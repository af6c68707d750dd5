package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mixlingo/internal/server"
	"mixlingo/internal/services"
)

// API calls the server's HTTP endpoints.
type API struct {
	base string
	http *http.Client
}

// NewAPI returns a client for base, e.g. http://127.0.0.1:3001. A nil
// httpClient uses a client with a 2 minute timeout.
func NewAPI(base string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &API{base: strings.TrimRight(strings.TrimSpace(base), "/"), http: httpClient}
}

// Status fetches GET /status.
func (a *API) Status(ctx context.Context) (server.StatusResponse, error) {
	var status server.StatusResponse
	err := a.getJSON(ctx, "/status", &status)
	return status, err
}

// Languages fetches GET /api/languages.
func (a *API) Languages(ctx context.Context) (server.LanguagesResponse, error) {
	var langs server.LanguagesResponse
	err := a.getJSON(ctx, "/api/languages", &langs)
	return langs, err
}

// Transcribe uploads audio to POST /api/transcribe.
func (a *API) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audioFile", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint("/api/transcribe"), &body)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "relayclient", "transcribe", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out server.TranscribeResponse
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	return out.TranscribedText, nil
}

func (a *API) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint(path), nil)
	if err != nil {
		return services.Wrap(services.ErrValidation, "relayclient", path, "build request", err)
	}
	return a.do(req, out)
}

func (a *API) endpoint(path string) string {
	joined, err := url.JoinPath(a.base, path)
	if err != nil {
		return a.base + path
	}
	return joined
}

// HTTPError is a non-2xx reply from the server.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps client errors to ErrValidation and everything else to
// ErrExternalTool.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return services.ErrValidation
	}
	return services.ErrExternalTool
}

func (a *API) do(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "relayclient", req.URL.Path, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrTransient, "relayclient", req.URL.Path, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload server.ErrorResponse
		_ = json.Unmarshal(data, &payload)
		return &HTTPError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrExternalTool, "relayclient", req.URL.Path, "decode response", err)
	}
	return nil
}
