package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mixlingo/internal/services"
)

const (
	defaultBaseURL     = "https://api.lemonfox.ai/v1"
	defaultModel       = "whisper-1"
	defaultHTTPTimeout = 120 * time.Second
	transcriptionsPath = "audio/transcriptions"
)

// Config captures the settings for an OpenAI-compatible transcription API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client uploads audio files to an OpenAI-compatible /audio/transcriptions
// endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs a transcription client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimSpace(cfg.BaseURL),
		model:   strings.TrimSpace(cfg.Model),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	return c
}

// Request describes a single transcription upload.
type Request struct {
	FilePath string
	// Language is an optional ISO 639-1 hint; empty lets the service detect.
	Language string
}

// Response mirrors the default JSON response format.
type Response struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// StatusError reports a non-2xx response from the transcription endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stt request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return services.ErrConfiguration
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return services.ErrTimeout
	default:
		return services.ErrExternalTool
	}
}

// Transcribe uploads the file at req.FilePath and returns the decoded response.
func (c *Client) Transcribe(ctx context.Context, req Request) (Response, error) {
	if c == nil {
		return Response{}, services.Wrap(services.ErrConfiguration, "stt", "transcribe", "nil client", nil)
	}
	if c.apiKey == "" {
		return Response{}, services.Wrap(services.ErrConfiguration, "stt", "transcribe", "missing api key", nil)
	}
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return Response{}, services.Wrap(services.ErrValidation, "stt", "transcribe", "empty file path", nil)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return Response{}, fmt.Errorf("stt client: open audio: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", c.model); err != nil {
		return Response{}, fmt.Errorf("stt client: write model field: %w", err)
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return Response{}, fmt.Errorf("stt client: write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return Response{}, fmt.Errorf("stt client: write format field: %w", err)
	}
	field, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return Response{}, fmt.Errorf("stt client: create file field: %w", err)
	}
	if _, err := io.Copy(field, file); err != nil {
		return Response{}, fmt.Errorf("stt client: copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Response{}, fmt.Errorf("stt client: close multipart writer: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, transcriptionsPath)
	if err != nil {
		return Response{}, fmt.Errorf("stt client: build url: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Response{}, fmt.Errorf("stt client: build request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(request)
	if err != nil {
		return Response{}, services.Wrap(services.ErrExternalTool, "stt", "http request", "", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, services.Wrap(services.ErrExternalTool, "stt", "read response", "", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}

	var parsed Response
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return Response{}, services.Wrap(services.ErrExternalTool, "stt", "decode response", "", err)
	}
	parsed.Text = strings.TrimSpace(parsed.Text)
	return parsed, nil
}

// HealthCheck lists the service's models to verify reachability and the API
// key without uploading audio.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c == nil || c.apiKey == "" {
		return services.Wrap(services.ErrConfiguration, "stt", "health", "missing api key", nil)
	}
	endpoint, err := url.JoinPath(c.baseURL, "models")
	if err != nil {
		return fmt.Errorf("stt client: build url: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("stt client: build request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(request)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "stt", "health", "", err)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(payload)}
	}
	return nil
}
