package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mixlingo/internal/relay"
	"mixlingo/internal/services"
)

// DefaultDetectTimeout bounds how long DetectLanguages waits for a reply.
const DefaultDetectTimeout = 5 * time.Second

const defaultWriteTimeout = 10 * time.Second

// Client talks to a relay over WebSocket. Requests are tagged with a
// sequence number and replies are matched on it; envelopes with unknown or
// missing sequence numbers are discarded.
type Client struct {
	conn          *websocket.Conn
	detectTimeout time.Duration
	writeTimeout  time.Duration

	writeMu sync.Mutex
	nextSeq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan relay.Envelope
	done    chan struct{}
	readErr error
}

// Option configures a Client.
type Option func(*dialOptions)

type dialOptions struct {
	detectTimeout time.Duration
	writeTimeout  time.Duration
	header        http.Header
	dialer        *websocket.Dialer
}

// WithDetectTimeout overrides DefaultDetectTimeout.
func WithDetectTimeout(d time.Duration) Option {
	return func(o *dialOptions) {
		if d > 0 {
			o.detectTimeout = d
		}
	}
}

// WithOrigin sets the Origin header sent during the handshake.
func WithOrigin(origin string) Option {
	return func(o *dialOptions) {
		if strings.TrimSpace(origin) != "" {
			o.header.Set("Origin", origin)
		}
	}
}

// WithDialer replaces the default WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *dialOptions) {
		if d != nil {
			o.dialer = d
		}
	}
}

// Dial connects to a relay endpoint such as ws://127.0.0.1:3001/ws.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	options := dialOptions{
		detectTimeout: DefaultDetectTimeout,
		writeTimeout:  defaultWriteTimeout,
		header:        http.Header{},
		dialer:        websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&options)
	}
	conn, resp, err := options.dialer.DialContext(ctx, endpoint, options.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		detail := "dial relay"
		if resp != nil {
			detail = fmt.Sprintf("dial relay (status %d)", resp.StatusCode)
		}
		return nil, services.Wrap(services.ErrTransient, "relayclient", "dial", detail, err)
	}
	c := &Client{
		conn:          conn,
		detectTimeout: options.detectTimeout,
		writeTimeout:  options.writeTimeout,
		pending:       make(map[uint64]chan relay.Envelope),
		done:          make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// EndpointFromBase converts an HTTP base URL into the relay WebSocket URL.
func EndpointFromBase(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Host == "" {
		return "", services.Wrap(services.ErrValidation, "relayclient", "endpoint", fmt.Sprintf("invalid server URL %q", base), err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", services.Wrap(services.ErrValidation, "relayclient", "endpoint", fmt.Sprintf("unsupported scheme %q", u.Scheme), nil)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Close closes the connection. Pending calls return an error.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// ServerError is an error event emitted by the relay.
type ServerError struct {
	Event   string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("relay %s: %s", e.Event, e.Message)
}

// Unwrap classifies relay-reported failures as external tool errors.
func (e *ServerError) Unwrap() error {
	return services.ErrExternalTool
}

// TextResult carries the replies to one sendText request.
type TextResult struct {
	AnnotatedText     string   `json:"annotatedText"`
	DetectedLanguages []string `json:"detectedLanguages"`
	Translation       string   `json:"translation"`
}

// AudioResult carries the replies to one sendAudio request.
type AudioResult struct {
	Transcription string `json:"transcription"`
	TextResult
}

// SendText relays text for mapping and translation. An empty languages list
// and target use the relay defaults.
func (c *Client) SendText(ctx context.Context, text string, languages []string, target string) (TextResult, error) {
	var result TextResult
	req := relay.TextRequest{Text: text, Languages: languages, TargetLanguage: target}
	err := c.call(ctx, relay.EventSendText, req, func(env relay.Envelope) (bool, error) {
		return collectText(env, &result)
	})
	return result, err
}

// DetectLanguages asks the relay to tag text with auto-detected languages.
// The wait is bounded by the detect timeout; on expiry it returns an error
// wrapping services.ErrTimeout.
func (c *Client) DetectLanguages(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detectTimeout)
	defer cancel()

	var tagged string
	err := c.call(ctx, relay.EventDetectLanguages, relay.DetectRequest{Text: text}, func(env relay.Envelope) (bool, error) {
		switch env.Event {
		case relay.EventLanguageDetected:
			var detection relay.Detection
			if err := json.Unmarshal(env.Data, &detection); err != nil {
				return true, decodeErr(env, err)
			}
			tagged = detection.TaggedText
			return true, nil
		case relay.EventLanguageDetectionError, relay.EventError:
			return true, serverError(env)
		}
		return false, nil
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return "", services.Wrap(services.ErrTimeout, "relayclient", "detectLanguages",
			fmt.Sprintf("no reply within %s", c.detectTimeout), err)
	}
	return tagged, err
}

// SendAudio uploads a clip for transcription. On success the relay also maps
// and translates the transcript.
func (c *Client) SendAudio(ctx context.Context, audio []byte, filename, target string) (AudioResult, error) {
	var result AudioResult
	req := relay.AudioRequest{Audio: audio, Filename: filename, TargetLanguage: target}
	err := c.call(ctx, relay.EventSendAudio, req, func(env relay.Envelope) (bool, error) {
		switch env.Event {
		case relay.EventReceiveTranscription:
			var transcript relay.Transcription
			if err := json.Unmarshal(env.Data, &transcript); err != nil {
				return true, decodeErr(env, err)
			}
			result.Transcription = transcript.Text
			return false, nil
		case relay.EventTranscriptionError:
			return true, serverError(env)
		}
		return collectText(env, &result.TextResult)
	})
	return result, err
}

func collectText(env relay.Envelope, result *TextResult) (bool, error) {
	switch env.Event {
	case relay.EventReceiveAnnotatedText:
		if err := json.Unmarshal(env.Data, result); err != nil {
			return true, decodeErr(env, err)
		}
		return false, nil
	case relay.EventReceiveTranslation:
		if err := json.Unmarshal(env.Data, &result.Translation); err != nil {
			return true, decodeErr(env, err)
		}
		return true, nil
	case relay.EventTranslationError, relay.EventError:
		return true, serverError(env)
	}
	return false, nil
}

// call sends one request and feeds matching replies to handle until it
// reports completion.
func (c *Client) call(ctx context.Context, event string, payload any, handle func(relay.Envelope) (bool, error)) error {
	seq := c.nextSeq.Add(1)
	env, err := relay.NewEnvelope(event, &seq, payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "relayclient", event, "encode request", err)
	}

	replies := make(chan relay.Envelope, 8)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return err
	}
	c.pending[seq] = replies
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	if err := c.write(env); err != nil {
		return services.Wrap(services.ErrTransient, "relayclient", event, "send request", err)
	}

	for {
		select {
		case reply := <-replies:
			finished, err := handle(reply)
			if finished {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			return err
		}
	}
}

func (c *Client) write(env relay.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(env)
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var env relay.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			c.readErr = services.Wrap(services.ErrTransient, "relayclient", "read", "relay connection closed", err)
			c.mu.Unlock()
			return
		}
		if env.Seq == nil {
			continue
		}
		c.mu.Lock()
		replies, ok := c.pending[*env.Seq]
		c.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case replies <- env:
		default:
		}
	}
}

func serverError(env relay.Envelope) error {
	var message string
	if err := json.Unmarshal(env.Data, &message); err != nil || message == "" {
		message = string(env.Data)
	}
	return &ServerError{Event: env.Event, Message: message}
}

func decodeErr(env relay.Envelope, err error) error {
	return services.Wrap(services.ErrExternalTool, "relayclient", env.Event, "malformed reply", err)
}
