package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-character-chat/backend/pkg/logger"
	"ai-character-chat/backend/pkg/secrets"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	// APIKeySecret is the key under which the upstream credential is
	// stored in the secrets manager (or as an env var when Vault is off).
	APIKeySecret = "openrouter_api_key"

	scannerInitialBuffer = 16 * 1024
	scannerMaxBuffer     = 1024 * 1024
)

// ErrMissingAPIKey is returned before any network attempt when no upstream
// credential can be resolved.
var ErrMissingAPIKey = errors.New("upstream API key not configured")

// UpstreamError reports a failed exchange with the completion service,
// either a non-success status on the initial response or a transport
// failure mid-stream.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream stream failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Message is one role-tagged entry of the conversation context, oldest first.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one increment of the model's reply. Exactly one of the terminal
// fields (Done, Err) is set on the last chunk of a stream.
type Chunk struct {
	Delta string
	Done  bool
	Err   error
}

// Config configures the streaming client.
type Config struct {
	URL        string
	Model      string
	APIKey     string // optional; takes precedence over Secrets
	Secrets    secrets.Manager
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *logger.Logger
}

// Client issues streaming completion requests to an OpenRouter-compatible
// chat completions endpoint and re-frames the SSE response as a lazy
// sequence of text chunks. It knows nothing about characters or persistence.
type Client struct {
	client  *http.Client
	url     string
	model   string
	apiKey  string
	secrets secrets.Manager
	timeout time.Duration
	log     *logger.Logger
}

func NewClient(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		// No client-level timeout: it would cut streams short. The
		// per-call context carries the deadline instead.
		client = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Client{
		client:  client,
		url:     cfg.URL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		secrets: cfg.Secrets,
		timeout: cfg.Timeout,
		log:     log,
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// resolveAPIKey returns the configured key, consulting the secrets manager
// when none was set directly.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	if c.secrets != nil {
		if key, err := c.secrets.GetSecret(ctx, APIKeySecret); err == nil && key != "" {
			return key, nil
		}
	}
	return "", ErrMissingAPIKey
}

// Stream opens one streaming completion request. The system instruction is
// derived from the character personality; history is the context window,
// oldest first. The returned channel yields one Chunk per upstream content
// delta and terminates with exactly one Done or Err chunk. A stream is not
// restartable; one call is one upstream exchange.
func (c *Client) Stream(ctx context.Context, personality string, history []Message) (<-chan Chunk, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	systemInstruction := fmt.Sprintf(
		"You are an AI character with the following personality: %s. Respond accordingly.",
		personality,
	)

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: "system", Content: systemInstruction})
	messages = append(messages, history...)

	payload, err := json.Marshal(completionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	reqCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("HTTP-Referer", "http://localhost:8080")
	req.Header.Set("X-Title", "AI Character Chat")

	resp, err := c.client.Do(req)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return nil, &UpstreamError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if cancel != nil {
			cancel()
		}
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		if cancel != nil {
			defer cancel()
		}
		c.readStream(ctx, resp.Body, ch)
	}()

	return ch, nil
}

// readStream consumes the SSE body line by line until the completion marker,
// a transport failure, or context cancellation.
func (c *Client) readStream(ctx context.Context, body io.Reader, ch chan<- Chunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, found := strings.CutPrefix(line, dataPrefix)
		if !found {
			continue
		}
		if data == doneMarker {
			c.emit(ctx, ch, Chunk{Done: true})
			return
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			// A single garbled frame must not kill the stream.
			c.log.Warn("skipping malformed upstream frame", "error", err.Error())
			continue
		}
		if len(frame.Choices) == 0 || frame.Choices[0].Delta.Content == "" {
			continue
		}

		if !c.emit(ctx, ch, Chunk{Delta: frame.Choices[0].Delta.Content}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.emit(ctx, ch, Chunk{Err: &UpstreamError{Err: err}})
		return
	}

	// EOF without the completion marker: the connection was dropped.
	c.emit(ctx, ch, Chunk{Err: &UpstreamError{Err: errors.New("stream closed before completion marker")}})
}

func (c *Client) emit(ctx context.Context, ch chan<- Chunk, chunk Chunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
