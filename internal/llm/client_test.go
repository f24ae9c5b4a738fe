package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(Config{
		URL:     url,
		Model:   "test-model",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}))
}

func collect(t *testing.T, ch <-chan Chunk) (string, Chunk) {
	t.Helper()
	var builder strings.Builder
	for chunk := range ch {
		if chunk.Done || chunk.Err != nil {
			return builder.String(), chunk
		}
		builder.WriteString(chunk.Delta)
	}
	t.Fatal("stream ended without a terminal chunk")
	return "", Chunk{}
}

func TestStreamYieldsChunksUntilDone(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Arr"}}]}`,
		`data: {"choices":[{"delta":{"content":"r, matey!"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	ch, err := client.Stream(context.Background(), "cheerful pirate", nil)
	require.NoError(t, err)

	text, terminal := collect(t, ch)
	assert.Equal(t, "Arrr, matey!", text)
	assert.True(t, terminal.Done)
	assert.NoError(t, terminal.Err)
}

func TestStreamSkipsFramesWithoutDelta(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"Hello"}}]}`,
		`data: {"bogus": true}`,
		`: comment line ignored`,
		`data: {"choices":[{"delta":{"content":" world"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	ch, err := client.Stream(context.Background(), "helpful", nil)
	require.NoError(t, err)

	text, terminal := collect(t, ch)
	assert.Equal(t, "Hello world", text)
	assert.True(t, terminal.Done)
}

func TestStreamSkipsMalformedJSON(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {not json at all`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	ch, err := client.Stream(context.Background(), "helpful", nil)
	require.NoError(t, err)

	text, terminal := collect(t, ch)
	assert.Equal(t, "ab", text)
	assert.True(t, terminal.Done)
}

func TestStreamNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Stream(context.Background(), "helpful", nil)
	require.Error(t, err)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Contains(t, upstreamErr.Body, "invalid api key")
}

func TestStreamTruncatedWithoutDoneMarker(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
	})
	defer server.Close()

	client := newTestClient(t, server.URL)
	ch, err := client.Stream(context.Background(), "helpful", nil)
	require.NoError(t, err)

	text, terminal := collect(t, ch)
	assert.Equal(t, "partial", text)

	var upstreamErr *UpstreamError
	require.True(t, errors.As(terminal.Err, &upstreamErr))
}

func TestStreamMissingAPIKey(t *testing.T) {
	client := NewClient(Config{URL: "http://localhost:0", Model: "test-model"})
	_, err := client.Stream(context.Background(), "helpful", nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestStreamSendsSystemInstructionAndHistory(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	history := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	ch, err := client.Stream(context.Background(), "cheerful pirate", history)
	require.NoError(t, err)
	collect(t, ch)

	assert.Contains(t, body, `"model":"test-model"`)
	assert.Contains(t, body, `"stream":true`)
	assert.Contains(t, body, "cheerful pirate")
	assert.Contains(t, body, `{"role":"user","content":"hi"}`)
	assert.Contains(t, body, `{"role":"assistant","content":"hello"}`)
}
