package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/researchd/internal/secrets"
)

func newTestClient(t *testing.T, url string, mutate ...func(*AnthropicConfig)) *AnthropicClient {
	t.Helper()
	cfg := AnthropicConfig{
		APIKey:            "test-key",
		BaseURL:           url,
		MaxRetries:        2,
		BaseBackoff:       time.Millisecond,
		RequestsPerMinute: 6000,
		Burst:             100,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewAnthropicClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewAnthropicClient_RequiresKey(t *testing.T) {
	_, err := NewAnthropicClient(AnthropicConfig{})
	assert.ErrorContains(t, err, "API key required")
}

func TestNewAnthropicClient_Defaults(t *testing.T) {
	c, err := NewAnthropicClient(AnthropicConfig{APIKey: "k", MaxRetries: -1})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.Model())
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultMaxRetries, c.maxRetries)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
}

func TestAnthropicClient_Generate(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *AnthropicConfig) { cfg.Model = "claude-test" })
	text, err := c.Generate(context.Background(), Request{
		System:      "be precise",
		User:        "Task: summarize",
		Temperature: 0.3,
		MaxTokens:   8192,
	})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", text)

	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, 8192, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	assert.Equal(t, "be precise", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Task: summarize", got.Messages[0].Content)
}

func TestAnthropicClient_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "rate limited", status: http.StatusTooManyRequests},
		{name: "server error", status: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) < 3 {
					w.WriteHeader(tt.status)
					return
				}
				_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
			}))
			defer srv.Close()

			text, err := newTestClient(t, srv.URL).Generate(context.Background(), Request{User: "hi"})
			require.NoError(t, err)
			assert.Equal(t, "ok", text)
			assert.Equal(t, int32(3), calls.Load())
		})
	}
}

func TestAnthropicClient_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), Request{User: "hi"})
	require.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens too large"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), Request{User: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error (400): max_tokens too large")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnthropicClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Generate(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicClient_ScrubsOutboundText(t *testing.T) {
	key := "sk-ant-" + strings.Repeat("z", 30)
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(cfg *AnthropicConfig) { cfg.Scrubber = secrets.Default() })
	_, err := c.Generate(context.Background(), Request{System: "key " + key, User: "my key is " + key})
	require.NoError(t, err)
	assert.NotContains(t, got.System, key)
	assert.NotContains(t, got.Messages[0].Content, key)
	assert.Contains(t, got.Messages[0].Content, secrets.DefaultRedaction)
}

func TestAnthropicClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(t, srv.URL).Generate(ctx, Request{User: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFunc(t *testing.T) {
	var g Generator = Func(func(_ context.Context, req Request) (string, error) {
		return strings.ToUpper(req.User), nil
	})
	out, err := g.Generate(context.Background(), Request{User: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}
