package generative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, attempts int) *Client {
	logger, _ := test.NewNullLogger()
	return NewClient(Config{
		BaseURL:       url,
		APIKey:        "test-key",
		Model:         "test-model",
		RateLimit:     1000,
		RetryAttempts: attempts,
		RetryBackoff:  time.Millisecond,
		InputPrice:    3,
		OutputPrice:   15,
	}, logrus.NewEntry(logger))
}

func writeText(w http.ResponseWriter, text string, in, out int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{
		ID:      "msg_1",
		Content: []contentBlock{{Type: "text", Text: text}},
		Usage:   usage{InputTokens: in, OutputTokens: out},
	})
}

func TestGenerate(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeText(w, `{"balls":[]}`, 1000, 200)
	}))
	defer server.Close()

	c := newTestClient(server.URL+"/", 3)
	text, cost, err := c.Generate(context.Background(), "Over 19, nine needed")
	require.NoError(t, err)

	assert.Equal(t, `{"balls":[]}`, text)
	assert.InDelta(t, 0.003+0.003, cost, 1e-12)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, message{Role: "user", Content: "Over 19, nine needed"}, got.Messages[0])
	assert.NotEmpty(t, got.System)
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.Error(w, `{"type":"overloaded","message":"busy"}`, http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeText(w, "ok", 10, 10)
		}
	}))
	defer server.Close()

	text, _, err := newTestClient(server.URL, 3).Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _, err := newTestClient(server.URL, 2).Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 attempts")
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"invalid_request","message":"prompt too long"}`))
	}))
	defer server.Close()

	_, _, err := newTestClient(server.URL, 3).Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "prompt too long")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeText(w, "   ", 5, 0)
	}))
	defer server.Close()

	_, _, err := newTestClient(server.URL, 1).Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL, 1)
	for i := 0; i < 4; i++ {
		_, _, err := c.Generate(context.Background(), "prompt")
		require.Error(t, err)
	}

	_, _, err := c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(4), calls.Load())
}

func TestGenerateCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestClient(server.URL, 3).Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRequiresConfiguration(t *testing.T) {
	_, _, err := newTestClient("", 1).Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, _, err = newTestClient("http://localhost", 1).Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrRejected)
}
