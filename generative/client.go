// Package generative talks to the external text-generation service that
// writes overs for complex match situations.
package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	ErrNotConfigured = errors.New("generative service is not configured")
	ErrRejected      = errors.New("generative service rejected the request")
	ErrEmptyResponse = errors.New("generative service returned no text")
)

const systemPrompt = "You simulate cricket overs. Answer with the requested JSON object only."

// Config describes how to reach the generation service
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	RateLimit     float64 // requests per second
	RetryAttempts int
	RetryBackoff  time.Duration

	// price per million tokens, used to report the cost of each call
	InputPrice  float64
	OutputPrice float64
}

// DefaultConfig returns settings suitable for production use
func DefaultConfig() Config {
	return Config{
		Model:         "default",
		MaxTokens:     1024,
		Temperature:   0.7,
		Timeout:       60 * time.Second,
		RateLimit:     1,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
		InputPrice:    3,
		OutputPrice:   15,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type response struct {
	ID      string         `json:"id"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client calls the generation service with rate limiting, retries and a
// circuit breaker around the whole exchange
type Client struct {
	httpClient *http.Client
	cfg        Config
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Entry
}

// NewClient creates a client. Zero values in cfg fall back to DefaultConfig.
func NewClient(cfg Config, log *logrus.Entry) *Client {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generative",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit":    name,
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("Generative circuit breaker state changed")
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker:    cb,
		log:        log,
	}
}

// Generate sends the prompt and returns the generated text with the cost of
// the call in dollars
func (c *Client) Generate(ctx context.Context, prompt string) (string, float64, error) {
	if c.cfg.BaseURL == "" {
		return "", 0, ErrNotConfigured
	}
	if strings.TrimSpace(prompt) == "" {
		return "", 0, fmt.Errorf("%w: empty prompt", ErrRejected)
	}

	body, err := json.Marshal(request{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      systemPrompt,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	started := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		c.log.WithError(err).Error("Generative request failed")
		return "", 0, fmt.Errorf("generative request failed: %w", err)
	}
	resp := out.(*response)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", 0, ErrEmptyResponse
	}

	cost := c.cost(resp.Usage)
	c.log.WithFields(logrus.Fields{
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
		"cost":          cost,
		"duration":      time.Since(started),
	}).Debug("Generated over")
	return text.String(), cost, nil
}

func (c *Client) cost(u usage) float64 {
	return float64(u.InputTokens)*c.cfg.InputPrice/1e6 + float64(u.OutputTokens)*c.cfg.OutputPrice/1e6
}

// send makes the HTTP exchange, retrying transport errors, 429s and 5xx
// responses with exponential backoff
func (c *Client) send(ctx context.Context, body []byte) (*response, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, retry, err := c.attempt(ctx, body)
		if err == nil {
			return resp, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
		}).WithError(err).Warn("Retrying generative request")
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", c.cfg.RetryAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, body []byte) (*response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, false, fmt.Errorf("failed to decode response: %w", err)
		}
		return &out, false, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited: %s", apiErr.Message)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("service error (status %d): %s", resp.StatusCode, apiErr.Message)
	default:
		return nil, false, fmt.Errorf("%w (status %d): %s", ErrRejected, resp.StatusCode, apiErr.Message)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
