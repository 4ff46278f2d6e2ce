// Package ollama calls a local Ollama server to generate support replies.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/apperr"
	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/store"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "mistral"
	// DefaultTimeout covers cold starts, where the first request loads the model.
	DefaultTimeout = 10 * time.Minute

	temperature   = 0.7
	healthTimeout = 5 * time.Second
)

const (
	msgOffline    = "AI service is offline. Please make sure Ollama is running: https://ollama.ai"
	msgTimeout    = "The AI service took too long to respond. Please try again."
	msgGeneration = "Sorry, I encountered an error processing your request. Please try again."
)

type Client struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewClient returns a client for baseURL. The per-call deadline is applied
// through the request context, so the http.Client itself has no timeout.
func NewClient(baseURL, model string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
		logger:  logger,
	}
}

type options struct {
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	Temperature float64  `json:"temperature"`
	Options     *options `json:"options,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GenerateReply builds the prompt from history and userMessage and returns the
// trimmed completion. Errors are classified as KindTimeout,
// KindServiceUnavailable or KindGeneration.
func (c *Client) GenerateReply(ctx context.Context, history []store.Message, userMessage string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       c.model,
		Prompt:      BuildPrompt(history, userMessage),
		Stream:      false,
		Temperature: temperature,
		Options:     &options{Temperature: temperature},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, fmt.Errorf("marshal request: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", c.classify(ctx, fmt.Errorf("api call: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classify(ctx, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, fmt.Errorf("api error %d: %s", resp.StatusCode, errResp.Error))
		}
		return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody)))
	}

	var apiResp generateResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, fmt.Errorf("unmarshal response: %w", err))
	}

	reply := strings.TrimSpace(apiResp.Response)
	if reply == "" {
		return "", apperr.Wrap(apperr.KindGeneration, msgGeneration, errors.New("empty response from model"))
	}

	c.logger.Debug("reply generated",
		"model", c.model,
		"history", len(history),
		"duration", time.Since(start),
		"reply_len", len(reply),
	)
	return reply, nil
}

// classify maps a transport error. ctx is the deadline-bound request context.
func (c *Client) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		c.logger.Warn("completion timed out", "timeout", c.timeout, "error", err)
		return apperr.Wrap(apperr.KindTimeout, msgTimeout, err)
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.KindGeneration, msgGeneration, err)
	default:
		c.logger.Warn("completion service unreachable", "base_url", c.baseURL, "error", err)
		return apperr.Wrap(apperr.KindServiceUnavailable, msgOffline, err)
	}
}

// CheckHealth reports whether the Ollama server answers /api/tags. It never
// returns an error.
func (c *Client) CheckHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		c.logger.Warn("llm health check failed", "error", err)
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("llm health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
