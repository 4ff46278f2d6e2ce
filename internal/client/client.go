// Package client talks to the chatbot HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/the-onelazyDev/Ai-Chat-Bot/internal/chat"
)

const DefaultServerURL = "http://localhost:3000"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatbot api %d: %s", e.Status, e.Message)
}

type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	LLM       string    `json:"llm"`
	Database  string    `json:"database"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for baseURL. Requests carry no client-side timeout;
// the server bounds reply generation itself.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

type messageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// SendMessage posts one user message. An empty sessionID starts a new conversation.
func (c *Client) SendMessage(ctx context.Context, message, sessionID string) (*chat.TurnResult, error) {
	body, err := json.Marshal(messageRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var res chat.TurnResult
	if err := c.do(ctx, http.MethodPost, "/api/chat/message", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) History(ctx context.Context, sessionID string) (*chat.History, error) {
	var hist chat.History
	if err := c.do(ctx, http.MethodGet, "/api/chat/history/"+url.PathEscape(sessionID), nil, &hist); err != nil {
		return nil, err
	}
	return &hist, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/chat/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
