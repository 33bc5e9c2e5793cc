// Package client is a small HTTP client for the chat API, used by the
// terminal chat frontend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orderdeskai/orderdesk/internal/orchestrator"
	"github.com/orderdeskai/orderdesk/internal/server"
)

// Health is the decoded body of GET /api/health.
type Health struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}

// APIError carries a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
}

// Client talks to one orderdesk server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Chat sends one user query and returns the turn result. sessionID may be
// empty on the first call; later calls should pass the returned session id.
func (c *Client) Chat(ctx context.Context, sessionID, userQuery string) (*orchestrator.Result, error) {
	body, err := json.Marshal(server.ChatRequest{UserQuery: userQuery, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var envelope server.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("chat response missing data")
	}
	return envelope.Data, nil
}

// Health fetches the server health state.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send health request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &h, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Detail == "" {
		body.Detail = strings.TrimSpace(string(raw))
	}
	return &APIError{StatusCode: resp.StatusCode, Detail: body.Detail}
}
