// Package dashboard provides a Go client for the relay's owner-facing API,
// including the polling loop the browser dashboard runs.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/jwulff/picorelay/internal/domain"
)

// ErrUnauthorized is returned when the relay rejects the session.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned when the relay reports an unknown device.
var ErrNotFound = errors.New("device not found")

// Event is one history entry as served by the relay.
type Event struct {
	DeviceID string         `json:"deviceId"`
	Ts       time.Time      `json:"ts"`
	Payload  domain.Payload `json:"payload"`
}

// Client is an HTTP client for the relay API. It carries the session
// cookie across requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the relay at baseURL.
func NewClient(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
	}, nil
}

// Register creates an account and starts a session.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return c.postCredentials(ctx, "/api/register", username, password)
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	return c.postCredentials(ctx, "/api/login", username, password)
}

func (c *Client) postCredentials(ctx context.Context, path, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Snapshot fetches the device's latest telemetry, or nil if none has
// arrived yet.
func (c *Client) Snapshot(ctx context.Context, deviceID string) (domain.Payload, error) {
	resp, err := c.get(ctx, "/api/telemetry/"+deviceID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var snapshot domain.Payload
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snapshot, nil
}

// History fetches up to limit most recent events, newest first. A
// non-positive limit uses the server default.
func (c *Client) History(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	path := "/api/events/" + deviceID
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return events, nil
}

// SendCommand puts a command in the device's mailbox. The relay accepting
// the write says nothing about the device receiving it; delivery is
// fire-and-forget.
func (c *Client) SendCommand(ctx context.Context, deviceID, cmd string) error {
	resp, err := c.post(ctx, "/api/cmd/"+deviceID, map[string]string{"cmd": cmd})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
