// Package gateway wraps the Evolution-compatible WhatsApp HTTP API the
// notifier dispatches through.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusBadRecipient is the gateway status returned for malformed or
// unknown destination numbers. Callers use it to route the operational
// alert path.
const StatusBadRecipient = http.StatusBadRequest

// APIError carries the gateway's HTTP status and decoded response body
// for any non-2xx reply.
type APIError struct {
	StatusCode int
	Payload    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: HTTP %d", e.StatusCode)
}

// BadRecipient reports whether the failure indicates a malformed
// recipient rather than a transient gateway problem.
func (e *APIError) BadRecipient() bool {
	return e.StatusCode == StatusBadRecipient
}

// Client talks to one Evolution API instance.
type Client struct {
	baseURL    string
	apiKey     string
	instance   string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, instance string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway: missing api key")
	}
	if instance == "" {
		return nil, fmt.Errorf("gateway: missing instance name")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		instance:   instance,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// MediaParams describes one document/image delivery.
type MediaParams struct {
	Number    string
	MediaType string
	MimeType  string
	Caption   string
	// Media is the base64-encoded payload.
	Media    string
	FileName string
}

// SendText delivers a plain text message to a canonical number.
func (c *Client) SendText(ctx context.Context, number, text string) (map[string]any, error) {
	payload := map[string]any{
		"number":           number,
		"text":             text,
		"delay":            1000,
		"linkPreview":      false,
		"mentionsEveryOne": false,
	}
	return c.post(ctx, "/message/sendText/"+c.instance, payload)
}

// SendMedia delivers a base64-encoded document or image.
func (c *Client) SendMedia(ctx context.Context, p MediaParams) (map[string]any, error) {
	payload := map[string]any{
		"number":           p.Number,
		"mediatype":        p.MediaType,
		"mimetype":         p.MimeType,
		"caption":          p.Caption,
		"media":            p.Media,
		"fileName":         p.FileName,
		"delay":            1000,
		"linkPreview":      false,
		"mentionsEveryOne": false,
	}
	return c.post(ctx, "/message/sendMedia/"+c.instance, payload)
}

// Health checks whether the gateway server is responding.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: health: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: post %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		payload = map[string]any{"text": string(raw)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Payload: payload}
	}
	return payload, nil
}
