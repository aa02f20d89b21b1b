package invoices

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ConvertError is the typed failure returned when the fiscal-document
// converter rejects a request.
type ConvertError struct {
	StatusCode int
	Payload    map[string]any
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("invoices: converter http %d", e.StatusCode)
}

type convertResponse struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Format string `json:"format"`
	Data   string `json:"data"`
}

// Converter turns a signed NF-e XML into a DANFE PDF through an external
// HTTP conversion service.
type Converter struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewConverter(url, apiKey string, timeout time.Duration) (*Converter, error) {
	if url == "" {
		return nil, fmt.Errorf("invoices: missing converter url")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("invoices: missing converter api key")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Converter{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Convert posts the XML as plain text and returns the PDF file name and
// bytes decoded from the converter's base64 response.
func (c *Converter) Convert(ctx context.Context, xml string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(xml))
	if err != nil {
		return "", nil, fmt.Errorf("invoices: build converter request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("invoices: call converter: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("invoices: read converter response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		payload := map[string]any{}
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = map[string]any{"text": string(body)}
		}
		return "", nil, &ConvertError{StatusCode: resp.StatusCode, Payload: payload}
	}

	var out convertResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil, fmt.Errorf("invoices: decode converter response: %w", err)
	}
	if out.Data == "" {
		return "", nil, fmt.Errorf("invoices: converter response missing document data")
	}

	pdf, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return "", nil, fmt.Errorf("invoices: decode document: %w", err)
	}

	return out.Name, pdf, nil
}
