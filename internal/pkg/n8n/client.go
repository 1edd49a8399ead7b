package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xauti/content_go_server/config"
)

const maxResponseBytes = 25 << 20

var (
	ErrNotConfigured    = errors.New("n8n webhook url not configured")
	ErrResponseTooLarge = fmt.Errorf("n8n response exceeds %d bytes", maxResponseBytes)
)

// StatusError is returned for non-2xx webhook responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("n8n webhook returned status %d: %s", e.Code, e.Body)
}

// Payload is the body posted to the content workflow.
type Payload struct {
	RequestKey     string   `json:"requestId"`
	CallbackURL    string   `json:"callbackUrl,omitempty"`
	Kind           string   `json:"kind"`
	UserEmail      string   `json:"email"`
	UserName       string   `json:"name,omitempty"`
	Tier           string   `json:"tier"`
	TenantID       int64    `json:"tenantId,omitempty"`
	Industry       string   `json:"industry"`
	SelectedTopics []string `json:"selectedTopics"`
	BrandTone      string   `json:"brandTone,omitempty"`
	CallToAction   string   `json:"callToAction,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

type Client struct {
	httpClient *http.Client
	authHeader string
	authToken  string
	maxBody    int64
}

// NewClient bounds every call by timeout.
func NewClient(cfg config.N8NConfig, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		authHeader: cfg.AuthHeader,
		authToken:  cfg.AuthToken,
		maxBody:    maxResponseBytes,
	}
}

// Trigger posts the payload and returns the raw response body.
func (c *Client) Trigger(ctx context.Context, webhookURL string, payload *Payload) ([]byte, error) {
	if webhookURL == "" {
		return nil, ErrNotConfigured
	}
	if payload.Timestamp == "" {
		payload.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/csv, */*")
	if c.authHeader != "" && c.authToken != "" {
		req.Header.Set(c.authHeader, c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("n8n request failed: %w", err)
	}
	defer resp.Body.Close()

	// one byte past the limit tells a full body from a cut-off one
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read n8n response: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, ErrResponseTooLarge
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	return body, nil
}
