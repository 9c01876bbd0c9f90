// internal/protocol/client.go
//
// HTTP client for the encounter generation service. One logical call per
// variant: the request body is the flat variant payload, the response is a
// success/error/payload envelope. The client enforces the per-variant
// deadline and classifies every failure as timeout, transport, or
// rejection; it never re-validates field semantics (the registry owns
// validation) and never touches session state.

package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kingrea/encounter-forge/internal/encounter"
)

// maxErrorBodyBytes caps how much of a non-success response body is read
// when building a transport error.
const maxErrorBodyBytes = 4 << 10

// Client talks to the generation service.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Tests use this to
// point at httptest servers with custom transports.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient prepares a generation client from settings.
func NewClient(settings Settings, opts ...Option) *Client {
	settings.normalize()
	client := &Client{
		settings: settings,
		// Per-request deadlines are enforced via context; the zero
		// http.Client timeout keeps the two mechanisms from racing.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Deadline returns the wait bound applied to the given variant.
func (c *Client) Deadline(v encounter.Variant) time.Duration {
	schema, ok := encounter.SchemaFor(v)
	if ok && schema.Iterative {
		return c.settings.GenerationTimeout
	}
	return c.settings.CombatTimeout
}

// Generate submits the request and returns the raw envelope payload:
// structured JSON for the data variants, an opaque text blob for combat.
// The request must already satisfy its variant schema. Failures are
// classified as *GenerationError.
func (c *Client) Generate(ctx context.Context, req encounter.Request) (json.RawMessage, error) {
	if _, ok := encounter.SchemaFor(req.Variant); !ok {
		return nil, fmt.Errorf("protocol: unknown variant %q", req.Variant)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Deadline(req.Variant))
	defer cancel()

	url := fmt.Sprintf("%s/generate/%s", c.settings.BaseURL, req.Variant)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("protocol: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.settings.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, &GenerationError{Kind: KindTimeout, Err: err}
		}
		return nil, &GenerationError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &GenerationError{
			Kind:    KindTransport,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(detail)),
		}
	}

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, &GenerationError{Kind: KindTimeout, Err: err}
		}
		return nil, &GenerationError{Kind: KindTransport, Message: "malformed response envelope", Err: err}
	}
	if err := envelope.Validate(); err != nil {
		if envelope.Success {
			return nil, &GenerationError{Kind: KindTransport, Message: "malformed response envelope", Err: err}
		}
		return nil, &GenerationError{Kind: KindRejected, Message: "service reported failure without detail", Err: err}
	}
	if !envelope.Success {
		return nil, &GenerationError{Kind: KindRejected, Message: envelope.Error}
	}
	return envelope.Payload, nil
}
