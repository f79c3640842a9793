package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tonequest/api/internal/tracing"
)

// ErrUpstream is returned when the embedding service is unreachable or
// responds with an error. Callers treat it as an upstream availability
// failure, distinct from bad input.
var ErrUpstream = errors.New("embedding service unavailable")

// DefaultClientTimeout bounds a single embedding request when the caller
// supplies no deadline of its own.
const DefaultClientTimeout = 10 * time.Second

// embedRequest is the JSON request body for the inference service.
type embedRequest struct {
	Texts []string `json:"texts"`
}

// embedResponse is the JSON response body from the inference service.
type embedResponse struct {
	Embeddings []Vector `json:"embeddings"`
}

// Client is an Oracle backed by an HTTP embedding inference service.
// The service exposes POST {baseURL}/embed accepting {"texts": [...]}
// and returning {"embeddings": [[...], ...]} in input order.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the inference service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) (_ []Vector, err error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	ctx, endSpan := tracing.StartOracleSpan(ctx, len(texts))
	defer func() { endSpan(err) }()

	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Preserve cancellation/timeout errors so callers can tell a
		// caller-imposed deadline from a service failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the error message only.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrUpstream, len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}
