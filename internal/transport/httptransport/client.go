// Package httptransport is the default engine.Transport: a net/http client
// speaking the push/pull wire format from spec §6. Outbound requests stamp
// an X-Correlation-ID header, adapted from the teacher's
// internal/httpapi.CorrelationMiddleware for end-to-end request tracing.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncerr"
)

// Client is the default engine.Transport implementation.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// New builds a Client. baseURL is expected to expose POST <baseURL>/push and
// POST <baseURL>/pull. bearerToken may be empty.
func New(baseURL, bearerToken string) *Client {
	return &Client{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Push(ctx context.Context, req engine.PushRequest) (engine.PushResponse, error) {
	var resp engine.PushResponse
	if err := c.do(ctx, "push", req, &resp); err != nil {
		return engine.PushResponse{}, err
	}
	return resp, nil
}

func (c *Client) Pull(ctx context.Context, req engine.PullRequest) (engine.PullResponse, error) {
	var resp engine.PullResponse
	if err := c.do(ctx, "pull", req, &resp); err != nil {
		return engine.PullResponse{}, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, op string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &syncerr.TransportError{Op: op, Err: err}
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, op)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &syncerr.TransportError{Op: op, Err: err}
	}

	correlationID := uuid.New().String()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-ID", correlationID)
	if c.bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	log.Debug().Str("op", op).Str("correlation_id", correlationID).Msg("transport request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &syncerr.TransportError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 300 {
		return &syncerr.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return &syncerr.TransportError{Op: op, Err: err}
	}
	return nil
}
