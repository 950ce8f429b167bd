// Package api is the REST data-source client for the Zoq backend.
// Every request carries the session's bearer token; failures surface as
// *TransportError so callers can distinguish backend rejections from
// network faults.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoqapp/zoq-go/internal/util"
)

// ErrValidation rejects empty submissions before they reach the wire.
var ErrValidation = errors.New("empty submission")

// TransportError is a non-2xx backend response.
type TransportError struct {
	Status int
	Detail string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// IsUnauthorized reports whether err is a 401 rejection, which routes the
// user back to the unauthenticated view.
func IsUnauthorized(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Status == http.StatusUnauthorized
}

// Client talks to the Zoq REST API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New creates a Client for the given base URL, e.g. "https://zoq.example.com/api".
// The token may be empty until login/register succeeds.
func New(base, token string) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken replaces the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

// do issues one request. in (if non-nil) is JSON-encoded as the body;
// out (if non-nil) receives the decoded response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	util.Stats.AddRESTCall()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// decodeError extracts the backend's {"detail": ...} payload when present.
func (c *Client) decodeError(resp *http.Response) error {
	te := &TransportError{Status: resp.StatusCode}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
		te.Detail = payload.Detail
	} else {
		te.Detail = http.StatusText(resp.StatusCode)
	}
	return te
}
