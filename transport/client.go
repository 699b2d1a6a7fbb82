package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/pacer"
)

// maxErrBodySize caps the amount of response body read when building an
// error for an unexpected status code.
const maxErrBodySize = 4 << 10 // 4KB

// ErrUnexpectedStatusCode is the sentinel error wrapped by
// [UnexpectedStatusError].
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// UnexpectedStatusError is returned when the HTTP response status code
// is not in the 2xx range.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// WithTimeout sets the overall request timeout on the client built by
// [NewClient].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing
// requests made by the client built by [NewClient].
func WithUserAgent(header string) Option {
	return func(o *options) error {
		o.userAgent = header
		return nil
	}
}

// Client is the per-verb pass-through surface: each call builds a JSON
// request, submits it through the paced round tripper, and decodes the
// JSON response. All admission, retry, and rotation behavior lives in
// the underlying [pacer.Pacer].
type Client struct {
	c         *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewClient builds a Client whose transport gates every request
// through p. It accepts the same options as [NewRoundTripper] plus
// [WithTimeout] and [WithUserAgent].
func NewClient(p *pacer.Pacer, opts ...Option) (*Client, error) {
	if p == nil {
		return nil, ErrNilPacer
	}

	o := options{
		next:      http.DefaultTransport,
		applyCred: BearerCredential,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	rt := &tripper{
		p:         p,
		next:      o.next,
		cap:       o.cap,
		capRPS:    o.capRPS,
		applyCred: o.applyCred,
		logger:    o.logger,
	}

	hc := &http.Client{Transport: rt}
	if o.timeout != nil {
		hc.Timeout = *o.timeout
	}

	return &Client{
		c:         hc,
		userAgent: o.userAgent,
		logger:    o.logger,
	}, nil
}

// Get fires a GET request and decodes the JSON response into dest.
// A nil dest discards the body.
func (c *Client) Get(ctx context.Context, url string, dest any) error {
	return c.call(ctx, http.MethodGet, url, nil, dest)
}

// Post fires a POST request with a JSON-encoded payload and decodes
// the JSON response into dest.
func (c *Client) Post(ctx context.Context, url string, payload, dest any) error {
	return c.call(ctx, http.MethodPost, url, payload, dest)
}

// Put fires a PUT request with a JSON-encoded payload and decodes the
// JSON response into dest.
func (c *Client) Put(ctx context.Context, url string, payload, dest any) error {
	return c.call(ctx, http.MethodPut, url, payload, dest)
}

// Patch fires a PATCH request with a JSON-encoded payload and decodes
// the JSON response into dest.
func (c *Client) Patch(ctx context.Context, url string, payload, dest any) error {
	return c.call(ctx, http.MethodPatch, url, payload, dest)
}

// Delete fires a DELETE request. A nil dest discards the body.
func (c *Client) Delete(ctx context.Context, url string, dest any) error {
	return c.call(ctx, http.MethodDelete, url, nil, dest)
}

func (c *Client) call(ctx context.Context, method, url string, payload, dest any) error {
	var body io.Reader
	if payload != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return fmt.Errorf("encoding request payload: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("instantiating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}

	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Error("failed to discard unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		return &UnexpectedStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(b),
			Err:        ErrUnexpectedStatusCode,
		}
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("failed to decode body: %w", err)
		}
	}

	return nil
}
