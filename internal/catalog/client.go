package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gabriel-vasile/mimetype"

	"github.com/rubiojr/dcwatch/internal/log"
)

const (
	DefaultBaseURL  = "http://dcstore.shenmo.tech/store"
	UserAgent       = "dcwatch/1.0"
	LivenessTimeout = 5 * time.Second
)

// Client fetches app metadata documents from a dcstore catalog.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	maxRetries int
	newBackOff func() backoff.BackOff
}

type Option func(*Client)

// WithHTTPClient replaces the retrying client built by NewClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxRetries sets how many times a failed plain HTTP request is
// retried. Zero disables retries. Ignored with WithHTTPClient.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackOff sets the delay policy between retries. Ignored with
// WithHTTPClient.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// NewClient returns a client whose plain HTTP requests are retried
// DefaultMaxRetries times on transport failures unless WithMaxRetries says
// otherwise. Requests carry no timeout
// other than the one set on their context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		userAgent:  UserAgent,
		logger:     log.Default(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		rt := NewRetryTransport(http.DefaultTransport.(*http.Transport).Clone(), c.maxRetries)
		rt.NewBackOff = c.newBackOff
		rt.Logger = c.logger
		c.httpClient = &http.Client{Transport: rt}
	}

	return c
}

// Ping issues a GET against url bounded by LivenessTimeout and returns the
// response status. Only transport failures are errors.
func (c *Client) Ping(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, LivenessTimeout)
	defer cancel()

	resp, err := c.do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// FetchJSON downloads url and decodes the body as a JSON object. Numbers
// are kept as json.Number.
func (c *Client) FetchJSON(ctx context.Context, url string) (map[string]any, error) {
	data, err := c.fetchFile(ctx, url)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s as JSON (got %s): %w", url, mimetype.Detect(data).String(), err)
	}
	if doc == nil {
		return nil, fmt.Errorf("failed to parse %s: document is null", url)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to parse %s: unexpected data after JSON document", url)
	}

	c.logger.Debug("Fetched catalog document", "url", url, "keys", len(doc))
	return doc, nil
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	return resp, nil
}

func (c *Client) fetchFile(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error %d when fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
