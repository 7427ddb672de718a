package catalog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxRetries is the number of times a failed plain HTTP request is
// retried after the first attempt.
const DefaultMaxRetries = 3

// RetryTransport retries idempotent plain HTTP requests that fail before a
// response is received. HTTP error statuses are returned as is.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
	// NewBackOff returns the delay policy for one request. Defaults to an
	// exponential backoff.
	NewBackOff func() backoff.BackOff
	Logger     *slog.Logger
}

func NewRetryTransport(base http.RoundTripper, maxRetries int) *RetryTransport {
	return &RetryTransport{Base: base, MaxRetries: maxRetries}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.MaxRetries <= 0 || !retryable(req) {
		return base.RoundTrip(req)
	}

	ctx := req.Context()
	op := func() (*http.Response, error) {
		resp, err := base.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(t.backOff()),
		backoff.WithMaxTries(uint(t.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			if t.Logger != nil {
				t.Logger.Debug("Request failed, retrying", "url", req.URL.String(), "delay", next, "error", err)
			}
		}),
	)
}

func (t *RetryTransport) backOff() backoff.BackOff {
	if t.NewBackOff != nil {
		return t.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// retryable reports whether req may be sent again. Only unencrypted HTTP
// is covered and only for methods without side effects.
func retryable(req *http.Request) bool {
	if req.URL == nil || req.URL.Scheme != "http" {
		return false
	}
	switch req.Method {
	case "", http.MethodGet, http.MethodHead:
		return req.Body == nil || req.Body == http.NoBody
	}
	return false
}
