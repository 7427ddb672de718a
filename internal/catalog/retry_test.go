package catalog

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

var errRefused = errors.New("connection refused")

// flaky fails the first n calls and then answers 200.
func flaky(n int, calls *int) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		*calls++
		if *calls <= n {
			return nil, errRefused
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("ok")),
			Request:    r,
		}, nil
	}
}

func TestRetryTransport(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		method    string
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first time", "http://catalog.test/app.json", http.MethodGet, 0, 1, false},
		{"recovers after two failures", "http://catalog.test/app.json", http.MethodGet, 2, 3, false},
		{"recovers on last retry", "http://catalog.test/app.json", http.MethodGet, 3, 4, false},
		{"gives up after max retries", "http://catalog.test/app.json", http.MethodGet, 10, 4, true},
		{"https is not retried", "https://catalog.test/app.json", http.MethodGet, 10, 1, true},
		{"post is not retried", "http://catalog.test/app.json", http.MethodPost, 10, 1, true},
		{"head is retried", "http://catalog.test/", http.MethodHead, 1, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			rt := &RetryTransport{
				Base:       flaky(tt.failures, &calls),
				MaxRetries: DefaultMaxRetries,
				NewBackOff: zeroBackOff,
			}
			req, err := http.NewRequest(tt.method, tt.url, nil)
			require.NoError(t, err)

			resp, err := rt.RoundTrip(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, errRefused)
			} else {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				resp.Body.Close()
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryTransportStatusNotRetried(t *testing.T) {
	calls := 0
	rt := &RetryTransport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: http.NoBody, Request: r}, nil
		}),
		MaxRetries: DefaultMaxRetries,
		NewBackOff: zeroBackOff,
	}
	req, err := http.NewRequest(http.MethodGet, "http://catalog.test/", nil)
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestRetryTransportContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	rt := &RetryTransport{
		Base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			cancel()
			return nil, errRefused
		}),
		MaxRetries: DefaultMaxRetries,
		NewBackOff: zeroBackOff,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://catalog.test/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryTransportDisabled(t *testing.T) {
	calls := 0
	rt := NewRetryTransport(flaky(1, &calls), 0)
	req, err := http.NewRequest(http.MethodGet, "http://catalog.test/", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, calls)
}
