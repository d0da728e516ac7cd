// Package httpretry wraps an HTTP client with bounded retries for transient
// failures. Used by the outbound provider clients (payment gateway, mail).
package httpretry

import (
	"net/http"
	"time"
)

// HTTPDoer is the minimal client contract, satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries network errors and 5xx responses with doubling backoff.
// Requests with a body must set GetBody so the body can be replayed; requests
// built by http.NewRequest from a bytes.Reader get that for free.
type RetryClient struct {
	inner      HTTPDoer
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryClient wraps inner with up to maxRetries additional attempts.
func NewRetryClient(inner HTTPDoer, maxRetries int) *RetryClient {
	return &RetryClient{inner: inner, maxRetries: maxRetries, baseDelay: 200 * time.Millisecond}
}

func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := c.baseDelay
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, bodyErr
			}
			req.Body = body
		}

		resp, err = c.inner.Do(req)
		if !shouldRetry(resp, err) || attempt >= c.maxRetries {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}
