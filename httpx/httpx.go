// Package httpx is the shared HTTP client and retry helper both the
// archive fetcher and the REST fetcher build on, so the §4.3 retry policy
// (3 attempts, 1s/2s/3s backoff, 429/418 honor Retry-After) lives in one
// place instead of being duplicated per fetcher.
package httpx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gaplessohlcv/marketerrs"
)

// Client wraps *http.Client with the retry policy and per-request deadline
// from the configuration table (§6.6).
type Client struct {
	HTTP       *http.Client
	Timeout    time.Duration
	MaxRetries int
}

// New builds a Client with the given per-request timeout and retry budget.
func New(timeout time.Duration, maxRetries int) *Client {
	return &Client{HTTP: &http.Client{}, Timeout: timeout, MaxRetries: maxRetries}
}

// steppedBackOff implements backoff.BackOff with the fixed 1s/2s/3s/3s...
// schedule §4.3 prescribes, rather than cenkalti/backoff's default
// exponential curve.
type steppedBackOff struct {
	steps []time.Duration
	n     int
}

func newSteppedBackOff() *steppedBackOff {
	return &steppedBackOff{steps: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}}
}

func (s *steppedBackOff) Reset() { s.n = 0 }

func (s *steppedBackOff) NextBackOff() time.Duration {
	idx := s.n
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}
	s.n++
	return s.steps[idx]
}

// errRetriable wraps a transient failure (5xx, timeout, or an honored
// rate-limit wait) to signal the retry loop should keep going.
type errRetriable struct{ cause error }

func (e *errRetriable) Error() string { return e.cause.Error() }
func (e *errRetriable) Unwrap() error { return e.cause }

// Do issues req with the retry policy applied: up to MaxRetries attempts
// total, 1s/2s/3s backoff, honoring a server Retry-After header on
// 429/418, and treating network errors/5xx as retriable. A 404 or any
// other status is returned to the caller unmodified — archive-fallback and
// terminal-4xx decisions differ per caller and don't belong in a shared
// helper. Retries exhausted surface as *marketerrs.TransientSourceError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(newSteppedBackOff(), uint64(maxRetries-1)), ctx)

	attempts := 0
	var lastErr error
	var result *http.Response

	operation := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		resp, err := c.HTTP.Do(req.Clone(attemptCtx))
		if err != nil {
			lastErr = err
			return &errRetriable{cause: err}
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 418:
			wait := retryAfter(resp)
			drainAndClose(resp)
			lastErr = errors.New("rate limited")
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return backoff.Permanent(ctx.Err())
				}
			}
			return &errRetriable{cause: lastErr}
		case resp.StatusCode >= 500:
			drainAndClose(resp)
			lastErr = errors.New("server error")
			return &errRetriable{cause: lastErr}
		default:
			result = resp
			return nil
		}
	}

	err := backoff.Retry(operation, bo)
	if err == nil {
		return result, nil
	}
	var retriable *errRetriable
	if errors.As(err, &retriable) {
		return nil, &marketerrs.TransientSourceError{URL: req.URL.String(), Attempts: attempts, Cause: lastErr}
	}
	return nil, err
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return time.Until(when)
	}
	return 0
}

func drainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}

// ClassifyStatus maps a terminal (non-retriable) 4xx status other than
// 404/418/429 to *marketerrs.SourceRejectedError.
func ClassifyStatus(url string, status int) error {
	return &marketerrs.SourceRejectedError{URL: url, StatusCode: status}
}
