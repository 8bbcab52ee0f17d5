package httpclient

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryPolicy controls when to retry after a response. Used by DoWithRetry.
type RetryPolicy struct {
	// Retry429: on 429 Too Many Requests, wait Retry-After (capped at Max429Wait) and retry.
	Retry429   bool
	Max429Wait time.Duration
	// Retry5xx: on 5xx, wait Backoff5xx and retry.
	Retry5xx   bool
	Backoff5xx time.Duration
	// MaxRetries is the number of extra attempts after the first one. 0 means 1.
	MaxRetries int
}

// DefaultRetryPolicy retries 429 (cap 60s) and 5xx (1s backoff) once.
var DefaultRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 60 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 1 * time.Second,
	MaxRetries: 1,
}

// UpstreamRetryPolicy is used for catalog pages. Page fetches run under a hard
// per-call timeout, so waits are kept short and a slow source is abandoned
// rather than waited on.
var UpstreamRetryPolicy = RetryPolicy{
	Retry429:   true,
	Max429Wait: 3 * time.Second,
	Retry5xx:   true,
	Backoff5xx: 500 * time.Millisecond,
	MaxRetries: 1,
}

// DoWithRetry performs req and on 429/5xx (when policy allows) waits and retries.
// 4xx (except 429) are never retried. Caller must close resp.Body when err == nil.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if client == nil {
		client = Default()
	}
	retries := policy.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	resp, err := client.Do(req)
	for attempt := 0; ; attempt++ {
		if err != nil {
			return nil, err
		}
		wait, retry := retryWait(resp, policy)
		if !retry || attempt >= retries {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		// Request bodies are never sent upstream, so a plain clone is enough.
		resp, err = client.Do(req.Clone(ctx))
	}
}

func retryWait(resp *http.Response, policy RetryPolicy) (time.Duration, bool) {
	code := resp.StatusCode
	switch {
	case code == http.StatusTooManyRequests && policy.Retry429:
		return parseRetryAfter(resp.Header.Get("Retry-After"), policy.Max429Wait), true
	case code >= 500 && policy.Retry5xx:
		return policy.Backoff5xx, true
	}
	return 0, false
}

// parseRetryAfter parses Retry-After (seconds or HTTP-date); returns duration capped at max.
func parseRetryAfter(s string, max time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1 * time.Second
	}
	if sec, err := strconv.Atoi(s); err == nil && sec >= 0 {
		d := time.Duration(sec) * time.Second
		if d > max {
			return max
		}
		return d
	}
	t, err := http.ParseTime(s)
	if err != nil {
		return 1 * time.Second
	}
	until := time.Until(t)
	if until <= 0 {
		return 0
	}
	if until > max {
		return max
	}
	return until
}
