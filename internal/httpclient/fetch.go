package httpclient

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// MaxBodyBytes bounds how much of an upstream body is read (32 MiB).
const MaxBodyBytes = 32 << 20

// ErrStatus is wrapped by Get when the upstream answers outside 2xx.
var ErrStatus = errors.New("unexpected status")

// Fetcher issues upstream GETs with a host semaphore, an optional per-host
// rate limiter and retry policy. The zero value uses Default() and
// GlobalHostSem.
type Fetcher struct {
	Client  *http.Client
	Sem     *HostSemaphore
	Limiter *HostLimiter
	Policy  RetryPolicy
	// Timeout bounds the request once a semaphore slot and a rate token are
	// held; time spent queueing is not charged to it. Zero means no bound
	// beyond ctx.
	Timeout time.Duration
}

// Get fetches rawURL and returns the decoded body. The returned status code
// is 0 when no response was received.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	sem := f.Sem
	if sem == nil {
		sem = GlobalHostSem
	}
	release, err := sem.Acquire(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	defer release()
	if err := f.Limiter.Wait(ctx, rawURL); err != nil {
		return nil, 0, err
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := DoWithRetry(ctx, f.Client, req, f.Policy)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	body, err := DecodeBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

// DecodeBody wraps resp.Body according to Content-Encoding (br, gzip or identity).
func DecodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}
