// Package httpclient is the shared upstream transport: a tuned client, retry
// on 429/5xx, per-host concurrency and rate limits, and body decoding.
package httpclient

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DialTimeout            = 5 * time.Second
	TLSHandshakeTimeout    = 5 * time.Second
	MaxIdleConnsPerHost    = 16

	// UserAgent is sent on every upstream request. Several content-index
	// sources reject requests without a browser-like agent.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// newTransport negotiates compression itself (Fetcher asks for br and gzip
// and DecodeBody unwraps them), so the transport's own gzip handling is off.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
}

var defaultClient = sync.OnceValue(func() *http.Client {
	return &http.Client{Timeout: DefaultTimeout, Transport: newTransport()}
})

// Default returns the shared client used by the upstream client and collector.
func Default() *http.Client {
	return defaultClient()
}

// WithTimeout returns a client with its own transport and the given timeout,
// for probes and self checks that should not share idle connections.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: newTransport()}
}
