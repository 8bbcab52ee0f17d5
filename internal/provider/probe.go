// Package provider checks whether upstream sources answer the catalog
// protocol, for the admin "test source" action and the probe command.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/probe"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/upstream"
)

// Result is the outcome of probing one source.
type Result struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	Status     Status `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMs  int64  `json:"latency_ms"`
	Items      int    `json:"items"`
	Sample     string `json:"sample,omitempty"` // first title on the page

	// Stream checks the sample's first episode; StreamError is set when it
	// does not play.
	SampleURL   string           `json:"sample_url,omitempty"`
	Stream      probe.StreamType `json:"stream,omitempty"`
	StreamError string           `json:"stream_error,omitempty"`
}

type Status string

const (
	StatusOK         Status = "ok"
	StatusEmpty      Status = "empty"
	StatusCloudflare Status = "cloudflare"
	StatusBadStatus  Status = "bad_status"
	StatusBadJSON    Status = "bad_json"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 15 * time.Second

// ProbeSource fetches page 1 of src and classifies the answer.
func ProbeSource(ctx context.Context, src source.Source, client *http.Client) Result {
	if client == nil {
		client = httpclient.WithTimeout(DefaultTimeout)
	}
	res := Result{Name: src.Name, URL: src.API}
	u, err := upstream.BuildURL(src.API, upstream.Query{Page: 1})
	if err != nil {
		res.Status = StatusError
		return res
	}
	res.URL = u
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		res.Status = StatusError
		return res
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept-Encoding", "br, gzip")
	resp, err := client.Do(req)
	res.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		if isTimeout(err) {
			res.Status = StatusTimeout
		} else {
			res.Status = StatusError
		}
		return res
	}
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode
	body, err := httpclient.DecodeBody(resp)
	if err != nil {
		res.Status = StatusBadStatus
		return res
	}
	defer body.Close()
	data, _ := io.ReadAll(io.LimitReader(body, httpclient.MaxBodyBytes))

	if isCloudflare(resp, data) {
		res.Status = StatusCloudflare
		return res
	}
	if resp.StatusCode != http.StatusOK {
		res.Status = StatusBadStatus
		return res
	}
	var page struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		res.Status = StatusBadJSON
		return res
	}
	res.Items = len(page.List)
	if res.Items == 0 {
		res.Status = StatusEmpty
		return res
	}
	res.Status = StatusOK
	var first upstream.RawRecord
	for _, raw := range page.List {
		if json.Unmarshal(raw, &first) == nil {
			break
		}
		first = upstream.RawRecord{}
	}
	res.Sample = first.Name
	if eps := upstream.ParseEpisodes(first.PlayURL, nil); len(eps) > 0 {
		res.SampleURL = eps[0].URL
		kind, err := probe.Probe(ctx, res.SampleURL, client)
		res.Stream = kind
		if err != nil {
			res.StreamError = err.Error()
		}
	}
	return res
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline")
}

// isCloudflare only reports a block when sure: a cloudflare Server header on a
// non-200, or a classic challenge page on one of the usual block codes.
func isCloudflare(resp *http.Response, body []byte) bool {
	code := resp.StatusCode
	if code == http.StatusOK {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(resp.Header.Get("Server")), "cloudflare") {
		return true
	}
	preview := strings.ToLower(string(body[:min(len(body), 2048)]))
	challenge := strings.Contains(preview, "checking your browser") ||
		strings.Contains(preview, "cf-bypass") ||
		strings.Contains(preview, "ray id")
	switch code {
	case 403, 503, 520, 521, 524:
		return challenge
	}
	return false
}

// ProbeAll probes sources (4 at a time) and returns results sorted OK first
// by latency, then the rest by name.
func ProbeAll(ctx context.Context, sources []source.Source, client *http.Client) []Result {
	out := make([]Result, len(sources))
	var g errgroup.Group
	g.SetLimit(4)
	for i, src := range sources {
		g.Go(func() error {
			out[i] = ProbeSource(ctx, src, client)
			return nil
		})
	}
	_ = g.Wait()
	sort.SliceStable(out, func(i, j int) bool {
		okI := out[i].Status == StatusOK
		okJ := out[j].Status == StatusOK
		if okI != okJ {
			return okI
		}
		if okI {
			return out[i].LatencyMs < out[j].LatencyMs
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Fastest returns the name of the fastest OK source in results as ordered by
// ProbeAll, or "" if none answered.
func Fastest(results []Result) string {
	for _, r := range results {
		if r.Status == StatusOK {
			return r.Name
		}
	}
	return ""
}
