// Package upstream talks to content-index sources: one page of one source per
// call, normalized into catalog items.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/source"
)

const DefaultTimeout = 10 * time.Second

// Query selects one page. Zero fields are left off the request.
type Query struct {
	TypeID  string
	Keyword string
	Page    int
}

// Result labels recorded per upstream request.
const (
	ResultOK      = "ok"
	ResultEmpty   = "empty"
	ResultError   = "error"
	ResultTimeout = "timeout"
	ResultBadJSON = "bad_json"
)

// Recorder receives one observation per upstream request.
type Recorder interface {
	UpstreamRequest(source, result string)
}

// Client fetches and normalizes upstream pages. Safe for concurrent use.
type Client struct {
	Fetcher  *httpclient.Fetcher
	Timeout  time.Duration
	Exts     []string
	Recorder Recorder
}

// New returns a client with the shared transport, the upstream retry policy and timeout.
func New(timeout time.Duration, exts []string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		Fetcher: &httpclient.Fetcher{
			Client: httpclient.Default(),
			Policy: httpclient.UpstreamRetryPolicy,
		},
		Timeout: timeout,
		Exts:    exts,
	}
}

// BuildURL appends ac=detail plus the query to the source endpoint, keeping
// any parameters already present on it.
func BuildURL(endpoint string, q Query) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("upstream: endpoint %q: %w", endpoint, err)
	}
	v := u.Query()
	v.Set("ac", "detail")
	if q.Page > 0 {
		v.Set("pg", strconv.Itoa(q.Page))
	}
	if q.TypeID != "" {
		v.Set("t", q.TypeID)
	}
	if q.Keyword != "" {
		v.Set("wd", q.Keyword)
	}
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// ErrBadJSON is returned by Page when a 2xx body is not a {"list": [...]} document.
var ErrBadJSON = errors.New("upstream: bad JSON")

// FetchPage returns the normalized items of one page. Every failure (network,
// timeout, non-2xx, bad JSON, missing list) is logged and yields an empty
// slice; it never returns nil.
func (c *Client) FetchPage(ctx context.Context, src source.Source, q Query) []catalog.Item {
	items, _ := c.Page(ctx, src, q)
	return items
}

// Page is FetchPage with the failure reported. A nil error with no items
// means the source answered and had nothing on that page. Items are never nil.
func (c *Client) Page(ctx context.Context, src source.Source, q Query) ([]catalog.Item, error) {
	u, err := BuildURL(src.API, q)
	if err != nil {
		log.WithField("source", src.Name).Warnf("upstream[fetch]: %v", err)
		c.record(src.Name, ResultError)
		return []catalog.Item{}, err
	}
	return c.fetch(ctx, src, u, q.Page)
}

// Detail fetches a single record by id (ac=detail&ids=<id>).
func (c *Client) Detail(ctx context.Context, src source.Source, id string) (catalog.Item, bool) {
	u, err := BuildURL(src.API, Query{})
	if err != nil {
		c.record(src.Name, ResultError)
		return catalog.Item{}, false
	}
	parsed, _ := url.Parse(u)
	v := parsed.Query()
	v.Set("ids", id)
	parsed.RawQuery = v.Encode()
	items, _ := c.fetch(ctx, src, parsed.String(), 0)
	for _, it := range items {
		if it.Valid() {
			return it, true
		}
	}
	return catalog.Item{}, false
}

func (c *Client) fetch(ctx context.Context, src source.Source, rawURL string, page int) ([]catalog.Item, error) {
	fetcher := httpclient.Fetcher{Policy: httpclient.UpstreamRetryPolicy}
	if c.Fetcher != nil {
		fetcher = *c.Fetcher
	}
	fetcher.Timeout = c.Timeout
	if fetcher.Timeout <= 0 {
		fetcher.Timeout = DefaultTimeout
	}

	fields := log.Fields{"source": src.Name, "page": page}
	body, _, err := fetcher.Get(ctx, rawURL)
	if err != nil {
		result := ResultError
		if errors.Is(err, context.DeadlineExceeded) {
			result = ResultTimeout
		}
		log.WithFields(fields).Warnf("upstream[fetch]: %v", err)
		c.record(src.Name, result)
		return []catalog.Item{}, err
	}
	// Records are decoded one by one so a single mistyped field only costs
	// that record.
	var resp struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		log.WithFields(fields).Warnf("upstream[fetch]: decode: %v", err)
		c.record(src.Name, ResultBadJSON)
		return []catalog.Item{}, fmt.Errorf("%w: %w", ErrBadJSON, err)
	}
	items := make([]catalog.Item, 0, len(resp.List))
	dropped := 0
	for _, raw := range resp.List {
		var rec RawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			log.WithFields(fields).Debugf("upstream[fetch]: record: %v", err)
			dropped++
			continue
		}
		it, ok := Normalize(rec, src.Name, c.Exts)
		if !ok {
			dropped++
			continue
		}
		it.SourceTip = src.Tip
		items = append(items, it)
	}
	if dropped > 0 {
		log.WithFields(fields).WithField("dropped", dropped).Debug("upstream[fetch]: dropped malformed records")
	}
	if len(items) == 0 {
		c.record(src.Name, ResultEmpty)
	} else {
		c.record(src.Name, ResultOK)
	}
	return items, nil
}

func (c *Client) record(src, result string) {
	if c.Recorder != nil {
		c.Recorder.UpstreamRequest(src, result)
	}
}
