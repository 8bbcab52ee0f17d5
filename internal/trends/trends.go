// Package trends keeps an approximate popularity count of search queries in a
// small JSON document.
package trends

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/snapetech/vodstation/internal/catalog"
)

// MaxEntries bounds the document; lower-ranked queries are evicted.
const MaxEntries = 100

// Counts maps query to hit count.
type Counts map[string]int

// Entry is one ranked query.
type Entry struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Ranked returns entries by count descending, ties by query ascending.
func (c Counts) Ranked() []Entry {
	out := make([]Entry, 0, len(c))
	for q, n := range c {
		out = append(out, Entry{Query: q, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	return out
}

// Capped returns the top n entries as a new map.
func (c Counts) Capped(n int) Counts {
	ranked := c.Ranked()
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make(Counts, len(ranked))
	for _, e := range ranked {
		out[e.Query] = e.Count
	}
	return out
}

// Counter persists Counts at path. Track is a plain read-modify-write with no
// lock: concurrent searches may lose increments, which an approximate ranking
// tolerates.
type Counter struct {
	fs   afero.Fs
	path string
}

// New returns a counter at path on fs (nil means the OS filesystem). An empty
// path disables tracking.
func New(fs afero.Fs, path string) *Counter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Counter{fs: fs, path: path}
}

// Load returns the stored counts; a missing or invalid document is empty.
func (c *Counter) Load() Counts {
	out := make(Counts)
	if c == nil || c.path == "" {
		return out
	}
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// Track increments query and rewrites the document capped to MaxEntries.
// Blank queries are ignored.
func (c *Counter) Track(query string) error {
	query = strings.TrimSpace(query)
	if c == nil || c.path == "" || query == "" {
		return nil
	}
	counts := c.Load()
	counts[query]++
	data, err := json.MarshalIndent(counts.Capped(MaxEntries), "", "  ")
	if err != nil {
		return err
	}
	return catalog.WriteFileAtomic(c.fs, c.path, data)
}

// Top returns up to n ranked entries (n <= 0 means all).
func (c *Counter) Top(n int) []Entry {
	ranked := c.Load().Ranked()
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
