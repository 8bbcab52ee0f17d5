package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/upstream"
)

type staticSources struct {
	list []source.Source
	err  error
}

func (s staticSources) Active() ([]source.Source, error) { return s.list, s.err }

// delayedFetcher answers per source after a delay, to fix completion order.
type delayedFetcher struct {
	items map[string][]catalog.Item
	delay map[string]time.Duration
	query chan upstream.Query
}

func (f *delayedFetcher) FetchPage(ctx context.Context, src source.Source, q upstream.Query) []catalog.Item {
	if f.query != nil {
		f.query <- q
	}
	select {
	case <-time.After(f.delay[src.Name]):
	case <-ctx.Done():
		return []catalog.Item{}
	}
	return f.items[src.Name]
}

type countTracker struct{ queries []string }

func (c *countTracker) Track(q string) error {
	c.queries = append(c.queries, q)
	return nil
}

func eps(n int) []catalog.Episode {
	return make([]catalog.Episode, n)
}

func TestSearch_RicherWins(t *testing.T) {
	f := &delayedFetcher{
		items: map[string][]catalog.Item{
			"A": {{ID: "1", Title: "Alpha", SourceName: "A", Episodes: eps(3)}},
			"B": {{ID: "9", Title: "Alpha", SourceName: "B", Episodes: eps(5)}, {ID: "8", Title: "Beta", SourceName: "B"}},
		},
		delay: map[string]time.Duration{"A": 0, "B": 50 * time.Millisecond},
	}
	tr := &countTracker{}
	agg := &Aggregator{
		Sources: staticSources{list: []source.Source{{Name: "A"}, {Name: "B"}}},
		Fetcher: f,
		Trends:  tr,
	}
	got := agg.Search(context.Background(), "  Alpha ", 1)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].SourceName)
	assert.Len(t, got[0].Episodes, 5)
	assert.Equal(t, "Beta", got[1].Title)
	assert.Equal(t, []string{"Alpha"}, tr.queries)
}

func TestSearch_EmptyKeyword(t *testing.T) {
	tr := &countTracker{}
	agg := &Aggregator{Sources: staticSources{}, Fetcher: &delayedFetcher{}, Trends: tr}
	got := agg.Search(context.Background(), "   ", 1)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, tr.queries)
}

func TestSearch_PassesKeywordAndPage(t *testing.T) {
	f := &delayedFetcher{query: make(chan upstream.Query, 1)}
	agg := &Aggregator{Sources: staticSources{list: []source.Source{{Name: "A"}}}, Fetcher: f}
	agg.Search(context.Background(), "繁花", 2)
	q := <-f.query
	assert.Equal(t, upstream.Query{Keyword: "繁花", Page: 2}, q)
}

func TestSearch_TimeoutAndRegistryError(t *testing.T) {
	f := &delayedFetcher{
		items: map[string][]catalog.Item{"slow": {{ID: "1", Title: "X"}}},
		delay: map[string]time.Duration{"slow": time.Second},
	}
	agg := &Aggregator{Sources: staticSources{list: []source.Source{{Name: "slow"}}}, Fetcher: f, Timeout: 20 * time.Millisecond}
	assert.Empty(t, agg.Search(context.Background(), "x", 1))

	agg.Sources = staticSources{err: errors.New("missing")}
	assert.Empty(t, agg.Search(context.Background(), "x", 1))
}
