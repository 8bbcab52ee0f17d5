// Package search runs live keyword queries against every active source.
package search

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/upstream"
)

const DefaultTimeout = 8 * time.Second

// PageFetcher is the upstream capability search needs.
type PageFetcher interface {
	FetchPage(ctx context.Context, src source.Source, q upstream.Query) []catalog.Item
}

// SourceLister returns the currently active sources.
type SourceLister interface {
	Active() ([]source.Source, error)
}

// Tracker bumps the popularity of a query.
type Tracker interface {
	Track(query string) error
}

// Recorder observes completed searches. Optional.
type Recorder interface {
	Search(results int)
}

// Aggregator fans a query out to all active sources. It never reads the
// catalog cache.
type Aggregator struct {
	Sources  SourceLister
	Fetcher  PageFetcher
	Trends   Tracker
	Timeout  time.Duration
	Recorder Recorder
}

// Search returns the merged results for keyword. Duplicate titles keep the
// variant with the most episodes; order is first appearance in completion
// order. An empty keyword returns an empty result without touching trends.
func (a *Aggregator) Search(ctx context.Context, keyword string, page int) []catalog.Item {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []catalog.Item{}
	}
	if a.Trends != nil {
		if err := a.Trends.Track(keyword); err != nil {
			log.WithError(err).Warn("search: track trend")
		}
	}
	sources, err := a.Sources.Active()
	if err != nil {
		log.WithError(err).Warn("search: no sources")
		return []catalog.Item{}
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan []catalog.Item, len(sources))
	var g errgroup.Group
	for _, src := range sources {
		g.Go(func() error {
			results <- a.Fetcher.FetchPage(ctx, src, upstream.Query{Keyword: keyword, Page: page})
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	merger := catalog.NewMerger(catalog.RicherWins)
	for items := range results {
		merger.Add(items...)
	}
	out := merger.Items()
	if a.Recorder != nil {
		a.Recorder.Search(len(out))
	}
	log.WithFields(log.Fields{"query": keyword, "sources": len(sources), "results": len(out)}).Debug("search: done")
	return out
}
