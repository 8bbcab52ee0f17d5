// Package collector pages through every active source, merges the results
// into one title-deduplicated catalog and writes the catalog and reels
// documents.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/upstream"
)

var (
	// ErrNoRegistry means the source registry could not be read; the run is aborted.
	ErrNoRegistry = errors.New("source registry unavailable")
	// ErrBusy means another process holds the collector lock.
	ErrBusy = errors.New("collector already running")
	// ErrNothingCollected means no source produced a single item; the previous
	// documents are left in place.
	ErrNothingCollected = errors.New("no items collected")
)

const (
	DefaultMaxPages   = 1000
	DefaultBatchSize  = 100
	DefaultWorkers    = 15
	DefaultBatchPause = 500 * time.Millisecond
	DefaultSourceRPS  = 20
)

// PageFetcher is the upstream capability the collector needs. A nil error
// with no items means the source answered with an empty page.
type PageFetcher interface {
	Page(ctx context.Context, src source.Source, q upstream.Query) ([]catalog.Item, error)
}

// Observer receives per-page progress. Optional.
type Observer interface {
	CollectedPage(source string)
}

// Options tune paging and backpressure. Zero values take the defaults.
type Options struct {
	MaxPages     int
	BatchSize    int
	Workers      int
	BatchPause   time.Duration
	SourceRPS    float64
	ReelsMarkers []string
}

func (o Options) withDefaults() Options {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.BatchPause < 0 {
		o.BatchPause = 0
	}
	if o.SourceRPS == 0 {
		o.SourceRPS = DefaultSourceRPS
	}
	return o
}

// Collector is safe to reuse across runs but a single instance should not run
// concurrently with itself; Service and the file lock enforce that.
type Collector struct {
	Registry    *source.Registry
	Fetcher     PageFetcher
	Store       *catalog.Store
	CatalogPath string
	ReelsPath   string

	// LockPath is the run lock. It always lives on the OS filesystem, whatever
	// Store writes to; "" means CatalogPath + ".lock".
	LockPath string
	Options  Options
	Observer Observer
}

// Stats summarises a run.
type Stats struct {
	Sources     int
	Pages       int
	FailedPages int // pages the source did not answer (network, status, bad JSON)
	EmptyPages  int // pages answered with no records
	Records     int // records returned before dedup
	Dropped     int // records without id or title
	Items       int
	Reels       int
	Duration    time.Duration
}

func (s Stats) String() string {
	return fmt.Sprintf("sources=%d pages=%d failed_pages=%d empty_pages=%d records=%d dropped=%d items=%d reels=%d duration=%s",
		s.Sources, s.Pages, s.FailedPages, s.EmptyPages, s.Records, s.Dropped, s.Items, s.Reels, s.Duration.Round(time.Millisecond))
}

// Result is the output of Collect.
type Result struct {
	Items []catalog.Item
	Reels []catalog.Item
	Stats Stats
}

// Collect pages through sources one after another. Within a source, pages run
// in batches of BatchSize on a pool of Workers; results of a batch are merged
// in page order with first-write-wins, so the same upstream always produces
// the same catalog. A batch with no records that the source did answer ends
// that source early; a batch that failed outright does not.
//
// Page failures only reduce the item count. The only error is ctx's.
func (c *Collector) Collect(ctx context.Context, sources []source.Source, maxPages int) (Result, error) {
	opts := c.Options.withDefaults()
	if maxPages <= 0 {
		maxPages = opts.MaxPages
	}
	start := time.Now()
	merger := catalog.NewMerger(catalog.FirstWriteWins)
	stats := Stats{Sources: len(sources)}

	for _, src := range sources {
		if err := c.collectSource(ctx, src, maxPages, opts, merger, &stats); err != nil {
			return Result{}, err
		}
	}

	items := merger.Items()
	catalog.SortByUpdateTime(items)
	reels := catalog.SplitReels(items, opts.ReelsMarkers...)
	stats.Dropped = merger.Dropped()
	stats.Items = len(items)
	stats.Reels = len(reels)
	stats.Duration = time.Since(start)
	return Result{Items: items, Reels: reels, Stats: stats}, nil
}

func (c *Collector) collectSource(ctx context.Context, src source.Source, maxPages int, opts Options, merger *catalog.Merger, stats *Stats) error {
	limit := rate.Limit(opts.SourceRPS)
	if opts.SourceRPS < 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, opts.Workers)
	fields := log.Fields{"source": src.Name}
	before := merger.Len()

	for first := 1; first <= maxPages; first += opts.BatchSize {
		last := min(first+opts.BatchSize-1, maxPages)
		pages := make([][]catalog.Item, last-first+1)
		errs := make([]error, len(pages))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range pages {
			page := first + i
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					errs[i] = err
					return nil
				}
				pages[i], errs[i] = c.Fetcher.Page(gctx, src, upstream.Query{Page: page})
				if c.Observer != nil {
					c.Observer.CollectedPage(src.Name)
				}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		records, answered := 0, 0
		for i, items := range pages {
			stats.Pages++
			switch {
			case errs[i] != nil:
				stats.FailedPages++
			case len(items) == 0:
				stats.EmptyPages++
				answered++
			default:
				answered++
			}
			records += len(items)
			merger.Add(items...)
		}
		stats.Records += records
		log.WithFields(fields).Debugf("collector[%s]: pages %d-%d records=%d answered=%d", src.Name, first, last, records, answered)
		if records == 0 && answered > 0 {
			log.WithFields(fields).Infof("collector[%s]: pages %d-%d empty; source exhausted", src.Name, first, last)
			break
		}
		if records == 0 {
			log.WithFields(fields).Warnf("collector[%s]: pages %d-%d all failed; continuing", src.Name, first, last)
		}
		if last < maxPages && opts.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.BatchPause):
			}
		}
	}
	log.WithFields(fields).WithField("new_titles", merger.Len()-before).Infof("collector[%s]: done", src.Name)
	return nil
}

// Run is one full collection: lock, load the registry, collect and persist both
// documents. It returns ErrBusy when another process is collecting and wraps
// ErrNoRegistry when the registry cannot be read.
func (c *Collector) Run(ctx context.Context) (Result, error) {
	unlock, err := c.lock()
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	sources, err := c.Registry.Active()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNoRegistry, err)
	}
	log.Infof("collector: starting run over %d active source(s)", len(sources))
	res, err := c.Collect(ctx, sources, c.Options.MaxPages)
	if err != nil {
		return res, err
	}
	if len(res.Items) == 0 {
		return res, ErrNothingCollected
	}
	if err := c.Store.Save(c.CatalogPath, res.Items); err != nil {
		return res, err
	}
	if c.ReelsPath != "" {
		if err := c.Store.Save(c.ReelsPath, res.Reels); err != nil {
			return res, err
		}
	}
	log.Infof("collector: run complete %s", res.Stats)
	return res, nil
}

func (c *Collector) lock() (func(), error) {
	path := c.LockPath
	if path == "" {
		path = c.CatalogPath + ".lock"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("collector lock: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("collector lock: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() { _ = fl.Unlock() }, nil
}
