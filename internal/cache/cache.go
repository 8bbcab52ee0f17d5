// Package cache keeps the persisted catalog and reels documents in memory as
// immutable snapshots and answers paginated read queries over them.
package cache

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/classify"
)

const (
	DefaultTTL             = 300 * time.Second
	DefaultChannelPageSize = 30
	DefaultReelsPageSize   = 20
	DefaultLatest          = 12

	// FirstChunkSize is what chunk 0 (or no chunk) returns.
	FirstChunkSize = 2000
	// ChunkSize is the size of chunks 1, 2, ...
	ChunkSize = 5000
)

// Loader reads an item document; *catalog.Store implements it.
type Loader interface {
	Load(path string) ([]catalog.Item, error)
}

// ReloadRecorder observes reloads. Optional; *metrics.Metrics implements it.
type ReloadRecorder interface {
	CacheReload(document string, items int, err error)
}

// Options for New. Zero values take defaults.
type Options struct {
	TTL        time.Duration
	Now        func() time.Time
	Classifier *classify.Classifier
	Recorder   ReloadRecorder
}

type snapshot struct {
	items    []catalog.Item
	loadedAt time.Time
}

// document is one lazily reloaded JSON document.
type document struct {
	name string
	path string
	snap atomic.Pointer[snapshot]
	sf   singleflight.Group
}

// Cache serves reads from the last good snapshot of each document. A snapshot
// is reloaded on read when empty or older than the TTL; concurrent reloads
// collapse into one and a failed reload keeps the previous snapshot. Slices
// returned by Cache share the snapshot and must not be modified.
type Cache struct {
	store   Loader
	ttl     time.Duration
	now     func() time.Time
	cls     *classify.Classifier
	rec     ReloadRecorder
	catalog *document
	reels   *document
}

// New returns a cache over the catalog and reels documents. reelsPath may be empty.
func New(store Loader, catalogPath, reelsPath string, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Classifier == nil {
		opts.Classifier = classify.Default
	}
	return &Cache{
		store:   store,
		ttl:     opts.TTL,
		now:     opts.Now,
		cls:     opts.Classifier,
		rec:     opts.Recorder,
		catalog: &document{name: "catalog", path: catalogPath},
		reels:   &document{name: "reels", path: reelsPath},
	}
}

func (c *Cache) items(d *document) []catalog.Item {
	s := d.snap.Load()
	if s != nil && len(s.items) > 0 && c.now().Sub(s.loadedAt) <= c.ttl {
		return s.items
	}
	if d.path == "" {
		return nil
	}
	v, _, _ := d.sf.Do("reload", func() (any, error) {
		return c.reload(d), nil
	})
	return v.([]catalog.Item)
}

// reload swaps in a fresh snapshot, or returns the previous items on failure.
func (c *Cache) reload(d *document) []catalog.Item {
	items, err := c.store.Load(d.path)
	if c.rec != nil {
		c.rec.CacheReload(d.name, len(items), err)
	}
	if err != nil {
		prev := d.snap.Load()
		log.WithError(err).WithField("document", d.name).Warn("cache: reload failed; serving previous snapshot")
		if prev == nil {
			return nil
		}
		return prev.items
	}
	d.snap.Store(&snapshot{items: items, loadedAt: c.now()})
	log.WithField("document", d.name).Debugf("cache: loaded %d items", len(items))
	return items
}

// Invalidate marks both snapshots stale so the next read reloads them.
func (c *Cache) Invalidate() {
	for _, d := range []*document{c.catalog, c.reels} {
		if s := d.snap.Load(); s != nil {
			d.snap.Store(&snapshot{items: s.items})
		}
	}
}

// LoadedAt is when the catalog snapshot was last loaded (zero if never or invalidated).
func (c *Cache) LoadedAt() time.Time {
	if s := c.catalog.snap.Load(); s != nil {
		return s.loadedAt
	}
	return time.Time{}
}

// Catalog returns the whole catalog snapshot.
func (c *Cache) Catalog() []catalog.Item {
	return clip(c.items(c.catalog))
}

// Total is the number of catalog items.
func (c *Cache) Total() int {
	return len(c.items(c.catalog))
}

// Latest returns up to n items from the head of the catalog (newest first).
func (c *Cache) Latest(n int) []catalog.Item {
	items := c.items(c.catalog)
	if n <= 0 {
		return []catalog.Item{}
	}
	return clip(items[:min(n, len(items))])
}

// Query filters the catalog (nil filter keeps everything) and returns one page.
func (c *Cache) Query(filter func(catalog.Item) bool, page, pageSize int) []catalog.Item {
	items := c.items(c.catalog)
	if filter != nil {
		kept := make([]catalog.Item, 0)
		for _, it := range items {
			if filter(it) {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	return Paginate(items, page, pageSize)
}

// Channel returns one page of the items matching a channel name, deduplicated
// by (title, category). pageSize <= 0 means DefaultChannelPageSize.
func (c *Cache) Channel(name string, page, pageSize int) []catalog.Item {
	if pageSize <= 0 {
		pageSize = DefaultChannelPageSize
	}
	type key struct{ title, category string }
	seen := make(map[key]struct{})
	return c.Query(func(it catalog.Item) bool {
		if !c.cls.Match(name, it.Category, it.Title) {
			return false
		}
		k := key{it.Title, it.Category}
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	}, page, pageSize)
}

// Reels returns one page of the reels document.
func (c *Cache) Reels(page, pageSize int) []catalog.Item {
	if pageSize <= 0 {
		pageSize = DefaultReelsPageSize
	}
	return Paginate(c.items(c.reels), page, pageSize)
}

// Chunk returns a raw slice for bulk consumers: chunk <= 0 is the first
// FirstChunkSize items, chunk n >= 1 is items[(n-1)*ChunkSize : n*ChunkSize],
// clamped to the catalog.
func (c *Cache) Chunk(chunk int) []catalog.Item {
	items := c.items(c.catalog)
	if chunk <= 0 {
		return clip(items[:min(FirstChunkSize, len(items))])
	}
	if chunk-1 > len(items)/ChunkSize {
		return []catalog.Item{}
	}
	lo := (chunk - 1) * ChunkSize
	if lo >= len(items) {
		return []catalog.Item{}
	}
	return clip(items[lo:min(chunk*ChunkSize, len(items))])
}

// ChunkCount is how many ChunkSize chunks cover n items.
func ChunkCount(n int) int {
	return (n + ChunkSize - 1) / ChunkSize
}

// Paginate returns items[(page-1)*size : page*size]. page < 1 is page 1;
// a page past the end, or size <= 0, is empty. Never nil.
func Paginate(items []catalog.Item, page, size int) []catalog.Item {
	if size <= 0 {
		return []catalog.Item{}
	}
	if page < 1 {
		page = 1
	}
	if page-1 > len(items)/size {
		return []catalog.Item{}
	}
	lo := (page - 1) * size
	if lo >= len(items) {
		return []catalog.Item{}
	}
	return clip(items[lo:min(lo+size, len(items))])
}

func clip(items []catalog.Item) []catalog.Item {
	if items == nil {
		return []catalog.Item{}
	}
	return items[:len(items):len(items)]
}
