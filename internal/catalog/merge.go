package catalog

// Strategy decides which of two items sharing a title survives a merge.
type Strategy int

const (
	// FirstWriteWins keeps the item seen first, whatever the candidate carries.
	// Used by the collector so repeated runs over the same upstream are stable.
	FirstWriteWins Strategy = iota
	// RicherWins replaces the kept item when the candidate has strictly more episodes.
	// Used by live search.
	RicherWins
)

func (s Strategy) String() string {
	switch s {
	case FirstWriteWins:
		return "first-write-wins"
	case RicherWins:
		return "richer-wins"
	default:
		return "unknown"
	}
}

// replaces reports whether candidate should replace existing under s.
func (s Strategy) replaces(existing, candidate Item) bool {
	if s == RicherWins {
		return len(candidate.Episodes) > len(existing.Episodes)
	}
	return false
}

// Merger accumulates items keyed by title. It is not safe for concurrent use;
// the orchestrating goroutine feeds it results gathered from workers.
type Merger struct {
	strategy Strategy
	index    map[string]int
	items    []Item
	dropped  int
}

// NewMerger returns an empty merger using strategy.
func NewMerger(strategy Strategy) *Merger {
	return &Merger{strategy: strategy, index: make(map[string]int)}
}

// Add merges items in order. Items without id or title are dropped and counted.
func (m *Merger) Add(items ...Item) {
	for _, it := range items {
		if !it.Valid() {
			m.dropped++
			continue
		}
		i, ok := m.index[it.Title]
		if !ok {
			m.index[it.Title] = len(m.items)
			m.items = append(m.items, it)
			continue
		}
		if m.strategy.replaces(m.items[i], it) {
			m.items[i] = it
		}
	}
}

// Len is the number of distinct titles held.
func (m *Merger) Len() int { return len(m.items) }

// Dropped is the number of invalid items rejected so far.
func (m *Merger) Dropped() int { return m.dropped }

// Items returns the merged items in order of first title appearance.
func (m *Merger) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// MergeByTitle deduplicates items by title using strategy, preserving the
// order in which each title first appeared.
func MergeByTitle(items []Item, strategy Strategy) []Item {
	m := NewMerger(strategy)
	m.Add(items...)
	return m.Items()
}
