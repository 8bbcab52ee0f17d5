package catalog

import (
	"sort"
	"strings"
)

// DefaultCategory is used when an upstream record carries no category.
const DefaultCategory = "影视"

// Episode is one playable entry of an item. Episodes keep upstream order.
type Episode struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Item is a normalized catalog entry from one source. ID is only unique
// within SourceName; the catalog itself is keyed by Title.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Poster      string    `json:"poster"`
	Year        string    `json:"year"`
	Area        string    `json:"area"`
	Description string    `json:"description"`
	Episodes    []Episode `json:"episodes"`
	SourceName  string    `json:"source_name"`
	UpdateTime  string    `json:"update_time"` // opaque upstream string, compared lexicographically
	Remarks     string    `json:"remarks,omitempty"`
	Director    string    `json:"director,omitempty"`
	Actor       string    `json:"actor,omitempty"`
	SourceTip   string    `json:"source_tip,omitempty"`
}

// Valid reports whether the item may be retained (id and title non-empty).
func (it Item) Valid() bool {
	return strings.TrimSpace(it.ID) != "" && strings.TrimSpace(it.Title) != ""
}

// SortByUpdateTime orders items by UpdateTime descending, ties by ID ascending.
// Comparison is plain string comparison so malformed timestamps never fail the sort.
func SortByUpdateTime(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].UpdateTime != items[j].UpdateTime {
			return items[i].UpdateTime > items[j].UpdateTime
		}
		return items[i].ID < items[j].ID
	})
}

// DefaultReelsMarker selects commentary/recap items for the reels document.
const DefaultReelsMarker = "解说"

// SplitReels returns the items whose title or category contains any of the
// markers, in input order. Empty markers fall back to DefaultReelsMarker.
func SplitReels(items []Item, markers ...string) []Item {
	if len(markers) == 0 {
		markers = []string{DefaultReelsMarker}
	}
	out := make([]Item, 0)
	for _, it := range items {
		for _, m := range markers {
			if m == "" {
				continue
			}
			if strings.Contains(it.Title, m) || strings.Contains(it.Category, m) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}
