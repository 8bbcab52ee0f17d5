// Package classify maps free-text upstream category and title labels to a
// small fixed set of browse channels.
package classify

import "strings"

// Channel is a logical browse channel.
type Channel int

const (
	Other Channel = iota
	Movie
	Series
	Anime
	Variety
	ShortDrama
)

var channelNames = map[Channel]struct{ display, slug string }{
	Other:      {"其他", "other"},
	Movie:      {"电影", "movie"},
	Series:     {"电视剧", "series"},
	Anime:      {"动漫", "anime"},
	Variety:    {"综艺", "variety"},
	ShortDrama: {"短剧", "short-drama"},
}

// String returns the English slug (e.g. "short-drama").
func (c Channel) String() string { return channelNames[c].slug }

// DisplayName returns the Chinese display name used by the front end (e.g. "短剧").
func (c Channel) DisplayName() string { return channelNames[c].display }

// Channels lists the browsable channels in navigation order.
func Channels() []Channel {
	return []Channel{Movie, Series, ShortDrama, Anime, Variety}
}

// ParseChannel resolves a display name or slug to a known channel.
// Other is not addressable by name.
func ParseChannel(name string) (Channel, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Other, false
	}
	lower := strings.ToLower(name)
	for _, c := range Channels() {
		n := channelNames[c]
		if name == n.display || lower == n.slug {
			return c, true
		}
	}
	return Other, false
}

// Classifier applies a Markers rule chain. The zero value is not usable; use New.
type Classifier struct {
	m Markers
}

// New returns a classifier over m. Empty marker lists fall back to the defaults.
func New(m Markers) *Classifier {
	return &Classifier{m: m.withDefaults()}
}

// Default is a classifier over DefaultMarkers.
var Default = New(DefaultMarkers())

// Classify returns the channel for an item. Rules are evaluated in order and
// the first match wins:
//
//	short-drama (category or title) > series (category, minus exclusions) >
//	anime > movie > variety > other
//
// Short-drama labels usually contain the generic series marker too, so that
// rule must run first.
func (c *Classifier) Classify(category, title string) Channel {
	switch {
	case containsAny(category, c.m.ShortDrama) || containsAny(title, c.m.ShortDrama):
		return ShortDrama
	case containsAny(category, c.m.Series) && !containsAny(category, c.m.SeriesExclude):
		return Series
	case containsAny(category, c.m.Anime):
		return Anime
	case containsAny(category, c.m.Movie):
		return Movie
	case containsAny(category, c.m.Variety):
		return Variety
	}
	return Other
}

// Match reports whether an item belongs to the requested channel. A known
// channel name matches through Classify; anything else matches when the
// requested text occurs in the category.
func (c *Classifier) Match(requested, category, title string) bool {
	if ch, ok := ParseChannel(requested); ok {
		return c.Classify(category, title) == ch
	}
	requested = strings.TrimSpace(requested)
	return requested != "" && strings.Contains(category, requested)
}

// Classify uses the Default classifier.
func Classify(category, title string) Channel { return Default.Classify(category, title) }

// Match uses the Default classifier.
func Match(requested, category, title string) bool {
	return Default.Match(requested, category, title)
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, m := range markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
