package classify

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Markers are the substrings each rule looks for. They are data so a deployment
// can tune them for its sources without a rebuild.
type Markers struct {
	ShortDrama    []string `toml:"short_drama"`
	Series        []string `toml:"series"`
	SeriesExclude []string `toml:"series_exclude"`
	Anime         []string `toml:"anime"`
	Movie         []string `toml:"movie"`
	Variety       []string `toml:"variety"`
}

// DefaultMarkers returns the built-in marker sets.
func DefaultMarkers() Markers {
	return Markers{
		ShortDrama: []string{"短剧"},
		Series:     []string{"剧", "TV"},
		// "剧情片" is a film genre, not a series.
		SeriesExclude: []string{"剧情"},
		Anime:         []string{"动漫", "动画"},
		Movie:         []string{"片", "电影"},
		Variety:       []string{"综艺"},
	}
}

func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if len(m.ShortDrama) == 0 {
		m.ShortDrama = d.ShortDrama
	}
	if len(m.Series) == 0 {
		m.Series = d.Series
	}
	if m.SeriesExclude == nil {
		m.SeriesExclude = d.SeriesExclude
	}
	if len(m.Anime) == 0 {
		m.Anime = d.Anime
	}
	if len(m.Movie) == 0 {
		m.Movie = d.Movie
	}
	if len(m.Variety) == 0 {
		m.Variety = d.Variety
	}
	return m
}

// LoadMarkers reads a TOML marker file. Keys left out keep their defaults.
//
//	short_drama = ["短剧", "微短剧"]
//	series_exclude = []
func LoadMarkers(path string) (Markers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Markers{}, fmt.Errorf("classify markers: %w", err)
	}
	var m Markers
	if err := toml.Unmarshal(data, &m); err != nil {
		return Markers{}, fmt.Errorf("classify markers: decode %s: %w", path, err)
	}
	return m.withDefaults(), nil
}
