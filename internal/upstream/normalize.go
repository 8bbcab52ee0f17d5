package upstream

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/safeurl"
)

// DefaultEpisodeExts is the playable-URL allow-list when none is configured.
var DefaultEpisodeExts = []string{".m3u8", ".mp4"}

// RawRecord is one entry of an upstream {"list": [...]} response. Numeric
// fields arrive as numbers or strings depending on the source.
type RawRecord struct {
	ID       any    `json:"vod_id"`
	Name     string `json:"vod_name"`
	Pic      string `json:"vod_pic"`
	TypeName string `json:"type_name"`
	TypeID   any    `json:"type_id"`
	Director string `json:"vod_director"`
	Actor    string `json:"vod_actor"`
	Year     any    `json:"vod_year"`
	Area     string `json:"vod_area"`
	Remarks  string `json:"vod_remarks"`
	Content  string `json:"vod_content"`
	Time     string `json:"vod_time"`
	PlayURL  string `json:"vod_play_url"`
}

// Normalize turns a raw record into a catalog item. ok is false when the
// record has neither id nor title; a record missing only one of them is
// returned and later rejected by the merger.
func Normalize(rec RawRecord, src string, exts []string) (catalog.Item, bool) {
	id := flexString(rec.ID)
	title := strings.TrimSpace(rec.Name)
	if id == "" && title == "" {
		return catalog.Item{}, false
	}
	category := strings.TrimSpace(rec.TypeName)
	if category == "" {
		category = catalog.DefaultCategory
	}
	return catalog.Item{
		ID:          id,
		Title:       title,
		Category:    category,
		Poster:      strings.TrimSpace(rec.Pic),
		Year:        flexString(rec.Year),
		Area:        strings.TrimSpace(rec.Area),
		Description: StripHTML(rec.Content),
		Episodes:    ParseEpisodes(rec.PlayURL, exts),
		SourceName:  src,
		UpdateTime:  strings.TrimSpace(rec.Time),
		Remarks:     strings.TrimSpace(rec.Remarks),
		Director:    strings.TrimSpace(rec.Director),
		Actor:       strings.TrimSpace(rec.Actor),
	}, true
}

// ParseEpisodes extracts playable episodes from a play-url blob:
//
//	name$url#name$url#...
//
// Segments without '$', with an empty side, or whose URL extension is not in
// allow are dropped one by one. Blobs carrying several play-lines joined by
// "$$$" yield the first line that has any playable segment. The result is
// never nil.
func ParseEpisodes(blob string, allow []string) []catalog.Episode {
	if len(allow) == 0 {
		allow = DefaultEpisodeExts
	}
	for _, line := range strings.Split(blob, "$$$") {
		if eps := parseLine(line, allow); len(eps) > 0 {
			return eps
		}
	}
	return []catalog.Episode{}
}

func parseLine(line string, allow []string) []catalog.Episode {
	var out []catalog.Episode
	for _, seg := range strings.Split(line, "#") {
		name, u, ok := strings.Cut(seg, "$")
		if !ok {
			continue
		}
		name, u = strings.TrimSpace(name), strings.TrimSpace(u)
		if name == "" || u == "" || !safeurl.HasExt(u, allow) {
			continue
		}
		out = append(out, catalog.Episode{Name: name, URL: u})
	}
	return out
}

// StripHTML returns the text content of s with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func flexString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatInt(int64(x), 10)
	case string:
		return strings.TrimSpace(x)
	case interface{ String() string }:
		return strings.TrimSpace(x.String())
	}
	return ""
}
