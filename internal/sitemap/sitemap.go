// Package sitemap renders catalog chunks as sitemaps.org XML.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/snapetech/vodstation/internal/cache"
	"github.com/snapetech/vodstation/internal/catalog"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

type URL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type URLSet struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []URL    `xml:"url"`
}

type Sitemap struct {
	Loc string `xml:"loc"`
}

type Index struct {
	XMLName  xml.Name  `xml:"sitemapindex"`
	Xmlns    string    `xml:"xmlns,attr"`
	Sitemaps []Sitemap `xml:"sitemap"`
}

// ItemURL is the front-end detail page of an item:
// <base>/movie/<title>-<id>?src=<source>.
func ItemURL(base string, it catalog.Item) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/movie/%s?src=%s", base,
		url.PathEscape(it.Title+"-"+it.ID), url.QueryEscape(it.SourceName))
}

// URLSetFor lists the items of one chunk.
func URLSetFor(base string, items []catalog.Item) URLSet {
	set := URLSet{Xmlns: xmlns, URLs: make([]URL, 0, len(items))}
	for _, it := range items {
		if !it.Valid() {
			continue
		}
		set.URLs = append(set.URLs, URL{
			Loc:        ItemURL(base, it),
			LastMod:    lastMod(it.UpdateTime),
			ChangeFreq: "weekly",
			Priority:   "0.5",
		})
	}
	return set
}

// IndexFor lists chunk 0 (the head of the catalog) followed by every
// full-size chunk needed to cover total items.
func IndexFor(base string, total int) Index {
	base = strings.TrimRight(base, "/")
	n := cache.ChunkCount(total)
	idx := Index{Xmlns: xmlns, Sitemaps: make([]Sitemap, 0, n+1)}
	for i := 0; i <= n; i++ {
		idx.Sitemaps = append(idx.Sitemaps, Sitemap{Loc: fmt.Sprintf("%s/sitemap/%d.xml", base, i)})
	}
	return idx
}

// Write encodes v with the XML declaration.
func Write(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("sitemap: encode: %w", err)
	}
	return enc.Flush()
}

var timeLayouts = []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"}

// lastMod turns an upstream update time into a W3C date, or "" if it does not parse.
func lastMod(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}
