package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/snapetech/vodstation/internal/cache"
	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/sitemap"
	"github.com/snapetech/vodstation/internal/source"
)

var empty = []catalog.Item{}

func (s *Server) latest(c *gin.Context) {
	if s.Catalog == nil {
		c.JSON(http.StatusOK, empty)
		return
	}
	c.JSON(http.StatusOK, s.Catalog.Latest(queryInt(c, "n", DefaultLatest)))
}

func (s *Server) channel(c *gin.Context) {
	s.browse(c, c.Param("name"))
}

func (s *Server) browse(c *gin.Context, name string) {
	if s.Catalog == nil {
		c.JSON(http.StatusOK, empty)
		return
	}
	c.JSON(http.StatusOK, s.Catalog.Channel(name, queryInt(c, "pg", 1), s.ChannelPageSize))
}

// search runs a live keyword search; with no keyword but ?t= it browses
// that channel from the cache instead.
func (s *Server) search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		if t := strings.TrimSpace(c.Query("t")); t != "" {
			s.browse(c, t)
			return
		}
		c.JSON(http.StatusOK, empty)
		return
	}
	if s.Search == nil {
		c.JSON(http.StatusOK, empty)
		return
	}
	c.JSON(http.StatusOK, s.Search.Search(c.Request.Context(), q, queryInt(c, "pg", 1)))
}

func (s *Server) reels(c *gin.Context) {
	if s.Catalog == nil {
		c.JSON(http.StatusOK, empty)
		return
	}
	c.JSON(http.StatusOK, s.Catalog.Reels(queryInt(c, "pg", 1), s.ReelsPageSize))
}

// detail fetches one record live from the named source, falling back to the
// first registered source when the name is unknown. Answers null when the
// record cannot be found.
func (s *Server) detail(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" || s.Sources == nil || s.Upstream == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	sources, err := s.Sources.Load()
	if err != nil || len(sources) == 0 {
		if err != nil {
			log.WithError(err).Warn("api[detail]: load sources")
		}
		c.JSON(http.StatusOK, nil)
		return
	}
	src, ok := source.Find(sources, strings.TrimSpace(c.Query("src")))
	if !ok {
		src = sources[0]
	}
	it, ok := s.Upstream.Detail(c.Request.Context(), src, id)
	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) sitemapRaw(c *gin.Context) {
	if s.Catalog == nil {
		c.JSON(http.StatusOK, empty)
		return
	}
	c.JSON(http.StatusOK, s.Catalog.Chunk(queryInt(c, "chunk", 0)))
}

func (s *Server) sitemapInfo(c *gin.Context) {
	total := 0
	if s.Catalog != nil {
		total = s.Catalog.Total()
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"chunks":      cache.ChunkCount(total),
		"chunk_size":  cache.ChunkSize,
		"first_chunk": cache.FirstChunkSize,
	})
}

func (s *Server) config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"site_name": s.Site.Name,
		"notice":    s.Site.Notice,
	})
}

func (s *Server) sitemapIndex(c *gin.Context) {
	total := 0
	if s.Catalog != nil {
		total = s.Catalog.Total()
	}
	writeXML(c, sitemap.IndexFor(s.baseURL(c), total))
}

// sitemapChunk serves /sitemap/<n>.xml.
func (s *Server) sitemapChunk(c *gin.Context) {
	n, err := strconv.Atoi(strings.TrimSuffix(c.Param("chunk"), ".xml"))
	if err != nil || n < 0 {
		c.Status(http.StatusNotFound)
		return
	}
	var items []catalog.Item
	if s.Catalog != nil {
		items = s.Catalog.Chunk(n)
	}
	writeXML(c, sitemap.URLSetFor(s.baseURL(c), items))
}

func writeXML(c *gin.Context, v any) {
	var buf bytes.Buffer
	if err := sitemap.Write(&buf, v); err != nil {
		log.WithError(err).Warn("api[sitemap]: encode")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", buf.Bytes())
}
