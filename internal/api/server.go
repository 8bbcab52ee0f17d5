// Package api is the HTTP surface over the catalog cache, live search and the
// collector service.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/collector"
	"github.com/snapetech/vodstation/internal/provider"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/trends"
)

// AdminHeader carries the admin token on /api/admin requests.
const AdminHeader = "x-admin-token"

// DefaultLatest is how many items /api/latest returns without ?n=.
const DefaultLatest = 12

// Catalog is the read side of the catalog cache.
type Catalog interface {
	Latest(n int) []catalog.Item
	Channel(name string, page, pageSize int) []catalog.Item
	Reels(page, pageSize int) []catalog.Item
	Chunk(chunk int) []catalog.Item
	Total() int
}

// Searcher runs a live keyword search across sources.
type Searcher interface {
	Search(ctx context.Context, keyword string, page int) []catalog.Item
}

// DetailFetcher fetches one record from a source.
type DetailFetcher interface {
	Detail(ctx context.Context, src source.Source, id string) (catalog.Item, bool)
}

// Registry is the source registry document.
type Registry interface {
	Load() ([]source.Source, error)
	Save(sources []source.Source) error
	Upsert(s source.Source) ([]source.Source, error)
}

// Collector is the periodic collector service.
type Collector interface {
	Trigger(trigger string) bool
	Status(ctx context.Context) collector.Status
}

// Prober checks one source for the admin test-source action.
type Prober func(ctx context.Context, src source.Source) provider.Result

// TrendReader returns the most searched queries.
type TrendReader interface {
	Top(n int) []trends.Entry
}

// Site is the public site configuration served by /api/config.
type Site struct {
	Name   string
	Notice string
	URL    string // canonical base for sitemap links; "" = derived from the request
}

// Server wires the core components to routes. Nil components disable the
// routes that need them (they answer with empty results).
type Server struct {
	Catalog         Catalog
	Search          Searcher
	Upstream        DetailFetcher
	Sources         Registry
	Collector       Collector
	Probe           Prober
	Trends          TrendReader
	Metrics         http.Handler
	Site            Site
	AdminToken      string // empty disables /api/admin
	ChannelPageSize int
	ReelsPageSize   int
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.healthz)
	if s.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.Metrics))
	}
	r.GET("/sitemap.xml", s.sitemapIndex)
	r.GET("/sitemap/:chunk", s.sitemapChunk)

	pub := r.Group("/api")
	pub.GET("/latest", s.latest)
	pub.GET("/channel/:name", s.channel)
	pub.GET("/search", s.search)
	pub.GET("/reels", s.reels)
	pub.GET("/detail", s.detail)
	pub.GET("/sitemap-raw", s.sitemapRaw)
	pub.GET("/sitemap-info", s.sitemapInfo)
	pub.GET("/config", s.config)

	admin := r.Group("/api/admin", s.requireAdmin())
	admin.GET("/collector-status", s.collectorStatus)
	admin.POST("/trigger-collector", s.triggerCollector)
	admin.GET("/sources", s.listSources)
	admin.POST("/sources", s.saveSources)
	admin.POST("/test-source", s.testSource)
	admin.GET("/trends", s.trends)
	return r
}

// requireAdmin rejects admin requests without the configured token.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.AdminToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}
		if c.GetHeader(AdminHeader) != s.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("api: request")
	}
}

func (s *Server) healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if s.Catalog != nil {
		body["items"] = s.Catalog.Total()
	}
	c.JSON(http.StatusOK, body)
}

// queryInt parses a query parameter, returning def when absent or malformed.
func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// baseURL is the configured site URL or scheme://host of the request.
func (s *Server) baseURL(c *gin.Context) string {
	if s.Site.URL != "" {
		return strings.TrimRight(s.Site.URL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}
