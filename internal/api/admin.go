package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/snapetech/vodstation/internal/runlog"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/trends"
)

// maxAdminBody bounds POST bodies on admin routes.
const maxAdminBody = 1 << 20

func (s *Server) collectorStatus(c *gin.Context) {
	if s.Collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "collector not running"})
		return
	}
	c.JSON(http.StatusOK, s.Collector.Status(c.Request.Context()))
}

func (s *Server) triggerCollector(c *gin.Context) {
	if s.Collector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "collector not running"})
		return
	}
	if !s.Collector.Trigger(runlog.TriggerManual) {
		c.JSON(http.StatusConflict, gin.H{"status": "busy", "message": "a collection is already running or queued"})
		return
	}
	log.Info("api[admin]: collector triggered")
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) listSources(c *gin.Context) {
	if s.Sources == nil {
		c.JSON(http.StatusOK, []source.Source{})
		return
	}
	list, err := s.Sources.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("api[admin]: load sources")
		}
		list = []source.Source{}
	}
	c.JSON(http.StatusOK, list)
}

// saveSources replaces the registry when the body is an array and upserts
// one source by name when it is an object.
func (s *Server) saveSources(c *gin.Context) {
	if s.Sources == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no source registry"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAdminBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var list []source.Source
		if err := json.Unmarshal(body, &list); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source list"})
			return
		}
		if err := s.Sources.Save(list); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithField("sources", len(list)).Info("api[admin]: source registry replaced")
		c.JSON(http.StatusOK, list)
		return
	}
	var one source.Source
	if err := json.Unmarshal(body, &one); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}
	list, err := s.Sources.Upsert(one)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.WithField("source", one.Name).Info("api[admin]: source saved")
	c.JSON(http.StatusOK, list)
}

// testSource probes a source given inline ({name, api}) or by registered name.
func (s *Server) testSource(c *gin.Context) {
	if s.Probe == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "probe unavailable"})
		return
	}
	var req struct {
		Name string `json:"name"`
		API  string `json:"api"`
	}
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxAdminBody)).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid body"})
		return
	}
	src := source.Source{Name: strings.TrimSpace(req.Name), API: strings.TrimSpace(req.API), Active: true}
	if src.API == "" && src.Name != "" && s.Sources != nil {
		if list, err := s.Sources.Load(); err == nil {
			if found, ok := source.Find(list, src.Name); ok {
				src = found
			}
		}
	}
	if src.Name == "" {
		src.Name = src.API
	}
	if err := src.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Probe(c.Request.Context(), src))
}

func (s *Server) trends(c *gin.Context) {
	if s.Trends == nil {
		c.JSON(http.StatusOK, []trends.Entry{})
		return
	}
	c.JSON(http.StatusOK, s.Trends.Top(queryInt(c, "n", trends.MaxEntries)))
}
