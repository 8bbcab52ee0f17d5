package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	t.Setenv(FileEnv, "")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":8000" {
		t.Errorf("Addr = %q", c.Addr)
	}
	if c.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", c.CacheTTL)
	}
	if c.ChannelPageSize != 30 || c.ReelsPageSize != 20 {
		t.Errorf("page sizes = %d/%d", c.ChannelPageSize, c.ReelsPageSize)
	}
	if c.MaxPages != 1000 || c.BatchSize != 100 || c.Workers != 15 {
		t.Errorf("collector sizing = %d/%d/%d", c.MaxPages, c.BatchSize, c.Workers)
	}
	if c.BatchPause != 500*time.Millisecond {
		t.Errorf("BatchPause = %v", c.BatchPause)
	}
	if c.CollectInterval != 6*time.Hour || c.FailureBackoff != 5*time.Minute {
		t.Errorf("intervals = %v/%v", c.CollectInterval, c.FailureBackoff)
	}
	if !reflect.DeepEqual(c.EpisodeExts, []string{".m3u8", ".mp4"}) {
		t.Errorf("EpisodeExts = %v", c.EpisodeExts)
	}
	if !reflect.DeepEqual(c.ReelsMarkers, []string{"解说"}) {
		t.Errorf("ReelsMarkers = %v", c.ReelsMarkers)
	}
	if c.AdminToken != "" {
		t.Errorf("AdminToken should default empty; got %q", c.AdminToken)
	}
}

func TestLoad_env(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("VOD_STATION_ADDR", ":9090")
	t.Setenv("VOD_STATION_CACHE_TTL", "90s")
	t.Setenv("VOD_STATION_WORKERS", "4")
	t.Setenv("VOD_STATION_SOURCE_RPS", "2.5")
	t.Setenv("VOD_STATION_EPISODE_EXTS", ".m3u8, MP4 ,flv")
	t.Setenv("VOD_STATION_ADMIN_TOKEN", " secret ")
	t.Setenv("VOD_STATION_SITE_URL", "https://example.com/")
	t.Setenv("VOD_STATION_LOG_FORMAT", "JSON")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":9090" {
		t.Errorf("Addr = %q", c.Addr)
	}
	if c.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v", c.CacheTTL)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d", c.Workers)
	}
	if c.SourceRPS != 2.5 {
		t.Errorf("SourceRPS = %v", c.SourceRPS)
	}
	if !reflect.DeepEqual(c.EpisodeExts, []string{".m3u8", ".mp4", ".flv"}) {
		t.Errorf("EpisodeExts = %v", c.EpisodeExts)
	}
	if c.AdminToken != "secret" {
		t.Errorf("AdminToken = %q", c.AdminToken)
	}
	if c.SiteURL != "https://example.com" {
		t.Errorf("SiteURL = %q", c.SiteURL)
	}
	if c.LogFormat != "json" {
		t.Errorf("LogFormat = %q", c.LogFormat)
	}
}

func TestLoad_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vod-station.toml")
	body := `
addr = ":7000"
catalog_path = "/srv/catalog.json"
episode_exts = [".m3u8", ".m4v"]
collect_interval = "12h"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("VOD_STATION_ADDR", ":7100")
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":7100" {
		t.Errorf("env should override file; Addr = %q", c.Addr)
	}
	if c.CatalogPath != "/srv/catalog.json" {
		t.Errorf("CatalogPath = %q", c.CatalogPath)
	}
	if !reflect.DeepEqual(c.EpisodeExts, []string{".m3u8", ".m4v"}) {
		t.Errorf("EpisodeExts = %v", c.EpisodeExts)
	}
	if c.CollectInterval != 12*time.Hour {
		t.Errorf("CollectInterval = %v", c.CollectInterval)
	}
}

func TestLoad_missingFile(t *testing.T) {
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.toml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_invalid(t *testing.T) {
	cases := map[string]string{
		"VOD_STATION_CACHE_TTL":    "soon",
		"VOD_STATION_WORKERS":      "0",
		"VOD_STATION_BATCH_SIZE":   "-1",
		"VOD_STATION_MAX_PAGES":    "-5",
		"VOD_STATION_LOG_FORMAT":   "xml",
		"VOD_STATION_EPISODE_EXTS": " , ",
		"VOD_STATION_BATCH_PAUSE":  "-1s",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(FileEnv, "")
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q should be rejected", key, val)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(nil); got != nil {
		t.Errorf("nil = %v", got)
	}
	if got := splitList("a, b,,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("string = %v", got)
	}
	if got := splitList([]any{"x", " y "}); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("list = %v", got)
	}
}
