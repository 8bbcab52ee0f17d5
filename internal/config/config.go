package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when read from the environment
// (cache_ttl -> VOD_STATION_CACHE_TTL).
const EnvPrefix = "VOD_STATION"

// FileEnv names the environment variable holding an optional config file path.
// The file format follows its extension (toml, yaml, json).
const FileEnv = EnvPrefix + "_CONFIG"

// Config holds collector, cache, search and HTTP settings.
type Config struct {
	Addr string // listen address for serve, e.g. :8000

	// Documents
	CatalogPath string
	ReelsPath   string
	SourcesPath string
	TrendsPath  string
	RunlogPath  string
	MarkersPath string // optional TOML channel marker file; "" = built-in markers

	// Cache and query
	CacheTTL        time.Duration
	ChannelPageSize int
	ReelsPageSize   int
	SearchTimeout   time.Duration

	// Collector
	FetchTimeout      time.Duration
	MaxPages          int
	BatchSize         int
	Workers           int
	BatchPause        time.Duration
	SourceRPS         float64 // per-source request rate; <0 disables the limiter
	CollectInterval   time.Duration
	CollectStartDelay time.Duration
	FailureBackoff    time.Duration
	EpisodeExts       []string
	ReelsMarkers      []string

	// Admin and site
	AdminToken string // empty disables /api/admin
	SiteName   string
	SiteNotice string
	SiteURL    string

	// Logging
	LogLevel  string
	LogFormat string // text | json
	LogFile   string
}

var defaults = map[string]any{
	"addr":                ":8000",
	"catalog_path":        "./data/catalog.json",
	"reels_path":          "./data/reels.json",
	"sources_path":        "./data/sources.json",
	"trends_path":         "./data/trends.json",
	"runlog_path":         "./data/runs.db",
	"markers_path":        "",
	"cache_ttl":           "5m",
	"channel_page_size":   30,
	"reels_page_size":     20,
	"search_timeout":      "8s",
	"fetch_timeout":       "10s",
	"max_pages":           1000,
	"batch_size":          100,
	"workers":             15,
	"batch_pause":         "500ms",
	"source_rps":          20.0,
	"collect_interval":    "6h",
	"collect_start_delay": "30s",
	"failure_backoff":     "5m",
	"episode_exts":        ".m3u8,.mp4",
	"reels_marker":        "解说",
	"admin_token":         "",
	"site_name":           "VOD Station",
	"site_notice":         "",
	"site_url":            "",
	"log_level":           "info",
	"log_format":          "text",
	"log_file":            "",
}

// New returns a viper instance with defaults and environment bindings installed.
// When VOD_STATION_CONFIG names a file it is read; a missing file is an error
// because the operator asked for it explicitly.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for k, val := range defaults {
		v.SetDefault(k, val)
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config: %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads config from defaults, the optional config file and the environment.
// Call LoadEnvFile(".env") before Load() to use a .env file.
func Load() (*Config, error) {
	v, err := New()
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper converts a populated viper instance into a Config, rejecting
// values that would stall the collector or the cache.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Addr:            strings.TrimSpace(v.GetString("addr")),
		CatalogPath:     v.GetString("catalog_path"),
		ReelsPath:       v.GetString("reels_path"),
		SourcesPath:     v.GetString("sources_path"),
		TrendsPath:      v.GetString("trends_path"),
		RunlogPath:      v.GetString("runlog_path"),
		MarkersPath:     v.GetString("markers_path"),
		ChannelPageSize: v.GetInt("channel_page_size"),
		ReelsPageSize:   v.GetInt("reels_page_size"),
		MaxPages:        v.GetInt("max_pages"),
		BatchSize:       v.GetInt("batch_size"),
		Workers:         v.GetInt("workers"),
		SourceRPS:       v.GetFloat64("source_rps"),
		EpisodeExts:     normalizeExts(splitList(v.Get("episode_exts"))),
		ReelsMarkers:    splitList(v.Get("reels_marker")),
		AdminToken:      strings.TrimSpace(v.GetString("admin_token")),
		SiteName:        v.GetString("site_name"),
		SiteNotice:      v.GetString("site_notice"),
		SiteURL:         strings.TrimRight(strings.TrimSpace(v.GetString("site_url")), "/"),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:       strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
		LogFile:         v.GetString("log_file"),
	}
	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"cache_ttl", &c.CacheTTL},
		{"search_timeout", &c.SearchTimeout},
		{"fetch_timeout", &c.FetchTimeout},
		{"batch_pause", &c.BatchPause},
		{"collect_interval", &c.CollectInterval},
		{"collect_start_delay", &c.CollectStartDelay},
		{"failure_backoff", &c.FailureBackoff},
	}
	for _, d := range durations {
		if *d.dst, err = cast.ToDurationE(v.Get(d.key)); err != nil {
			return nil, fmt.Errorf("config: %s: %w", d.key, err)
		}
		if *d.dst < 0 {
			return nil, fmt.Errorf("config: %s must not be negative", d.key)
		}
	}
	if c.CacheTTL == 0 {
		return nil, errors.New("config: cache_ttl must be positive")
	}
	for key, n := range map[string]int{
		"channel_page_size": c.ChannelPageSize,
		"reels_page_size":   c.ReelsPageSize,
		"batch_size":        c.BatchSize,
		"workers":           c.Workers,
	} {
		if n < 1 {
			return nil, fmt.Errorf("config: %s must be >= 1, got %d", key, n)
		}
	}
	if c.MaxPages < 0 {
		return nil, fmt.Errorf("config: max_pages must not be negative, got %d", c.MaxPages)
	}
	if len(c.EpisodeExts) == 0 {
		return nil, errors.New("config: episode_exts is empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("config: log_format %q (want text or json)", c.LogFormat)
	}
	return c, nil
}

// splitList accepts either a comma-separated string (environment) or a list
// (config file) and returns the trimmed non-empty entries.
func splitList(raw any) []string {
	var parts []string
	switch x := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(x, ",")
	default:
		parts = cast.ToStringSlice(x)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
