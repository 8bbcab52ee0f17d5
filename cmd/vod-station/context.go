package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/snapetech/vodstation/internal/cache"
	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/classify"
	"github.com/snapetech/vodstation/internal/collector"
	"github.com/snapetech/vodstation/internal/config"
	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/logging"
	"github.com/snapetech/vodstation/internal/metrics"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/trends"
	"github.com/snapetech/vodstation/internal/upstream"
)

// appContext lazily builds config and the components shared by commands.
type appContext struct {
	envFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logCloser  io.Closer

	fs      afero.Fs
	metrics *metrics.Metrics
}

func newAppContext(envFlag, configFlag *string) *appContext {
	return &appContext{
		envFlag:    envFlag,
		configFlag: configFlag,
		fs:         afero.NewOsFs(),
		metrics:    metrics.New(),
	}
}

func (a *appContext) ensureConfig() (*config.Config, error) {
	a.configOnce.Do(func() {
		if a.envFlag != nil && strings.TrimSpace(*a.envFlag) != "" {
			if err := config.LoadEnvFile(*a.envFlag); err != nil {
				a.configErr = fmt.Errorf("load env file: %w", err)
				return
			}
		}
		if a.configFlag != nil && strings.TrimSpace(*a.configFlag) != "" {
			os.Setenv(config.FileEnv, strings.TrimSpace(*a.configFlag))
		}
		cfg, err := config.Load()
		if err != nil {
			a.configErr = err
			return
		}
		closer, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
		if err != nil {
			a.configErr = err
			return
		}
		a.logCloser = closer
		a.config = cfg
	})
	return a.config, a.configErr
}

// close releases the log file, if one was opened.
func (a *appContext) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

func (a *appContext) registry() *source.Registry {
	return source.NewRegistry(a.fs, a.config.SourcesPath)
}

func (a *appContext) store() *catalog.Store {
	return catalog.NewStore(a.fs)
}

func (a *appContext) trends() *trends.Counter {
	return trends.New(a.fs, a.config.TrendsPath)
}

// searchHeadroom is the per-host slots left for live search and detail while
// the collector keeps all of its workers busy on the same source.
const searchHeadroom = 4

// upstreamClient shares one per-host semaphore and limiter across collector,
// search and detail.
func (a *appContext) upstreamClient() *upstream.Client {
	cfg := a.config
	c := upstream.New(cfg.FetchTimeout, cfg.EpisodeExts)
	c.Fetcher.Sem = httpclient.NewHostSemaphore(cfg.Workers + searchHeadroom)
	c.Fetcher.Limiter = httpclient.NewHostLimiter(cfg.SourceRPS, cfg.Workers)
	c.Recorder = a.metrics
	return c
}

func (a *appContext) classifier() (*classify.Classifier, error) {
	if a.config.MarkersPath == "" {
		return classify.Default, nil
	}
	m, err := classify.LoadMarkers(a.config.MarkersPath)
	if err != nil {
		return nil, err
	}
	return classify.New(m), nil
}

func (a *appContext) collector(client *upstream.Client) *collector.Collector {
	cfg := a.config
	return &collector.Collector{
		Registry:    a.registry(),
		Fetcher:     client,
		Store:       a.store(),
		CatalogPath: cfg.CatalogPath,
		ReelsPath:   cfg.ReelsPath,
		Options: collector.Options{
			MaxPages:     cfg.MaxPages,
			BatchSize:    cfg.BatchSize,
			Workers:      cfg.Workers,
			BatchPause:   cfg.BatchPause,
			SourceRPS:    cfg.SourceRPS,
			ReelsMarkers: cfg.ReelsMarkers,
		},
		Observer: a.metrics,
	}
}

func (a *appContext) cache(cls *classify.Classifier) *cache.Cache {
	return cache.New(a.store(), a.config.CatalogPath, a.config.ReelsPath, cache.Options{
		TTL:        a.config.CacheTTL,
		Classifier: cls,
		Recorder:   a.metrics,
	})
}
