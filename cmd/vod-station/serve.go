package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snapetech/vodstation/internal/api"
	"github.com/snapetech/vodstation/internal/collector"
	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/provider"
	"github.com/snapetech/vodstation/internal/runlog"
	"github.com/snapetech/vodstation/internal/search"
	"github.com/snapetech/vodstation/internal/source"
	"github.com/snapetech/vodstation/internal/supervisor"
)

func newServeCommand(app *appContext) *cobra.Command {
	var addr string
	var noCollector bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the collector periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.serve(ctx, addr, !noCollector)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().BoolVar(&noCollector, "no-collector", false, "Serve only; do not run the periodic collector")
	return cmd
}

func (a *appContext) serve(ctx context.Context, addr string, withCollector bool) error {
	cfg := a.config
	if addr == "" {
		addr = cfg.Addr
	}
	cls, err := a.classifier()
	if err != nil {
		return err
	}
	client := a.upstreamClient()
	catalogCache := a.cache(cls)
	registry := a.registry()

	srv := &api.Server{
		Catalog: catalogCache,
		Search: &search.Aggregator{
			Sources:  registry,
			Fetcher:  client,
			Trends:   a.trends(),
			Timeout:  cfg.SearchTimeout,
			Recorder: a.metrics,
		},
		Upstream: client,
		Sources:  registry,
		Probe: func(ctx context.Context, src source.Source) provider.Result {
			return provider.ProbeSource(ctx, src, httpclient.WithTimeout(provider.DefaultTimeout))
		},
		Trends:          a.trends(),
		Metrics:         a.metrics.Handler(),
		Site:            api.Site{Name: cfg.SiteName, Notice: cfg.SiteNotice, URL: cfg.SiteURL},
		AdminToken:      cfg.AdminToken,
		ChannelPageSize: cfg.ChannelPageSize,
		ReelsPageSize:   cfg.ReelsPageSize,
	}
	if cfg.AdminToken == "" {
		log.Warn("serve: VOD_STATION_ADMIN_TOKEN is empty; admin routes are disabled")
	}

	tasks := []supervisor.Task{}
	if withCollector {
		runs, err := runlog.Open(cfg.RunlogPath)
		if err != nil {
			log.WithError(err).Warn("serve: run history disabled")
			runs = nil
		} else {
			defer runs.Close()
		}
		svc := collector.NewService(a.collector(client), cfg.CollectInterval, collector.ServiceOptions{
			StartDelay:     cfg.CollectStartDelay,
			FailureBackoff: cfg.FailureBackoff,
			Runs:           runs,
			Recorder:       a.metrics,
			OnSuccess:      func(collector.Result) { catalogCache.Invalidate() },
		})
		srv.Collector = svc
		tasks = append(tasks, supervisor.Task{Name: "collector", Run: svc.Run})
	}

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tasks = append(tasks, supervisor.Task{
		Name: "http",
		Run: func(ctx context.Context) error {
			return listenAndServe(ctx, httpSrv)
		},
	})
	log.Infof("serve: listening on %s (catalog %s)", addr, cfg.CatalogPath)
	return supervisor.Run(ctx, tasks...)
}

// listenAndServe runs srv until ctx is done, then shuts it down gracefully.
func listenAndServe(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	}
}
