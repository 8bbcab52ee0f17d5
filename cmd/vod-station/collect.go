package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snapetech/vodstation/internal/catalog"
	"github.com/snapetech/vodstation/internal/collector"
	"github.com/snapetech/vodstation/internal/runlog"
)

func newCollectCommand(app *appContext) *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection over every active source and write the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg := app.config
			c := app.collector(app.upstreamClient())
			if maxPages > 0 {
				c.Options.MaxPages = maxPages
			}
			runs, err := runlog.Open(cfg.RunlogPath)
			if err != nil {
				log.WithError(err).Warn("collect: run history disabled")
				runs = nil
			} else {
				defer runs.Close()
			}
			svc := collector.NewService(c, cfg.CollectInterval, collector.ServiceOptions{
				Runs:     runs,
				Recorder: app.metrics,
			})
			res, err := svc.RunOnce(ctx, runlog.TriggerCLI)
			if err != nil {
				if errors.Is(err, collector.ErrNoRegistry) {
					return fmt.Errorf("%w (set VOD_STATION_SOURCES_PATH)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collected %d items (%d reels) -> %s\n%s\n",
				len(res.Items), len(res.Reels), cfg.CatalogPath, res.Stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Pages per source (default from config)")
	return cmd
}

// newReelsCommand rebuilds the reels document from the persisted catalog.
func newReelsCommand(app *appContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reels",
		Short: "Rebuild the reels document from the current catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config
			store := app.store()
			items, err := store.Load(cfg.CatalogPath)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			reels := catalog.SplitReels(items, cfg.ReelsMarkers...)
			if err := store.Save(cfg.ReelsPath, reels); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d reels of %d items -> %s\n", len(reels), len(items), cfg.ReelsPath)
			return nil
		},
	}
}
