package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/vodstation/internal/runlog"
)

func newStatusCommand(app *appContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog size and recent collection runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.config
			out := cmd.OutOrStdout()
			store := app.store()
			if items, err := store.Load(cfg.CatalogPath); err != nil {
				fmt.Fprintf(out, "Catalog: unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "Catalog: %d items (%s)\n", len(items), cfg.CatalogPath)
			}
			if reels, err := store.Load(cfg.ReelsPath); err == nil {
				fmt.Fprintf(out, "Reels:   %d items (%s)\n", len(reels), cfg.ReelsPath)
			}

			runs, err := runlog.Open(cfg.RunlogPath)
			if err != nil {
				return err
			}
			defer runs.Close()
			recent, err := runs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Fprintln(out, "No collection runs recorded.")
				return nil
			}
			fmt.Fprintln(out, runsTable(recent))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func runsTable(runs []runlog.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		state := "running"
		switch {
		case r.OK():
			state = "ok"
		case r.Finished():
			state = "failed"
		}
		duration := ""
		if r.Finished() {
			duration = r.Duration().Round(time.Second).String()
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Trigger, state, duration,
			strconv.Itoa(r.Sources), strconv.Itoa(r.Pages), strconv.Itoa(r.Items), strconv.Itoa(r.Reels),
			r.Error,
		})
	}
	return renderTable(
		[]string{"Started", "Trigger", "State", "Duration", "Sources", "Pages", "Items", "Reels", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}
