package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/vodstation/internal/httpclient"
	"github.com/snapetech/vodstation/internal/provider"
	"github.com/snapetech/vodstation/internal/source"
)

func newSourcesCommand(app *appContext) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List the source registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.registry().Load()
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}
			if activeOnly {
				list = source.Active(list)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sourcesTable(list))
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active sources")
	return cmd
}

func sourcesTable(list []source.Source) string {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		active := "no"
		if s.Active {
			active = "yes"
		}
		rows = append(rows, []string{s.Name, active, s.API, s.Tip})
	}
	return renderTable([]string{"Name", "Active", "API", "Tip"}, rows, nil)
}

func newProbeCommand(app *appContext) *cobra.Command {
	var timeout time.Duration
	var all bool
	cmd := &cobra.Command{
		Use:   "probe [name...]",
		Short: "Probe sources and report which answer with a catalog page",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := app.registry().Load()
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}
			if !all {
				list = source.Active(list)
			}
			if len(args) > 0 {
				picked := make([]source.Source, 0, len(args))
				for _, name := range args {
					s, ok := source.Find(list, name)
					if !ok {
						return fmt.Errorf("unknown source %q", name)
					}
					picked = append(picked, s)
				}
				list = picked
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+5*time.Second)
			defer cancel()
			results := provider.ProbeAll(ctx, list, httpclient.WithTimeout(timeout))
			fmt.Fprintln(cmd.OutOrStdout(), probeTable(results))
			if name := provider.Fastest(results); name != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Fastest: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", provider.DefaultTimeout, "Per-source timeout")
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive sources")
	return cmd
}

func probeTable(results []provider.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		code := ""
		if r.StatusCode != 0 {
			code = strconv.Itoa(r.StatusCode)
		}
		stream := string(r.Stream)
		if r.StreamError != "" {
			stream = "fail: " + r.StreamError
		}
		rows = append(rows, []string{
			r.Name, string(r.Status), code,
			strconv.FormatInt(r.LatencyMs, 10) + "ms",
			strconv.Itoa(r.Items), r.Sample, stream,
		})
	}
	return renderTable(
		[]string{"Source", "Status", "HTTP", "Latency", "Items", "Sample", "Stream"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}
