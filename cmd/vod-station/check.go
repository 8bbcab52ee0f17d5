package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/vodstation/internal/health"
)

func newCheckCommand(app *appContext) *cobra.Command {
	var baseURL string
	var upstreams bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a running server's endpoints (and optionally each active source)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = localURL(app.config.Addr)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out := cmd.OutOrStdout()
			if err := health.CheckEndpoints(ctx, baseURL); err != nil {
				return fmt.Errorf("server %s: %w", baseURL, err)
			}
			fmt.Fprintf(out, "Server OK: %s\n", baseURL)
			if !upstreams {
				return nil
			}
			list, err := app.registry().Active()
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}
			failed := 0
			for _, s := range list {
				if err := health.CheckUpstream(ctx, s.API); err != nil {
					failed++
					fmt.Fprintf(out, "  %-20s FAIL %v\n", s.Name, err)
					continue
				}
				fmt.Fprintf(out, "  %-20s OK\n", s.Name)
			}
			if failed == len(list) && len(list) > 0 {
				return fmt.Errorf("no active source answered (%d checked)", len(list))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "", "Server base URL (default derived from addr)")
	cmd.Flags().BoolVar(&upstreams, "upstreams", false, "Also check each active source")
	return cmd
}

// localURL turns a listen address into a URL on the loopback interface.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
