// Command vod-station aggregates video catalogs from upstream sources and
// serves them over HTTP.
//
//	serve    HTTP API + periodic collector in one process
//	collect  One collection run: fetch every active source, write catalog + reels
//	reels    Rebuild the reels document from the current catalog
//	sources  List the source registry
//	probe    Probe each source and report ok / empty / bad_status / timeout / error
//	status   Recent collection runs and catalog size
//	check    Hit a running server's endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
