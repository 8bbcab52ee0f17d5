// Package probe checks that an episode URL answers with something playable.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/snapetech/vodstation/internal/httpclient"
)

// StreamType classifies an episode URL for the player.
type StreamType string

const (
	StreamUnknown   StreamType = ""
	StreamHLS       StreamType = "hls"
	StreamDirectMP4 StreamType = "direct_mp4"
	StreamFLV       StreamType = "flv"
)

// DefaultTimeout bounds one stream probe.
const DefaultTimeout = 8 * time.Second

// ErrNotPlayable is wrapped when the URL answers but not with a stream.
var ErrNotPlayable = errors.New("not a playable stream")

// Kind guesses the stream type from the URL path extension alone.
func Kind(rawURL string) StreamType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return StreamUnknown
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8":
		return StreamHLS
	case ".mp4", ".m4v":
		return StreamDirectMP4
	case ".flv":
		return StreamFLV
	}
	return StreamUnknown
}

// Probe fetches the start of streamURL and returns its type. HLS URLs must
// answer with an #EXTM3U playlist; anything else is typed by Content-Type,
// falling back to the extension.
func Probe(ctx context.Context, streamURL string, client *http.Client) (StreamType, error) {
	if client == nil {
		client = httpclient.WithTimeout(DefaultTimeout)
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return StreamUnknown, err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	kind := Kind(streamURL)
	if kind != StreamHLS {
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := client.Do(req)
	if err != nil {
		return StreamUnknown, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StreamUnknown, fmt.Errorf("probe: %w: HTTP %d", httpclient.ErrStatus, resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if kind == StreamHLS || strings.Contains(ct, "mpegurl") {
		line, _ := bufio.NewReader(resp.Body).ReadString('\n')
		if !strings.HasPrefix(strings.TrimPrefix(strings.TrimSpace(line), "\ufeff"), "#EXTM3U") {
			return StreamUnknown, fmt.Errorf("probe: %w: missing #EXTM3U", ErrNotPlayable)
		}
		return StreamHLS, nil
	}
	switch {
	case strings.Contains(ct, "video/mp4"), strings.Contains(ct, "application/mp4"):
		return StreamDirectMP4, nil
	case strings.Contains(ct, "video/x-flv"):
		return StreamFLV, nil
	case strings.Contains(ct, "text/html"):
		return StreamUnknown, fmt.Errorf("probe: %w: got %s", ErrNotPlayable, ct)
	}
	if kind != StreamUnknown {
		return kind, nil
	}
	return StreamUnknown, fmt.Errorf("probe: %w: content type %q", ErrNotPlayable, ct)
}
