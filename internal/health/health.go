package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/vodstation/internal/httpclient"
)

// Endpoints are the paths a running server must answer with 200.
var Endpoints = []string{"/healthz", "/api/latest?n=1", "/api/sitemap-info", "/sitemap.xml"}

// CheckUpstream fetches a source endpoint's first page. Returns nil if it answers
// 200 with a JSON body carrying a list, error with message if not.
func CheckUpstream(ctx context.Context, apiURL string) error {
	if apiURL == "" {
		return fmt.Errorf("no source api configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("source unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("source returned HTTP %d", resp.StatusCode)
	}
	var doc struct {
		List json.RawMessage `json:"list"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, httpclient.MaxBodyBytes)).Decode(&doc); err != nil {
		return fmt.Errorf("source returned non-JSON body: %w", err)
	}
	if len(doc.List) == 0 || string(doc.List) == "null" {
		return fmt.Errorf("source response has no list")
	}
	return nil
}

// CheckEndpoints hits every path in Endpoints at baseURL and returns the first error or nil.
func CheckEndpoints(ctx context.Context, baseURL string) error {
	client := httpclient.WithTimeout(5 * time.Second)
	baseURL = strings.TrimRight(baseURL, "/")
	for _, path := range Endpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
