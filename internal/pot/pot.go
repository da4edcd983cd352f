// Package pot probes the proof-of-origin token sidecar. The relay never reads
// tokens itself (yt-dlp talks to the sidecar directly); it only answers "is
// the sidecar process alive" for diagnostics.
package pot

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/darktube/tuberelay/internal/httpclient"
)

const DefaultTimeout = 3 * time.Second

// Status is the liveness state of the token provider.
type Status struct {
	Available bool   `json:"available"`
	URL       string `json:"url"`
}

// Client probes a provider base URL with a bounded budget.
type Client struct {
	BaseURL string
	Timeout time.Duration
	HTTP    *http.Client
}

// Probe issues a single GET against the provider base URL. Any HTTP response
// counts as available, 404 included — the sidecar 404s on GET / but that still
// means it is reachable and running. Only transport failure or timeout yields
// available=false.
func (c *Client) Probe(ctx context.Context) Status {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := c.HTTP
	if client == nil {
		client = httpclient.WithTimeout(timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return Status{Available: false, URL: c.BaseURL}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Status{Available: false, URL: c.BaseURL}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return Status{Available: true, URL: c.BaseURL}
}
