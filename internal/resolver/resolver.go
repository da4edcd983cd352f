// Package resolver drives the ordered extraction fallback chain: each strategy
// is one combination of client persona spoof and cookie usage, tried
// sequentially until one produces a playable result.
package resolver

import (
	"context"
	"fmt"
	"log"

	"github.com/darktube/tuberelay/internal/cookies"
	"github.com/darktube/tuberelay/internal/pot"
	"github.com/darktube/tuberelay/internal/ytdlp"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// logErrCap bounds per-strategy diagnostics before logging; pathological tool
// output would otherwise flood the log.
const logErrCap = 200

// Strategy is one configured extraction attempt. Ordering is significant:
// the list is fixed at process start, best odds first.
type Strategy struct {
	Name       string
	Client     string // yt-dlp player_client persona; "" = default web client
	UseCookies bool
}

// Strategies returns the fixed priority list. Spoofed-identity and
// token-coordinated attempts come before bare ones; success likelihood
// decreases monotonically down the list.
func Strategies() []Strategy {
	return []Strategy{
		{Name: "pot+cookies", UseCookies: true},
		{Name: "tv_embedded+pot", Client: "tv_embedded"},
		{Name: "ios+pot", Client: "ios"},
		{Name: "pot_only"},
	}
}

// Invoker abstracts the subprocess runner so the chain is testable without
// spawning processes.
type Invoker interface {
	Extract(ctx context.Context, args []string) (*ytdlp.Extraction, error)
	Version(ctx context.Context) string
}

// Diagnostics is attached to a total failure so operators can tell "token
// provider down" from "no cookies" from "cookies expired" without log access.
type Diagnostics struct {
	YtDlpVersion string         `json:"ytdlpVersion"`
	Cookies      cookies.Bundle `json:"cookies"`
	PotProvider  pot.Status     `json:"potProvider"`
	Hints        []string       `json:"hints"`
}

// TotalFailure reports that every strategy was exhausted.
type TotalFailure struct {
	LastError   string
	Diagnostics Diagnostics
}

func (e *TotalFailure) Error() string {
	return "all extraction strategies failed: " + e.LastError
}

// Resolver owns the fallback chain and its collaborators.
type Resolver struct {
	Invoker        Invoker
	Cookies        *cookies.Store
	Pot            *pot.Client
	PotProviderURL string
	Strategies     []Strategy // nil = Strategies()

	// OnAttempt is called after each strategy attempt with a nil error on
	// success. Used for metrics; may be nil.
	OnAttempt func(strategy string, err error)
}

// Resolve runs the chain for one video. First success wins: no further
// strategies are attempted even if the result is low quality. On total
// failure the returned error is a *TotalFailure with diagnostics.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (*ytdlp.Extraction, error) {
	if videoID == "" {
		return nil, fmt.Errorf("missing video id")
	}
	strategies := r.Strategies
	if strategies == nil {
		strategies = Strategies()
	}

	var lastErr error
	for _, s := range strategies {
		log.Printf("resolver: trying strategy %s for video %s", s.Name, videoID)
		out, err := r.Invoker.Extract(ctx, r.args(s, videoID))
		if r.OnAttempt != nil {
			r.OnAttempt(s.Name, err)
		}
		if err == nil {
			log.Printf("resolver: success with strategy %s", s.Name)
			return out, nil
		}
		log.Printf("resolver: strategy %s failed: %s", s.Name, truncate(err.Error(), logErrCap))
		lastErr = err
	}

	lastMsg := "Unknown error"
	if lastErr != nil {
		lastMsg = lastErr.Error()
	}
	return nil, &TotalFailure{
		LastError:   lastMsg,
		Diagnostics: r.diagnostics(ctx),
	}
}

// args synthesizes the tool argument vector for one strategy. The video id
// and cookie path are discrete argv entries; nothing is shell-interpolated.
func (r *Resolver) args(s Strategy, videoID string) []string {
	args := []string{
		"--dump-single-json",
		"--no-warnings",
		"--no-check-certificates",
		"--prefer-free-formats",
		"--format", "best[ext=mp4]/best",
		"--extractor-args", "youtubepot-bgutilhttp:base_url=" + r.PotProviderURL,
	}
	if s.Client != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+s.Client)
	}
	if s.UseCookies && r.Cookies != nil && r.Cookies.Exists() {
		args = append(args, "--cookies", r.Cookies.Path)
	}
	args = append(args, watchURLPrefix+videoID)
	return args
}

// diagnostics snapshots tool version, cookie state and sidecar liveness.
// Hints are included only when their underlying condition actually holds.
func (r *Resolver) diagnostics(ctx context.Context) Diagnostics {
	d := Diagnostics{
		YtDlpVersion: r.Invoker.Version(ctx),
	}
	if r.Cookies != nil {
		d.Cookies = r.Cookies.Status()
	}
	if r.Pot != nil {
		d.PotProvider = r.Pot.Probe(ctx)
	}
	if !d.PotProvider.Available {
		d.Hints = append(d.Hints, "PO Token provider is NOT reachable - check if pot-provider container is running")
	}
	if !d.Cookies.Loaded {
		d.Hints = append(d.Hints, "No cookies.txt found - export from logged-in YouTube session")
	}
	if d.Cookies.Loaded && !d.Cookies.Valid {
		d.Hints = append(d.Hints, "cookies.txt does not contain YouTube cookies")
	}
	d.Hints = append(d.Hints,
		"Try re-exporting cookies from an incognito window (see yt-dlp wiki)",
		"Run: docker-compose restart to reload everything",
	)
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
