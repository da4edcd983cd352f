// Package ytdlp runs the external yt-dlp tool as a one-shot subprocess and
// parses its structured output. No shell is involved anywhere: the video URL,
// cookie path and every other operand are passed as discrete argv entries.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultTimeout caps one extraction; exceeding it is a failure, not a hang.
	DefaultTimeout = 60 * time.Second
	// MaxOutputBytes caps captured stdout/stderr per invocation.
	MaxOutputBytes = 10 << 20
)

// ErrMalformedOutput marks a zero-exit run whose stdout was not valid JSON.
// Distinct from a tool-reported error (non-zero exit).
var ErrMalformedOutput = errors.New("failed to parse yt-dlp output")

var errOutputTooLarge = errors.New("yt-dlp output exceeded size limit")

// Format is one raw format descriptor from --dump-single-json.
type Format struct {
	ID         string `json:"format_id"`
	Ext        string `json:"ext"`
	Resolution string `json:"resolution"`
	VCodec     string `json:"vcodec"`
	ACodec     string `json:"acodec"`
	Filesize   int64  `json:"filesize"`
	URL        string `json:"url"`
}

// Extraction is the parsed result of a successful run.
type Extraction struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Thumbnail string   `json:"thumbnail"`
	Duration  float64  `json:"duration"`
	Formats   []Format `json:"formats"`
}

// Runner executes the external tool. One subprocess per call, no pooling.
type Runner struct {
	Path       string        // yt-dlp binary path
	PipPath    string        // pip3 binary for Update; default "pip3"
	Timeout    time.Duration // 0 = DefaultTimeout
	MaxOutput  int64         // 0 = MaxOutputBytes
	UpdateArgs []string      // override packages for Update (tests)
}

// cappedBuffer fails the subprocess copy loop once the ceiling is hit, which
// stops the pipe copy instead of buffering forever. The child then typically
// dies of SIGPIPE, so the truncated flag, not the Wait error, records why.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.max {
		b.truncated = true
		return 0, errOutputTooLarge
	}
	return b.buf.Write(p)
}

// Extract runs the tool with the given argument vector and parses its JSON
// output. On non-zero exit the returned error carries the single stderr line
// most indicative of the cause, never the whole blob.
func (r *Runner) Extract(ctx context.Context, args []string) (*Extraction, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOut := r.MaxOutput
	if maxOut <= 0 {
		maxOut = MaxOutputBytes
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Path, args...)
	stdout := &cappedBuffer{max: maxOut}
	stderr := &cappedBuffer{max: maxOut}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("yt-dlp timed out after %s", timeout)
		}
		if stdout.truncated || stderr.truncated || errors.Is(err, errOutputTooLarge) {
			return nil, errOutputTooLarge
		}
		msg := stderr.buf.String()
		if strings.TrimSpace(msg) == "" {
			msg = err.Error()
		}
		return nil, errors.New(errorLine(msg))
	}

	var out Extraction
	if err := json.Unmarshal(stdout.buf.Bytes(), &out); err != nil {
		return nil, ErrMalformedOutput
	}
	return &out, nil
}

// errorLine extracts the first line containing the tool's error marker, or
// returns the full text trimmed when no line matches.
func errorLine(stderr string) string {
	lines := strings.Split(stderr, "\n")
	for _, l := range lines {
		if strings.Contains(l, "ERROR:") {
			return strings.TrimSpace(l)
		}
	}
	return strings.TrimSpace(stderr)
}

// Version returns the tool's reported version, or "unknown" when the binary
// is missing or fails. Health and diagnostics swallow the error on purpose.
func (r *Runner) Version(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, r.Path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// Update upgrades yt-dlp and the PoT provider plugin via pip. Returns combined
// output so the admin endpoint can show the tail.
func (r *Runner) Update(ctx context.Context) (string, error) {
	pip := r.PipPath
	if pip == "" {
		pip = "pip3"
	}
	args := r.UpdateArgs
	if len(args) == 0 {
		args = []string{"install", "--no-cache-dir", "-U", "yt-dlp", "bgutil-ytdlp-pot-provider"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	out, err := exec.CommandContext(ctx, pip, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("pip upgrade: %w", err)
	}
	return string(out), nil
}
