// Package gateway relays a resolved media URL's bytes to the client with
// range semantics intact, so the console player can seek.
package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/darktube/tuberelay/internal/httpclient"
)

// upstreamUserAgent identifies the console client to the media host; the CDN
// serves different formats per UA family.
const upstreamUserAgent = "Mozilla/5.0 (Nintendo Switch) TubeRelay/1.0"

// Proxy streams targetURL to the client byte-for-byte. The inbound Range
// header is forwarded upstream; Content-Type, Content-Length and
// Content-Range come back downstream with the upstream status unchanged
// (206 partial content passes through for seeking). Returns bytes written.
//
// The upstream request carries the inbound request context, so a client
// disconnect cancels the upstream transfer; the deferred body close covers
// mid-copy write failures.
func Proxy(w http.ResponseWriter, r *http.Request, targetURL string, client *http.Client) int64 {
	if client == nil {
		client = httpclient.ForStreaming()
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, targetURL, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return 0
	}
	req.Header.Set("User-Agent", upstreamUserAgent)
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return 0
	}
	defer resp.Body.Close()

	for _, k := range []string{"Content-Type", "Content-Length", "Content-Range"} {
		if v := resp.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	w.Header().Set("Accept-Ranges", "bytes")
	w.WriteHeader(resp.StatusCode)

	n, err := io.Copy(w, resp.Body)
	if err != nil && !isClientDisconnect(err) {
		log.Printf("gateway: stream aborted after %d bytes: %v", n, err)
	}
	return n
}

// writeError reports an upstream fetch failure. Headers may already be sent
// when the body copy fails mid-stream; in that case the status is left alone.
func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := strings.ReplaceAll(err.Error(), `"`, `'`)
	_, _ = w.Write([]byte(`{"error":"Proxy fetch failed","details":"` + msg + `"}`))
}

func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "use of closed network connection")
}
