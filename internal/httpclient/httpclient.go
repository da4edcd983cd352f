package httpclient

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16
)

var (
	defaultClient   *http.Client
	streamingClient *http.Client
)

func init() {
	defaultClient = &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: MaxIdleConnsPerHost,
			IdleConnTimeout:     DefaultIdleConnTimeout,
		},
	}
	// Streaming client: no overall timeout (media bodies run for minutes and
	// are paced by the consumer); HTTP/2 enabled since the googlevideo CDN
	// serves range requests over h2.
	st := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   MaxIdleConnsPerHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	if err := http2.ConfigureTransport(st); err == nil {
		st.ForceAttemptHTTP2 = true
	}
	streamingClient = &http.Client{Transport: st}
}

// Default returns the shared tuned HTTP client for metadata and probe requests.
func Default() *http.Client {
	return defaultClient
}

// ForStreaming returns the shared client for proxying media bodies. It has no
// client-side timeout; cancellation comes from the request context.
func ForStreaming() *http.Client {
	return streamingClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}
