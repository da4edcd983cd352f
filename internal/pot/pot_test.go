package pot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbe_respondingServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	s := c.Probe(context.Background())
	if !s.Available {
		t.Error("Available = false for responding server")
	}
	if s.URL != srv.URL {
		t.Errorf("URL = %q", s.URL)
	}
}

func TestProbe_notFoundStillAvailable(t *testing.T) {
	// The sidecar 404s on GET / but that still means it is running.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	if s := c.Probe(context.Background()); !s.Available {
		t.Error("Available = false for 404 response")
	}
}

func TestProbe_unreachable(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond}
	start := time.Now()
	s := c.Probe(context.Background())
	if s.Available {
		t.Error("Available = true for unreachable address")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("probe took %s, want bounded by timeout", elapsed)
	}
}

func TestProbe_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Timeout: 200 * time.Millisecond}
	if s := c.Probe(context.Background()); s.Available {
		t.Error("Available = true for server slower than budget")
	}
}
