// Package relay exposes the stable HTTP API that shields the console client
// from the instability of direct extraction.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/darktube/tuberelay/internal/config"
	"github.com/darktube/tuberelay/internal/cookies"
	"github.com/darktube/tuberelay/internal/httpclient"
	"github.com/darktube/tuberelay/internal/pot"
	"github.com/darktube/tuberelay/internal/resolver"
	"github.com/darktube/tuberelay/internal/ytapi"
	"github.com/darktube/tuberelay/internal/ytdlp"
)

const (
	ServiceName    = "TubeRelay Server"
	ServiceVersion = "1.3.0"
)

// Server wires the stream-resolution pipeline, the media proxy and the
// metadata delegates behind one mux. No state crosses requests except the
// read-only cookie file and the fixed strategy list.
type Server struct {
	Addr        string
	Environment string
	Region      string

	Resolver     *resolver.Resolver
	Cookies      *cookies.Store
	Pot          *pot.Client
	Runner       *ytdlp.Runner
	API          *ytapi.Client
	StreamClient *http.Client
	Limiter      *rate.Limiter

	metrics  *metrics
	registry *prometheus.Registry
}

// New builds a fully wired server from config.
func New(cfg *config.Config) *Server {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	store := &cookies.Store{Path: cfg.CookiesPath}
	potc := &pot.Client{BaseURL: cfg.PotProviderURL, Timeout: cfg.PotTimeout}
	runner := &ytdlp.Runner{Path: cfg.YtDlpPath, Timeout: cfg.ExtractTimeout}
	res := &resolver.Resolver{
		Invoker:        runner,
		Cookies:        store,
		Pot:            potc,
		PotProviderURL: cfg.PotProviderURL,
		OnAttempt:      m.observeAttempt,
	}
	return &Server{
		Addr:         cfg.Addr(),
		Environment:  cfg.Environment,
		Region:       cfg.RegionCode,
		Resolver:     res,
		Cookies:      store,
		Pot:          potc,
		Runner:       runner,
		API:          &ytapi.Client{Key: cfg.APIKey},
		StreamClient: httpclient.ForStreaming(),
		Limiter:      rate.NewLimiter(rate.Every(cfg.StreamRateEvery), cfg.StreamRateBurst),
		metrics:      m,
		registry:     reg,
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	if s.metrics == nil {
		s.registry = prometheus.NewRegistry()
		s.metrics = newMetrics(s.registry)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/trending", s.handleTrending)
	mux.HandleFunc("GET /api/video/{id}", s.handleVideo)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/proxy", s.handleProxy)
	mux.HandleFunc("POST /api/admin/update-ytdlp", s.handleUpdateYtDlp)
	mux.HandleFunc("GET /api/admin/cookies", s.handleCookies)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return logRequests(mux)
}

// Run blocks until ctx is cancelled or the server fails to start. On shutdown
// it stops accepting new connections and waits briefly for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler()}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", s.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Print("Shutting down ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *loggingResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf(
			"http: %s %s status=%d bytes=%d dur=%s ua=%q remote=%s",
			r.Method, r.URL.Path, status, lw.bytes, time.Since(start).Round(time.Millisecond), r.UserAgent(), r.RemoteAddr,
		)
	})
}
