package relay

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/darktube/tuberelay/internal/formats"
	"github.com/darktube/tuberelay/internal/gateway"
	"github.com/darktube/tuberelay/internal/resolver"
	"github.com/darktube/tuberelay/internal/ytapi"
)

type errorBody struct {
	Error string `json:"error"`
}

// handleRoot is the health/status endpoint: service identity plus live
// extraction readiness (tool version, cookie bundle, PoT sidecar liveness).
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":         ServiceName,
		"version":      ServiceVersion,
		"status":       "online",
		"health":       "ok",
		"environment":  s.Environment,
		"region":       s.Region,
		"ytdlpVersion": s.Runner.Version(r.Context()),
		"cookies":      s.Cookies.Status(),
		"potProvider":  s.Pot.Probe(r.Context()),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.API.Key == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{"YouTube API Key is not configured"})
		return
	}
	q := r.URL.Query()
	page, err := s.API.Search(r.Context(), q.Get("q"), intParam(q.Get("maxResults")), q.Get("pageToken"))
	if err != nil {
		log.Printf("search: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	if s.API.Key == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{"YouTube API Key is not configured"})
		return
	}
	q := r.URL.Query()
	region := q.Get("regionCode")
	if region == "" {
		region = s.Region
	}
	page, err := s.API.Trending(r.Context(), region, intParam(q.Get("maxResults")), q.Get("pageToken"))
	if err != nil {
		log.Printf("trending: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	if s.API.Key == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{"YouTube API Key is not configured"})
		return
	}
	item, err := s.API.Video(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ytapi.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{"Video not found"})
			return
		}
		log.Printf("video: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(item)
}

// handleStream runs the extraction fallback chain and filters the result to
// device-compatible formats. The id check comes before anything else so a bad
// request never spawns a subprocess.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{"Video ID is required"})
		return
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		s.metrics.streamRequests.WithLabelValues("rejected").Inc()
		writeJSON(w, http.StatusTooManyRequests, errorBody{"Too many extraction requests"})
		return
	}

	out, err := s.Resolver.Resolve(r.Context(), id)
	if err != nil {
		var total *resolver.TotalFailure
		if errors.As(err, &total) {
			s.metrics.streamRequests.WithLabelValues("failure").Inc()
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":       "All extraction strategies failed",
				"lastError":   total.LastError,
				"diagnostics": total.Diagnostics,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}

	s.metrics.streamRequests.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"title":     out.Title,
		"url":       out.URL,
		"thumbnail": out.Thumbnail,
		"duration":  out.Duration,
		"formats":   formats.Select(out.Formats),
	})
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{"url parameter is required"})
		return
	}
	log.Printf("proxy: relaying %s", truncateURL(target, 80))
	s.metrics.proxyRequests.Inc()
	n := gateway.Proxy(w, r, target, s.StreamClient)
	s.metrics.proxyBytes.Add(float64(n))
}

func (s *Server) handleUpdateYtDlp(w http.ResponseWriter, r *http.Request) {
	before := s.Runner.Version(r.Context())
	out, err := s.Runner.Update(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{err.Error()})
		return
	}
	after := s.Runner.Version(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"versionBefore": before,
		"versionAfter":  after,
		"updated":       before != after,
		"output":        lastLines(out, 3),
	})
}

func (s *Server) handleCookies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Cookies.Status())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func truncateURL(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// lastLines returns up to n trailing non-empty-trimmed lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
