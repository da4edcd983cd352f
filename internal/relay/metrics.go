package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics counts extraction and proxy activity. Registered on a per-server
// registry so tests can spin up servers independently.
type metrics struct {
	extractionAttempts *prometheus.CounterVec
	streamRequests     *prometheus.CounterVec
	proxyRequests      prometheus.Counter
	proxyBytes         prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		extractionAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tuberelay",
			Name:      "extraction_attempts_total",
			Help:      "Extraction strategy attempts by strategy name and outcome.",
		}, []string{"strategy", "outcome"}),
		streamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tuberelay",
			Name:      "stream_requests_total",
			Help:      "Stream resolution requests by terminal outcome.",
		}, []string{"outcome"}),
		proxyRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tuberelay",
			Name:      "proxy_requests_total",
			Help:      "Media proxy requests.",
		}),
		proxyBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tuberelay",
			Name:      "proxy_bytes_total",
			Help:      "Bytes relayed to clients through the media proxy.",
		}),
	}
}

func (m *metrics) observeAttempt(strategy string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.extractionAttempts.WithLabelValues(strategy, outcome).Inc()
}
