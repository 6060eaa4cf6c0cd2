// Package metrics exposes Prometheus instrumentation for the aucnet
// transport and auction layers, plus a small standalone metrics server.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aucnet"

var (
	// SegmentsSent counts DATA segments written to the wire, including
	// retransmissions.
	SegmentsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "arq",
		Name:      "segments_sent_total",
		Help:      "DATA segments written to the unreliable transport.",
	})

	// SegmentsRetransmitted counts retransmissions after timer expiry.
	SegmentsRetransmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "arq",
		Name:      "segments_retransmitted_total",
		Help:      "DATA segments retransmitted after an unacknowledged timeout.",
	})

	// SegmentsCorrupted counts inbound segments dropped for failing decode
	// or integrity checks.
	SegmentsCorrupted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "arq",
		Name:      "segments_corrupted_total",
		Help:      "Inbound segments dropped due to malformed framing or checksum mismatch.",
	})

	// DuplicatesSuppressed counts duplicate DATA segments that were
	// re-acknowledged without being delivered a second time.
	DuplicatesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "arq",
		Name:      "duplicates_suppressed_total",
		Help:      "Duplicate DATA segments re-acknowledged without redelivery.",
	})

	// BidsAccepted counts bids admitted into the live bid set.
	BidsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auction",
		Name:      "bids_accepted_total",
		Help:      "Bids accepted by the coordinator.",
	})

	// BidsRejected counts rejected bids by rejection reason.
	BidsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auction",
		Name:      "bids_rejected_total",
		Help:      "Bids rejected by the coordinator, labeled by reason.",
	}, []string{"reason"})

	// AuctionState publishes the coordinator's current state as a numeric
	// gauge (ordinal of the state machine).
	AuctionState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "auction",
		Name:      "state",
		Help:      "Current auction coordinator state (0=awaiting item .. 4=done).",
	})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The returned server is not
// started; call ListenAndServe.
func New(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
