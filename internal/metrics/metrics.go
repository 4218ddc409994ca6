// Package metrics exposes Prometheus counters and histograms for the
// ingestion engine's scrape attempts, insertions, verification outcomes,
// and HTTP durations, plus the /metrics HTTP server that serves them.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScrapeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_scrape_attempts_total",
			Help: "Total number of items considered during a month scrape, before dedup",
		},
		[]string{"collector", "data_type"},
	)

	ItemsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_items_inserted_total",
			Help: "Total number of items actually inserted into the catalog store",
		},
		[]string{"collector", "data_type"},
	)

	VerifyOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_verify_outcomes_total",
			Help: "Total number of size verification attempts by outcome",
		},
		[]string{"outcome"}, // "found", "absent", "transport_error"
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_http_duration_seconds",
			Help:    "Duration of outbound HTTP requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"purpose"}, // "listing", "verify"
	)
)

// RecordScrapeAttempt records one candidate item considered for a
// (collector, data_type) before dedup.
func RecordScrapeAttempt(collector, dataType string) {
	ScrapeAttemptsTotal.WithLabelValues(collector, dataType).Inc()
}

// RecordItemsInserted records n items actually inserted for a (collector,
// data_type).
func RecordItemsInserted(collector, dataType string, n int) {
	ItemsInsertedTotal.WithLabelValues(collector, dataType).Add(float64(n))
}

// RecordVerifyOutcome records one size-verification outcome.
func RecordVerifyOutcome(outcome string) {
	VerifyOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPDuration records the duration of an outbound HTTP request made
// for the given purpose.
func RecordHTTPDuration(purpose string, d time.Duration) {
	HTTPDuration.WithLabelValues(purpose).Observe(d.Seconds())
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics. The
// server runs in a background goroutine and must be stopped via
// Server.Stop() to release resources and avoid leaks.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
