package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Run metrics
	WindowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refcheck_windows_processed_total",
			Help: "Total number of windows sent to the extraction service",
		},
		[]string{"outcome"}, // ok, error
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refcheck_extractions_total",
			Help: "Total number of extracted citations by merge disposition",
		},
		[]string{"disposition"}, // complete, merged, orphan, pending, superseded, unmerged, truncated
	)

	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refcheck_validations_total",
			Help: "Total number of validation verdicts",
		},
		[]string{"status"},
	)

	DuplicatesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refcheck_duplicates_removed_total",
			Help: "Total number of citations dropped by deduplication",
		},
	)

	// Scheduler metrics
	SchedulerQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refcheck_scheduler_queued",
			Help: "Tasks waiting for admission",
		},
		[]string{"limiter"},
	)

	SchedulerInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refcheck_scheduler_in_flight",
			Help: "Tasks currently admitted",
		},
		[]string{"limiter"},
	)

	SchedulerWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refcheck_scheduler_wait_seconds",
			Help:    "Time spent waiting for admission",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"limiter"},
	)

	// Authority metrics
	AuthorityRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refcheck_authority_requests_total",
			Help: "Total number of lookups against bibliographic authorities",
		},
		[]string{"authority", "kind", "outcome"}, // outcome: found, not_found, error
	)
)

// RecordAuthority counts one authority lookup.
func RecordAuthority(authority, kind string, found bool, err error) {
	outcome := "not_found"
	switch {
	case err != nil:
		outcome = "error"
	case found:
		outcome = "found"
	}
	AuthorityRequests.WithLabelValues(authority, kind, outcome).Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
