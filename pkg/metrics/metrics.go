// Package metrics provides Prometheus metrics for synchronization passes.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/sync"
)

// updateFileLabel is the mutation label for copies over a stale replica file.
// The other mutation labels are the sync.Op values of their operations.
const updateFileLabel = "update file"

// Pass statuses.
const (
	statusOK          = "ok"
	statusFailed      = "failed"
	statusInterrupted = "interrupted"
)

var (
	passesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldersync_passes_total",
			Help: "Total number of synchronization passes",
		},
		[]string{"status"},
	)

	passDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foldersync_pass_duration_seconds",
			Help:    "Time taken by a synchronization pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldersync_mutations_total",
			Help: "Total number of changes made to the replica",
		},
		[]string{"op"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foldersync_errors_total",
			Help: "Total number of failed operations",
		},
		[]string{"op"},
	)

	lastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foldersync_last_success_timestamp_seconds",
			Help: "Unix time of the last pass that finished without errors",
		},
	)
)

// Observe records the outcome of a pass. Dry runs only count passes, since
// they don't change the replica.
func Observe(res sync.Result) {
	status := statusOK
	switch {
	case res.Interrupted:
		status = statusInterrupted
	case res.Failed():
		status = statusFailed
	}
	passesTotal.WithLabelValues(status).Inc()
	passDuration.Observe(res.Duration().Seconds())

	for _, opErr := range res.Errors {
		errorsTotal.WithLabelValues(string(opErr.Op)).Inc()
	}

	if res.DryRun {
		return
	}

	mutationsTotal.WithLabelValues(string(sync.OpCreateDir)).Add(float64(res.DirsCreated))
	mutationsTotal.WithLabelValues(string(sync.OpCopyFile)).Add(float64(res.FilesCopied))
	mutationsTotal.WithLabelValues(updateFileLabel).Add(float64(res.FilesUpdated))
	mutationsTotal.WithLabelValues(string(sync.OpRemoveFile)).Add(float64(res.FilesRemoved))
	mutationsTotal.WithLabelValues(string(sync.OpRemoveDir)).Add(float64(res.DirsRemoved))

	if status == statusOK {
		lastSuccess.Set(float64(res.Finished.Unix()))
	}
}

// Serve exposes the metrics over HTTP at `/metrics` until ctx is cancelled.
func Serve(ctx context.Context, address string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: address, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to shut down metrics server")
		}
	}()

	log.WithField("address", address).Info("Serving metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WithContext(err, "serve metrics")
	}
	return nil
}
