// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesIngested  prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	SignalsDetected   prometheus.Counter
	ProfileWrites     prometheus.Counter
	ParseErrors       prometheus.Counter
	PingsAnswered     prometheus.Counter

	// Histograms (seconds)
	IngestDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesIngested = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_messages_ingested_total", Help: "Messages appended to the log"})
		DuplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_duplicates_skipped_total", Help: "Appends rejected by message_id dedup"})
		SignalsDetected = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_signals_detected_total", Help: "Messages with at least one extracted signal"})
		ProfileWrites = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_profile_writes_total", Help: "User/channel profile merge-and-save cycles"})
		ParseErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_parse_errors_total", Help: "Chat lines skipped as unparsable"})
		PingsAnswered = promauto.NewCounter(prometheus.CounterOpts{Name: "chatscope_pings_answered_total", Help: "Keep-alive PINGs answered with PONG"})
		IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chatscope_ingest_duration_seconds", Help: "Per-message append+extract+rollup duration", Buckets: prometheus.DefBuckets})
	})
}

// Inc increments c when metrics are initialized; code paths exercised in
// tests without Init stay safe.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
