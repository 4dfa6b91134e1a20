// Package metrics provides Prometheus metrics for svglive.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConversionsTotal counts finished conversions by outcome
	// (ok, cached, failed).
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svglive",
			Name:      "conversions_total",
			Help:      "Total number of SVG conversions",
		},
		[]string{"status"},
	)

	// ConversionDuration measures rendering time of cache misses.
	ConversionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "svglive",
			Name:      "conversion_duration_seconds",
			Help:      "Duration of uncached conversions in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// FitAttempts observes how many renders the byte budget needed.
	FitAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "svglive",
			Name:      "fit_attempts",
			Help:      "Render attempts per uncached conversion",
			Buckets:   []float64{1, 2, 3, 4, 5, 6},
		},
	)

	// OutputBytes observes the size of PNGs placed on the clipboard.
	OutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "svglive",
			Name:      "output_bytes",
			Help:      "Size of converted PNGs in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// ErrorsTotal counts errors by operation and kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svglive",
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"operation", "error_type"},
	)

	// SavesTotal counts auto-saves by outcome.
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "svglive",
			Name:      "saves_total",
			Help:      "Total number of auto-saved PNGs",
		},
		[]string{"status"},
	)

	// Listening tracks the monitor state (1 = listening, 0 = stopped).
	Listening = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "svglive",
			Name:      "listening",
			Help:      "Clipboard monitor state (1 = listening, 0 = stopped)",
		},
	)
)

// RecordConversion records a successful conversion.
func RecordConversion(cached bool, seconds float64, attempts, bytes int) {
	OutputBytes.Observe(float64(bytes))
	if cached {
		ConversionsTotal.WithLabelValues("cached").Inc()
		return
	}
	ConversionsTotal.WithLabelValues("ok").Inc()
	ConversionDuration.Observe(seconds)
	FitAttempts.Observe(float64(attempts))
}

// RecordError records an error.
func RecordError(operation, errorType string) {
	if operation == "convert" {
		ConversionsTotal.WithLabelValues("failed").Inc()
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordSave records an auto-save outcome.
func RecordSave(ok bool) {
	if ok {
		SavesTotal.WithLabelValues("ok").Inc()
		return
	}
	SavesTotal.WithLabelValues("failed").Inc()
}

// SetListening sets the monitor state gauge.
func SetListening(on bool) {
	if on {
		Listening.Set(1)
		return
	}
	Listening.Set(0)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler { return promhttp.Handler() }
