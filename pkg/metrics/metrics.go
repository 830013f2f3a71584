// Package metrics exposes Prometheus instrumentation for extraction runs and
// overlay edits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Object and run outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPartial = "partial"
)

// Recorder holds the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry prometheus.Gatherer

	ExtractionRuns     *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	ExtractionObjects  *prometheus.CounterVec
	CategoryErrors     *prometheus.CounterVec

	OverlayChanges *prometheus.CounterVec
	OverlayErrors  *prometheus.CounterVec
}

// NewRecorder registers all collectors on reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		ExtractionRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemadoc_extraction_runs_total",
				Help: "Total number of extraction runs by outcome",
			},
			[]string{"dialect", "status"},
		),
		ExtractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemadoc_extraction_duration_seconds",
				Help:    "Wall time of a full extraction run in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"dialect"},
		),
		ExtractionObjects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemadoc_extraction_objects_total",
				Help: "Total number of objects persisted or failed during extraction",
			},
			[]string{"dialect", "category", "status"},
		),
		CategoryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemadoc_extraction_category_errors_total",
				Help: "Total number of categories that could not be listed",
			},
			[]string{"dialect", "category"},
		),

		OverlayChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemadoc_overlay_changes_total",
				Help: "Total number of audited overlay changes",
			},
			[]string{"scope", "action"},
		),
		OverlayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemadoc_overlay_errors_total",
				Help: "Total number of overlay changes that failed to persist",
			},
			[]string{"scope"},
		),
	}
}

// ObserveRun records the outcome and duration of one extraction run.
func (r *Recorder) ObserveRun(dialect, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.ExtractionRuns.WithLabelValues(dialect, status).Inc()
	r.ExtractionDuration.WithLabelValues(dialect).Observe(elapsed.Seconds())
}

// ObjectPersisted counts one object outcome.
func (r *Recorder) ObjectPersisted(dialect, category string, ok bool) {
	if r == nil {
		return
	}
	status := StatusSuccess
	if !ok {
		status = StatusFailed
	}
	r.ExtractionObjects.WithLabelValues(dialect, category, status).Inc()
}

// CategoryFailed counts a category whose listing failed.
func (r *Recorder) CategoryFailed(dialect, category string) {
	if r == nil {
		return
	}
	r.CategoryErrors.WithLabelValues(dialect, category).Inc()
}

// OverlayChanged counts one persisted overlay change.
func (r *Recorder) OverlayChanged(scope, action string) {
	if r == nil {
		return
	}
	r.OverlayChanges.WithLabelValues(scope, action).Inc()
}

// OverlayFailed counts one overlay change that was rolled back.
func (r *Recorder) OverlayFailed(scope string) {
	if r == nil {
		return
	}
	r.OverlayErrors.WithLabelValues(scope).Inc()
}

// WriteTextfile dumps the current values in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
