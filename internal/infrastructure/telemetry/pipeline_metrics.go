// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PipelineMetrics provides metrics for the document rendering pipeline.
// It tracks render outcomes, per-phase latency, retries and artifact
// characteristics. A nil *PipelineMetrics is valid and records nothing,
// so callers never need to guard their observation calls.
type PipelineMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	renderTotal    *Counter
	retryTotal     *Counter
	renderDuration *Histogram
	phaseDuration  *Histogram
	artifactSize   *Histogram
	artifactPages  *Histogram
}

// PipelineMetricsConfig holds configuration for pipeline metrics.
type PipelineMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewPipelineMetrics creates a new PipelineMetrics instance.
func NewPipelineMetrics(cfg PipelineMetricsConfig) (*PipelineMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PipelineMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	pm.renderTotal, err = NewCounter(
		cfg.Meter,
		"renderd_render_total",
		"Total number of document render requests by outcome",
		"{renders}",
	)
	if err != nil {
		return nil, err
	}

	pm.retryTotal, err = NewCounter(
		cfg.Meter,
		"renderd_render_retry_total",
		"Total number of pipeline retries by failure kind",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	pm.renderDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "renderd_render_duration_seconds",
		Description: "Wall time of a whole render request across all attempts",
		Unit:        "s",
		Boundaries:  []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})
	if err != nil {
		return nil, err
	}

	pm.phaseDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "renderd_render_phase_duration_seconds",
		Description: "Duration of individual pipeline phases",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})
	if err != nil {
		return nil, err
	}

	pm.artifactSize, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "renderd_artifact_size_bytes",
		Description: "Size of stored document artifacts",
		Unit:        "By",
		Boundaries:  []float64{10e3, 50e3, 100e3, 500e3, 1e6, 5e6, 10e6},
	})
	if err != nil {
		return nil, err
	}

	pm.artifactPages, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "renderd_artifact_pages",
		Description: "Page count of stored document artifacts",
		Unit:        "{pages}",
		Boundaries:  []float64{1, 2, 3, 5, 10, 20, 50},
	})
	if err != nil {
		return nil, err
	}

	return pm, nil
}

// ObserveOutcome records one finished render request. Outcome is either
// "success" or the failure kind.
func (pm *PipelineMetrics) ObserveOutcome(ctx context.Context, outcome string, attempts int, elapsed time.Duration) {
	if pm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
		attribute.Int("attempts", attempts),
	}
	pm.renderTotal.Inc(ctx, attrs...)
	pm.renderDuration.RecordDuration(ctx, elapsed, attribute.String("outcome", outcome))
}

// ObservePhase records the duration of one pipeline phase execution
func (pm *PipelineMetrics) ObservePhase(ctx context.Context, phase string, elapsed time.Duration) {
	if pm == nil {
		return
	}
	pm.phaseDuration.RecordDuration(ctx, elapsed, attribute.String("phase", phase))
}

// ObserveRetry records one retry decision by the failure kind that caused it
func (pm *PipelineMetrics) ObserveRetry(ctx context.Context, kind string) {
	if pm == nil {
		return
	}
	pm.retryTotal.Inc(ctx, attribute.String("kind", kind))
}

// ObserveArtifact records the size and page count of a stored artifact
func (pm *PipelineMetrics) ObserveArtifact(ctx context.Context, sizeBytes int64, pages int) {
	if pm == nil {
		return
	}
	pm.artifactSize.Record(ctx, float64(sizeBytes))
	if pages > 0 {
		pm.artifactPages.Record(ctx, float64(pages))
	}
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewPipelineMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
