package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
)

// PipelineMetrics holds the instruments recorded by a pipeline run
type PipelineMetrics struct {
	RowsIngested    metric.Int64Counter
	RowsPadded      metric.Int64Counter
	GroupsPadded    metric.Int64Counter
	Samples         metric.Int64Counter
	MaskingSkips    metric.Int64Counter
	StageDuration   metric.Float64Histogram
	StageErrors     metric.Int64Counter
	BoundaryGroups  metric.Int64Counter
	FutureFallbacks metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	rowsIngested, err := meter.Int64Counter(
		"kronos_rows_ingested_total",
		metric.WithDescription("Long-table rows read from input files"),
	)
	if err != nil {
		return nil, err
	}

	rowsPadded, err := meter.Int64Counter(
		"kronos_rows_padded_total",
		metric.WithDescription("Rows emitted by padding, by origin (real or synthetic)"),
	)
	if err != nil {
		return nil, err
	}

	groupsPadded, err := meter.Int64Counter(
		"kronos_groups_padded_total",
		metric.WithDescription("Groups emitted by padding"),
	)
	if err != nil {
		return nil, err
	}

	samples, err := meter.Int64Counter(
		"kronos_samples_total",
		metric.WithDescription("Samples emitted per dataset split"),
	)
	if err != nil {
		return nil, err
	}

	maskingSkips, err := meter.Int64Counter(
		"kronos_masking_skips_total",
		metric.WithDescription("Masking passes that degraded: short weekday strata or an as-of date past the data"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"kronos_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter(
		"kronos_stage_errors_total",
		metric.WithDescription("Pipeline stage failures by error kind"),
	)
	if err != nil {
		return nil, err
	}

	boundaryGroups, err := meter.Int64Counter(
		"kronos_boundary_groups_total",
		metric.WithDescription("Groups departing on the padding cutoff and padded twice"),
	)
	if err != nil {
		return nil, err
	}

	futureFallbacks, err := meter.Int64Counter(
		"kronos_future_fallbacks_total",
		metric.WithDescription("Padding runs where the future partition was padded as history"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RowsIngested:    rowsIngested,
		RowsPadded:      rowsPadded,
		GroupsPadded:    groupsPadded,
		Samples:         samples,
		MaskingSkips:    maskingSkips,
		StageDuration:   stageDuration,
		StageErrors:     stageErrors,
		BoundaryGroups:  boundaryGroups,
		FutureFallbacks: futureFallbacks,
	}, nil
}

// RecordStage records the duration and outcome of one pipeline stage
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
		kind, ok := pipelineerrors.KindOf(err)
		if !ok {
			kind = "internal"
		}
		m.StageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("error.kind", string(kind)),
		))
	}

	m.StageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordIngest records the rows read from one input file
func (m *PipelineMetrics) RecordIngest(ctx context.Context, format string, rows int) {
	if m == nil {
		return
	}
	m.RowsIngested.Add(ctx, int64(rows), metric.WithAttributes(attribute.String("format", format)))
}

// RecordSamples records the sample count of one dataset split
func (m *PipelineMetrics) RecordSamples(ctx context.Context, split string, n int) {
	if m == nil {
		return
	}
	m.Samples.Add(ctx, int64(n), metric.WithAttributes(attribute.String("split", split)))
}

// RecordPadding records the row and group counts of a padding run
func (m *PipelineMetrics) RecordPadding(ctx context.Context, groups, observed, synthetic, boundary int, fallback bool) {
	if m == nil {
		return
	}
	m.GroupsPadded.Add(ctx, int64(groups))
	m.RowsPadded.Add(ctx, int64(observed), metric.WithAttributes(attribute.String("origin", "real")))
	m.RowsPadded.Add(ctx, int64(synthetic), metric.WithAttributes(attribute.String("origin", "synthetic")))
	m.BoundaryGroups.Add(ctx, int64(boundary))
	if fallback {
		m.FutureFallbacks.Add(ctx, 1)
	}
}

// RecordMaskingSkips records degraded masking passes
func (m *PipelineMetrics) RecordMaskingSkips(ctx context.Context, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.MaskingSkips.Add(ctx, int64(n), metric.WithAttributes(attribute.String("reason", reason)))
}
