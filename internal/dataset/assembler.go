// Package dataset assembles padded booking tables into train, validation
// and test tensor bundles.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/masking"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/padding"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/periods"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const (
	stage      = "dataset"
	TracerName = "kronos.dataset"

	DefaultWindow        = 10
	DefaultTrainFraction = 0.9
)

// Config holds the assembly settings
type Config struct {
	// Window is the history length of every sample
	Window int
	// TrainFraction is the share of pre-test samples used for training
	TrainFraction float64
	Stratify      masking.Stratify
	// TestPolicy masks the test partition randomly or relative to TestAsOf
	TestPolicy masking.Policy
	// TestAsOf is the forecast day of the date policy; zero means TestStart
	TestAsOf time.Time
	// TestStart splits groups by forecast departure date; zero means the
	// padding cutoff
	TestStart time.Time
	// Today anchors the padding cutoff
	Today         time.Time
	LagDays       int
	MinFutureRows int
	Seed          int64
	Tensor        tensor.Options
}

// DefaultConfig returns the default assembly settings for today
func DefaultConfig(today time.Time) Config {
	return Config{
		Window:        DefaultWindow,
		TrainFraction: DefaultTrainFraction,
		Stratify:      masking.StratifyNone,
		TestPolicy:    masking.PolicyRandom,
		Today:         today,
		LagDays:       padding.DefaultLagDays,
		MinFutureRows: padding.DefaultMinFutureRows,
		Seed:          1,
		Tensor:        tensor.Options{Channels: true, OneDimSeasonality: true},
	}
}

// Result is the output of one assembly run
type Result struct {
	Train Bundle
	Val   Bundle
	Test  Bundle

	// Padded is the dense table the bundles were built from
	Padded    []domain.LongRow
	Padding   padding.Report
	TestStart time.Time

	PreGroups     int
	PostGroups    int
	SkippedStrata int
	AsOfApplied   bool
}

// Assembler runs padding, tensorization, masking and splitting
type Assembler struct {
	cfg        Config
	padder     *padding.Padder
	tensorizer *tensor.Tensorizer
	masker     *masking.Masker
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *infrastructure.PipelineMetrics
}

// NewAssembler validates cfg and wires the pipeline stages
func NewAssembler(cfg Config, pm *periods.Map, logger *slog.Logger) (*Assembler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TrainFraction <= 0 || cfg.TrainFraction > 1 {
		return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("train fraction %v outside (0, 1]", cfg.TrainFraction), nil)
	}
	switch cfg.TestPolicy {
	case masking.PolicyRandom, masking.PolicyDate:
	default:
		return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("unknown test masking policy %q", cfg.TestPolicy), nil)
	}
	switch cfg.Stratify {
	case masking.StratifyNone, masking.StratifyWeekday:
	default:
		return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("unknown stratification %q", cfg.Stratify), nil)
	}

	masker, err := masking.NewMasker(pm, cfg.Window, cfg.Seed, logger)
	if err != nil {
		return nil, fmt.Errorf("create masker: %w", err)
	}

	metrics, err := infrastructure.NewPipelineMetrics(otel.Meter(infrastructure.MeterName))
	if err != nil {
		return nil, fmt.Errorf("create pipeline metrics: %w", err)
	}

	return &Assembler{
		cfg: cfg,
		padder: padding.NewPadder(cfg.Today,
			padding.WithLagDays(cfg.LagDays),
			padding.WithMinFutureRows(cfg.MinFutureRows),
			padding.WithLogger(logger)),
		tensorizer: tensor.NewTensorizer(cfg.Tensor, logger),
		masker:     masker,
		logger:     logger,
		tracer:     otel.Tracer(TracerName),
		metrics:    metrics,
	}, nil
}

// Assemble pads rows, splits the padded groups at the test start and
// builds the three bundles.
func (a *Assembler) Assemble(ctx context.Context, rows []domain.LongRow) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "dataset.assemble",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("rows.input", len(rows))))
	defer span.End()

	var padded []domain.LongRow
	var report padding.Report
	err := a.stage(ctx, "pad", func(ctx context.Context) error {
		var err error
		padded, report, err = a.padder.Pad(ctx, rows)
		return err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("pad rows: %w", err))
	}
	a.metrics.RecordPadding(ctx, report.Groups, report.RealRows, report.SyntheticRows, report.BoundaryGroups, report.SmallFutureFallback)

	testStart := a.cfg.TestStart
	if testStart.IsZero() {
		testStart = report.Cutoff
	}

	var pre, post []domain.LongRow
	err = a.stage(ctx, "split", func(ctx context.Context) error {
		var err error
		pre, post, err = SplitAtTestStart(padded, testStart)
		return err
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("split at test start: %w", err))
	}

	res, err := a.build(ctx, pre, post, testStart)
	if err != nil {
		return nil, fail(span, err)
	}
	res.Padded = padded
	res.Padding = report

	a.logger.InfoContext(ctx, "assembled dataset",
		"groups", report.Groups,
		"test_start", testStart.Format(domain.DateLayout),
		"train_samples", res.Train.Len(),
		"val_samples", res.Val.Len(),
		"test_samples", res.Test.Len())
	return res, nil
}

// Build turns already padded pre-test and test rows into bundles. The
// pre-test partition is always masked randomly and split chronologically
// into train and validation; the test partition uses the configured policy.
func (a *Assembler) Build(ctx context.Context, pre, post []domain.LongRow) (*Result, error) {
	return a.build(ctx, pre, post, a.cfg.TestStart)
}

func (a *Assembler) build(ctx context.Context, pre, post []domain.LongRow, testStart time.Time) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "dataset.build", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	var preT, postT *tensor.Tensors
	err := a.stage(ctx, "tensorize", func(ctx context.Context) error {
		var err error
		if preT, err = a.tensorizer.Tensorize(ctx, pre); err != nil {
			return fmt.Errorf("tensorize pre-test rows: %w", err)
		}
		if postT, err = a.tensorizer.Tensorize(ctx, post); err != nil {
			return fmt.Errorf("tensorize test rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	asOf := a.cfg.TestAsOf
	if asOf.IsZero() {
		asOf = testStart
	}

	var preW, postW masking.Windows
	err = a.stage(ctx, "mask", func(ctx context.Context) error {
		var err error
		preW, err = a.masker.Mask(ctx, masking.Request{
			Traffic:  preT.Traffic,
			Groups:   preT.Groups,
			Policy:   masking.PolicyRandom,
			Stratify: a.cfg.Stratify,
		})
		if err != nil {
			return fmt.Errorf("mask pre-test traffic: %w", err)
		}
		if len(preW.Targets) == 0 {
			return pipelineerrors.NewInvalidInput(stage,
				fmt.Sprintf("%d pre-test groups yield no sample for window %d", preT.Len(), a.cfg.Window), nil)
		}

		postW, err = a.masker.Mask(ctx, masking.Request{
			Traffic:  postT.Traffic,
			Groups:   postT.Groups,
			Policy:   a.cfg.TestPolicy,
			Stratify: a.cfg.Stratify,
			AsOf:     asOf,
		})
		if err != nil {
			return fmt.Errorf("mask test traffic: %w", err)
		}
		if len(postW.Targets) == 0 {
			return pipelineerrors.NewInsufficientFutureData(stage,
				fmt.Sprintf("%d test groups yield no sample for window %d", postT.Len(), a.cfg.Window))
		}
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	skipped := preW.SkippedStrata + postW.SkippedStrata
	a.metrics.RecordMaskingSkips(ctx, "short_stratum", skipped)
	if a.cfg.TestPolicy == masking.PolicyDate && !postW.AsOfApplied {
		a.metrics.RecordMaskingSkips(ctx, "as_of_after_data", 1)
	}

	preBundle, err := a.bundle(SplitTrain, preT, preW)
	if err != nil {
		return nil, fail(span, err)
	}
	test, err := a.bundle(SplitTest, postT, postW)
	if err != nil {
		return nil, fail(span, err)
	}

	cut := TrainSize(preBundle.Len(), a.cfg.TrainFraction)
	res := &Result{
		Train:         preBundle.Slice(SplitTrain, 0, cut),
		Val:           preBundle.Slice(SplitVal, cut, preBundle.Len()),
		Test:          test,
		TestStart:     testStart,
		PreGroups:     preT.Len(),
		PostGroups:    postT.Len(),
		SkippedStrata: skipped,
		AsOfApplied:   postW.AsOfApplied,
	}

	for _, b := range []Bundle{res.Train, res.Val, res.Test} {
		a.metrics.RecordSamples(ctx, b.Split, b.Len())
	}
	span.SetAttributes(
		attribute.Int("samples.train", res.Train.Len()),
		attribute.Int("samples.val", res.Val.Len()),
		attribute.Int("samples.test", res.Test.Len()),
	)
	return res, nil
}

// bundle gathers the per-target closure, seasonality and unmasked traffic
// next to the masked histories and applies the output layout
func (a *Assembler) bundle(split string, t *tensor.Tensors, w masking.Windows) (Bundle, error) {
	closure, err := a.tensorizer.Layout(t.Closure.Select(w.Targets))
	if err != nil {
		return Bundle{}, fmt.Errorf("layout %s closure: %w", split, err)
	}
	history, err := a.tensorizer.Layout(w.History)
	if err != nil {
		return Bundle{}, fmt.Errorf("layout %s history: %w", split, err)
	}
	target, err := a.tensorizer.Layout(t.Traffic.Select(w.Targets))
	if err != nil {
		return Bundle{}, fmt.Errorf("layout %s target: %w", split, err)
	}

	groups := make([]tensor.GroupMeta, len(w.Targets))
	for i, idx := range w.Targets {
		groups[i] = t.Groups[idx]
	}

	return Bundle{
		Split:       split,
		Closure:     closure,
		Seasonality: t.Seasonality.Select(w.Targets),
		History:     history,
		Target:      target,
		Groups:      groups,
	}, nil
}

// stage runs fn inside a span and records its duration and outcome
func (a *Assembler) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := a.tracer.Start(ctx, "dataset."+name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	a.metrics.RecordStage(ctx, name, time.Since(start), err)
	if err != nil {
		fail(span, err)
		var pe *pipelineerrors.PipelineError
		if errors.As(err, &pe) {
			a.logger.ErrorContext(ctx, "pipeline stage failed", append(pe.LogAttrs(), "error", err.Error())...)
		} else {
			a.logger.ErrorContext(ctx, "pipeline stage failed", "stage", name, "error", err.Error())
		}
	}
	return err
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// TrainSize returns the number of training samples out of n, rounding
// n*fraction half to even
func TrainSize(n int, fraction float64) int {
	return int(math.RoundToEven(float64(n) * fraction))
}

// SplitAtTestStart partitions padded groups by forecast departure date:
// groups departing before start are pre-test, the rest are test. Every row
// of a group must fall on the same side.
func SplitAtTestStart(rows []domain.LongRow, start time.Time) (pre, post []domain.LongRow, err error) {
	if len(rows)%domain.GroupRows != 0 {
		return nil, nil, pipelineerrors.NewStructuralMismatch(stage,
			fmt.Sprintf("row count %d is not a multiple of %d", len(rows), domain.GroupRows))
	}

	for g := 0; g < len(rows); g += domain.GroupRows {
		group := rows[g : g+domain.GroupRows]
		before := group[0].ForecastDepartureDate.Before(start)
		for _, r := range group[1:] {
			if r.ForecastDepartureDate.Before(start) != before {
				return nil, nil, pipelineerrors.NewBoundaryAmbiguity(stage,
					fmt.Sprintf("group %d has forecast departure dates on both sides of %s",
						group[0].GroupID, start.Format(domain.DateLayout))).
					WithContext("group_id", group[0].GroupID)
			}
		}
		if before {
			pre = append(pre, group...)
		} else {
			post = append(post, group...)
		}
	}
	return pre, post, nil
}
