package exporter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
)

const stage = "export"

// Exporter writes every artifact of a run under the output directory
type Exporter struct {
	paths       *config.Paths
	seasonality []string
	csv         *CSVWriter
	bundles     *BundleWriter
	logger      *slog.Logger
}

// Output lists what an export produced
type Output struct {
	Manifest *Manifest
	Summary  Summary
}

// New creates an exporter. seasonality names the pass-through columns of
// the padded table.
func New(paths *config.Paths, seasonality []string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "exporter")
	return &Exporter{
		paths:       paths,
		seasonality: seasonality,
		csv:         NewCSVWriter(logger),
		bundles:     NewBundleWriter(paths, logger),
		logger:      logger,
	}
}

// Export writes the padded table, the tensor bundles with their manifest
// and sample index, and the run summary
func (e *Exporter) Export(ctx context.Context, runID string, res *dataset.Result, rt infrastructure.RuntimeStats) (*Output, error) {
	if err := e.paths.EnsureDirectories(); err != nil {
		return nil, pipelineerrors.New(pipelineerrors.KindInvalidConfig, stage, "prepare output directory", err)
	}

	if err := e.csv.WritePadded(e.paths.PaddedCSV, res.Padded, e.seasonality); err != nil {
		return nil, fmt.Errorf("export padded table: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest, err := e.bundles.WriteBundles(runID, res.Train, res.Val, res.Test)
	if err != nil {
		return nil, fmt.Errorf("export bundles: %w", err)
	}
	if _, err := e.bundles.VerifyBundles(runID); err != nil {
		return nil, fmt.Errorf("verify bundles: %w", err)
	}
	if err := e.csv.WriteSampleIndex(e.paths.SamplesCSV, res.Train, res.Val, res.Test); err != nil {
		return nil, fmt.Errorf("export sample index: %w", err)
	}

	summary := Summarize(runID, res, rt)
	if err := summary.WriteJSON(e.paths.SummaryJSON); err != nil {
		return nil, fmt.Errorf("export summary: %w", err)
	}
	if err := summary.WriteXLSX(e.paths.SummaryXLSX); err != nil {
		return nil, fmt.Errorf("export summary workbook: %w", err)
	}

	e.logger.InfoContext(ctx, "export complete",
		slog.String("output_dir", e.paths.OutputDir),
		slog.Int("train", res.Train.Len()),
		slog.Int("val", res.Val.Len()),
		slog.Int("test", res.Test.Len()))
	return &Output{Manifest: manifest, Summary: summary}, nil
}
