package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/exporter"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/ingest"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/operations"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/periods"
	transport "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/transport/http"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

func main() {
	configFile := flag.String("config", "", "YAML config file (overrides "+config.ConfigFileEnv+")")
	input := flag.String("in", "", "long-table file or directory (overrides paths.input)")
	outDir := flag.String("out", "", "output directory (overrides paths.output_dir)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetVersionString())
		return
	}

	if *configFile != "" {
		os.Setenv(config.ConfigFileEnv, *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Paths.Input = *input
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, time.Now()); err != nil {
		logger.Error("pipeline run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run executes one pipeline run: telemetry and the optional status server
// around period map loading, ingestion, assembly and export
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, now time.Time) error {
	ctx = infrastructure.EnsureRunID(ctx)
	runID := infrastructure.GetRunID(ctx)
	started := time.Now()

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	otelCfg.RunID = runID
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), transport.DefaultShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	runtimeMetrics, err := infrastructure.NewRuntimeMetrics(otel.Meter(infrastructure.MeterName))
	if err != nil {
		return fmt.Errorf("create runtime metrics: %w", err)
	}

	pipelineMetrics, err := infrastructure.NewPipelineMetrics(otel.Meter(infrastructure.MeterName))
	if err != nil {
		return fmt.Errorf("create pipeline metrics: %w", err)
	}

	state := operations.NewRunState(runID, operations.Steps()...)
	if cfg.Telemetry.StatusAddr != "" {
		opts := transport.DefaultServerOptions(cfg.Telemetry.StatusAddr)
		opts.RunID = runID
		opts.Tracing = cfg.Telemetry.Tracing
		opts.Metrics = cfg.Telemetry.Metrics
		srv, err := transport.NewServer(transport.NewStatusHandler(state, runtimeMetrics, logger), opts, logger)
		if err != nil {
			return fmt.Errorf("create status server: %w", err)
		}
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), transport.DefaultShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	paths, err := cfg.Paths.Resolve(baseDir)
	if err != nil {
		return err
	}
	paths.LogPathResolution(logger)

	dcfg, err := dataset.ConfigFrom(cfg.Pipeline, now)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "pipeline run started",
		slog.String("version", contracts.Version),
		slog.String("input", paths.Input),
		slog.String("today", dcfg.Today.Format(domain.DateLayout)),
		slog.Int("window", dcfg.Window))
	state.Start()

	var pm *periods.Map
	if err := state.Track(operations.StepLoadPeriodMap, func() (map[string]interface{}, error) {
		pm, err = ingest.LoadPeriodMap(paths.PeriodMap)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"periods": len(pm.Entries())}, nil
	}); err != nil {
		return err
	}

	var rows []domain.LongRow
	if err := state.Track(operations.StepIngest, func() (map[string]interface{}, error) {
		reader := ingest.NewReader(dcfg.Tensor.SeasonalityColumns,
			ingest.WithLogger(logger),
			ingest.WithMetrics(pipelineMetrics))
		rows, err = reader.Load(infrastructure.WithStage(ctx, operations.StepIngest), paths.Input)
		return map[string]interface{}{"rows": len(rows)}, err
	}); err != nil {
		return err
	}

	var res *dataset.Result
	if err := state.Track(operations.StepAssemble, func() (map[string]interface{}, error) {
		assembler, err := dataset.NewAssembler(dcfg, pm, logger)
		if err != nil {
			return nil, err
		}
		res, err = assembler.Assemble(infrastructure.WithStage(ctx, operations.StepAssemble), rows)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"train": res.Train.Len(),
			"val":   res.Val.Len(),
			"test":  res.Test.Len(),
		}, nil
	}); err != nil {
		return err
	}

	if err := state.Track(operations.StepExport, func() (map[string]interface{}, error) {
		stats := runtimeMetrics.Collect(ctx, started)
		exportCtx := infrastructure.WithStage(ctx, operations.StepExport)
		out, err := exporter.New(paths, dcfg.Tensor.SeasonalityColumns, logger).Export(exportCtx, runID, res, stats)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"manifest": filepath.Base(paths.ManifestFile),
			"splits":   len(out.Manifest.Splits),
		}, nil
	}); err != nil {
		return err
	}

	state.Complete()
	logger.InfoContext(ctx, "pipeline run completed",
		slog.String("output_dir", paths.OutputDir),
		slog.Duration("duration", time.Since(started)))
	return nil
}
