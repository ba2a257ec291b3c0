package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/exporter"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/shared/testutil"
)

const periodsCSV = `forecastPeriod,rrd_start,rrd_end,localFlowIndicator
1,0,2,L
2,2,5,L
3,5,10,L
4,10,20,L
5,20,40,L
6,40,90,L
7,90,330,L
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "input")
	require.NoError(t, os.Mkdir(input, 0755))
	history := testutil.DailyHistory(testutil.Day(2024, 1, 1), 70)
	w := exporter.NewCSVWriter(nil)
	require.NoError(t, w.WritePadded(filepath.Join(input, "january.csv"), history[:31*14], []string{"holiday"}))
	require.NoError(t, w.WritePadded(filepath.Join(input, "rest.csv"), history[31*14:], []string{"holiday"}))

	periodMap := filepath.Join(dir, "periods.csv")
	require.NoError(t, os.WriteFile(periodMap, []byte(periodsCSV), 0644))

	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		Input:     input,
		PeriodMap: periodMap,
		OutputDir: filepath.Join(dir, "out"),
	}
	cfg.Pipeline.Today = "2024-03-01"
	cfg.Pipeline.Window = 5
	cfg.Telemetry.Metrics = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	logger, logs := testutil.NewTestLogger(t)

	ctx := infrastructure.WithRunID(context.Background(), "run-test")
	require.NoError(t, run(ctx, cfg, logger, time.Now()))
	testutil.AssertNoErrors(t, logs)
	testutil.AssertLogged(t, logs, slog.LevelInfo, "pipeline run completed")

	paths, err := cfg.Paths.Resolve("/")
	require.NoError(t, err)
	for _, p := range []string{paths.PaddedCSV, paths.ManifestFile, paths.SummaryJSON, paths.SummaryXLSX} {
		assert.FileExists(t, p)
	}

	m, err := exporter.ReadManifest(paths.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, "run-test", m.RunID)
	require.Len(t, m.Splits, 3)
	assert.Equal(t, 48, m.Splits[0].Samples)
	assert.Equal(t, 5, m.Splits[1].Samples)
	assert.Equal(t, 8, m.Splits[2].Samples)
	assert.Equal(t, []int{48, 5, 2, 7, 10}, m.Splits[0].Tensors[2].Shape)
	assert.Equal(t, []int{48, 1}, m.Splits[0].Tensors[1].Shape, "seasonality defaults to one row per sample")
}

func TestRunFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantKind pipelineerrors.Kind
	}{
		{
			name:     "missing period map",
			mutate:   func(c *config.Config) { c.Paths.PeriodMap += ".missing" },
			wantKind: pipelineerrors.KindInvalidInput,
		},
		{
			name:     "missing input",
			mutate:   func(c *config.Config) { c.Paths.Input = filepath.Join(c.Paths.Input, "absent.csv") },
			wantKind: pipelineerrors.KindInvalidInput,
		},
		{
			name:     "window longer than the test partition",
			mutate:   func(c *config.Config) { c.Pipeline.Window = 20 },
			wantKind: pipelineerrors.KindInsufficientFutureData,
		},
		{
			name:     "unparsable test start",
			mutate:   func(c *config.Config) { c.Pipeline.TestStart = "March 1st" },
			wantKind: pipelineerrors.KindInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			logger, _ := testutil.NewTestLogger(t)

			err := run(context.Background(), cfg, logger, time.Now())
			require.Error(t, err)
			assert.True(t, pipelineerrors.IsKind(err, tt.wantKind), err.Error())
		})
	}
}
