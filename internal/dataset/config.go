package dataset

import (
	"time"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/masking"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
)

// ConfigFrom translates the pipeline section of the application config.
// now is used when no reference date is configured.
func ConfigFrom(pc config.PipelineConfig, now time.Time) (Config, error) {
	today, err := pc.TodayDate(now)
	if err != nil {
		return Config{}, pipelineerrors.NewInvalidConfig("pipeline.today", err)
	}
	testStart, err := pc.TestStartDate()
	if err != nil {
		return Config{}, pipelineerrors.NewInvalidConfig("pipeline.test_start", err)
	}
	asOf, err := pc.TestAsOfDate()
	if err != nil {
		return Config{}, pipelineerrors.NewInvalidConfig("pipeline.test_as_of", err)
	}

	return Config{
		Window:        pc.Window,
		TrainFraction: pc.TrainFraction,
		Stratify:      masking.Stratify(pc.Stratify),
		TestPolicy:    masking.Policy(pc.TestMasking),
		TestAsOf:      asOf,
		TestStart:     testStart,
		Today:         today,
		LagDays:       pc.LagDays,
		MinFutureRows: pc.MinFutureRows,
		Seed:          pc.Seed,
		Tensor: tensor.Options{
			SeasonalityColumns: append([]string(nil), pc.SeasonalityColumns...),
			Channels:           pc.Channels,
			OneDimSeasonality:  pc.OneDimSeasonality,
		},
	}, nil
}
