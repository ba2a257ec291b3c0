package tensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const stage = "tensorize"

// Options controls the output layout of the tensorizer
type Options struct {
	// SeasonalityColumns are the named seasonality scalars, in output order
	SeasonalityColumns []string
	// Channels selects the 2×7×10 layout (flow, local) over the flat 1×14×10
	Channels bool
	// OneDimSeasonality keeps only the first row of each group, giving N×S
	OneDimSeasonality bool
}

// GroupMeta identifies the group behind one sample
type GroupMeta struct {
	GroupID               int       `json:"group_id"`
	ForecastDepartureDate time.Time `json:"forecast_departure_date"`
	DayOfWeek             int       `json:"day_of_week"`
}

// Tensors is the per-group tensor form of a padded table. Closure and
// Traffic are always in the canonical N×2×7×10 layout; use Layout to
// produce the configured output shape.
type Tensors struct {
	Closure     *Tensor
	Traffic     *Tensor
	Seasonality *Tensor
	Groups      []GroupMeta
}

// Len returns the number of groups
func (t *Tensors) Len() int {
	return len(t.Groups)
}

// Departures returns the forecast departure date of every group
func (t *Tensors) Departures() []time.Time {
	out := make([]time.Time, len(t.Groups))
	for i, g := range t.Groups {
		out[i] = g.ForecastDepartureDate
	}
	return out
}

// Weekdays returns the day of week of every group
func (t *Tensors) Weekdays() []int {
	out := make([]int, len(t.Groups))
	for i, g := range t.Groups {
		out[i] = g.DayOfWeek
	}
	return out
}

// Tensorizer converts padded tables into per-group tensors
type Tensorizer struct {
	opts   Options
	logger *slog.Logger
}

// NewTensorizer creates a tensorizer
func NewTensorizer(opts Options, logger *slog.Logger) *Tensorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tensorizer{opts: opts, logger: logger}
}

// Tensorize converts rows, which must be whole padded groups in canonical
// slot order, into closure, traffic and seasonality tensors.
func (tz *Tensorizer) Tensorize(ctx context.Context, rows []domain.LongRow) (*Tensors, error) {
	if len(rows)%domain.GroupRows != 0 {
		return nil, pipelineerrors.NewStructuralMismatch(stage,
			fmt.Sprintf("row count %d is not a multiple of %d", len(rows), domain.GroupRows)).
			WithContext("rows", len(rows))
	}

	n := len(rows) / domain.GroupRows
	cols := tz.opts.SeasonalityColumns
	out := &Tensors{
		Closure: New(n, domain.Channels, domain.Periods, domain.FareClasses),
		Traffic: New(n, domain.Channels, domain.Periods, domain.FareClasses),
		Groups:  make([]GroupMeta, n),
	}
	if tz.opts.OneDimSeasonality {
		out.Seasonality = New(n, len(cols))
	} else {
		out.Seasonality = New(n, 1, domain.GroupRows, len(cols))
	}

	slots := domain.AllSlots()
	for g := 0; g < n; g++ {
		group := rows[g*domain.GroupRows : (g+1)*domain.GroupRows]
		head := group[0]
		out.Groups[g] = GroupMeta{
			GroupID:               head.GroupID,
			ForecastDepartureDate: head.ForecastDepartureDate,
			DayOfWeek:             head.ForecastDayOfWeek,
		}

		closure := out.Closure.Sample(g)
		traffic := out.Traffic.Sample(g)
		season := out.Seasonality.Sample(g)
		for i, r := range group {
			if r.GroupID != head.GroupID || r.Slot() != slots[i] {
				return nil, pipelineerrors.NewStructuralMismatch(stage,
					fmt.Sprintf("group %d row %d is (%s, %d) of group %d, want (%s, %d) of group %d",
						g, i, r.LocalFlow, r.ForecastPeriod, r.GroupID, slots[i].LocalFlow, slots[i].Period, head.GroupID))
			}
			for f := 0; f < domain.FareClasses; f++ {
				closure[i*domain.FareClasses+f] = float32(r.FracClosure[f])
				traffic[i*domain.FareClasses+f] = float32(r.TrafficActual[f])
			}
			if tz.opts.OneDimSeasonality && i > 0 {
				continue
			}
			for c, name := range cols {
				v, ok := r.Seasonality[name]
				if !ok {
					return nil, pipelineerrors.NewInvalidInput(stage,
						fmt.Sprintf("seasonality column %q missing from group %d", name, head.GroupID), nil)
				}
				season[i*len(cols)+c] = float32(v)
			}
		}
	}

	tz.logger.DebugContext(ctx, "tensorized padded table",
		"groups", n,
		"seasonality_columns", len(cols),
		"channels", tz.opts.Channels)
	return out, nil
}

// Layout reshapes a tensor whose trailing axes are the canonical
// 2×7×10 block into the configured output layout. The flat layout is the
// same memory order viewed as 1×14×10.
func (tz *Tensorizer) Layout(t *Tensor) (*Tensor, error) {
	if tz.opts.Channels {
		return t, nil
	}
	lead := len(t.Shape) - 3
	if lead < 0 || t.Shape[lead] != domain.Channels || t.Shape[lead+1] != domain.Periods {
		return nil, fmt.Errorf("layout: shape %v has no trailing %dx%d block", t.Shape, domain.Channels, domain.Periods)
	}
	shape := append(append([]int{}, t.Shape[:lead]...), 1, domain.GroupRows, t.Shape[lead+2])
	return t.Reshape(shape...)
}
