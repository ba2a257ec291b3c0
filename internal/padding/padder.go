// Package padding densifies a long booking table so that every group
// carries all 14 (local/flow, period) slots.
package padding

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const (
	stage = "padding"

	// DefaultLagDays is how many days before today the past/future cutoff sits
	DefaultLagDays = 2
	// DefaultMinFutureRows is the future partition size at or below which
	// the whole table is padded as history
	DefaultMinFutureRows = 10
)

// Report summarizes one padding run
type Report struct {
	Cutoff        time.Time `json:"cutoff"`
	Groups        int       `json:"groups"`
	PastGroups    int       `json:"past_groups"`
	FutureGroups  int       `json:"future_groups"`
	RealRows      int       `json:"real_rows"`
	SyntheticRows int       `json:"synthetic_rows"`
	// SmallFutureFallback is set when the future partition was too small
	// and every row was padded with the historical template
	SmallFutureFallback bool `json:"small_future_fallback"`
	// BoundaryGroups counts groups departing exactly on the cutoff. They
	// are padded once in each partition and so appear twice in the output.
	BoundaryGroups int `json:"boundary_groups"`
}

// Padder pads long tables relative to a reference date
type Padder struct {
	today         time.Time
	lagDays       int
	minFutureRows int
	logger        *slog.Logger
}

// Option configures a Padder
type Option func(*Padder)

// WithLagDays sets the cutoff lag in days
func WithLagDays(days int) Option {
	return func(p *Padder) { p.lagDays = days }
}

// WithMinFutureRows sets the small-future fallback threshold
func WithMinFutureRows(n int) Option {
	return func(p *Padder) { p.minFutureRows = n }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Padder) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPadder creates a padder whose cutoff is derived from today
func NewPadder(today time.Time, opts ...Option) *Padder {
	p := &Padder{
		today:         domain.CivilDate(today),
		lagDays:       DefaultLagDays,
		minFutureRows: DefaultMinFutureRows,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Cutoff returns the last flight date treated as departed
func (p *Padder) Cutoff() time.Time {
	return p.today.AddDate(0, 0, -p.lagDays)
}

// Pad splits rows at the cutoff and pads the past partition with the
// historical template and the future partition with the future template.
// When the future partition holds no more than the configured minimum,
// every row is padded with the historical template instead. The input is
// not modified.
func (p *Padder) Pad(ctx context.Context, rows []domain.LongRow) ([]domain.LongRow, Report, error) {
	cutoff := p.Cutoff()
	report := Report{Cutoff: cutoff}

	if len(rows) == 0 {
		return nil, report, pipelineerrors.NewInvalidInput(stage, "no rows to pad", nil)
	}

	var past, future []domain.LongRow
	boundary := make(map[domain.GroupKey]struct{})
	for _, r := range rows {
		if !r.FlightDepartureDate.After(cutoff) {
			past = append(past, r)
		}
		if !r.FlightDepartureDate.Before(cutoff) {
			future = append(future, r)
		}
		if r.FlightDepartureDate.Equal(cutoff) {
			boundary[r.Key()] = struct{}{}
		}
	}

	var out []domain.LongRow
	if len(future) <= p.minFutureRows {
		report.SmallFutureFallback = true
		p.logger.InfoContext(ctx, "future partition too small, padding all rows as history",
			"future_rows", len(future),
			"min_future_rows", p.minFutureRows,
			"cutoff", cutoff.Format(domain.DateLayout))

		padded, _, err := PadWithTemplate(rows, Historical, 1)
		if err != nil {
			return nil, report, err
		}
		out = padded
		report.PastGroups = len(out) / domain.GroupRows
	} else {
		pastPadded, lastID, err := PadWithTemplate(past, Historical, 1)
		if err != nil {
			return nil, report, fmt.Errorf("pad past partition: %w", err)
		}
		futurePadded, _, err := PadWithTemplate(future, Future, lastID+1)
		if err != nil {
			return nil, report, fmt.Errorf("pad future partition: %w", err)
		}
		out = append(pastPadded, futurePadded...)
		report.PastGroups = len(pastPadded) / domain.GroupRows
		report.FutureGroups = len(futurePadded) / domain.GroupRows
		report.BoundaryGroups = len(boundary)

		if report.BoundaryGroups > 0 {
			p.logger.WarnContext(ctx, "groups departing on the cutoff are padded in both partitions",
				"boundary_groups", report.BoundaryGroups,
				"cutoff", cutoff.Format(domain.DateLayout))
		}
	}

	SortPadded(out)

	report.Groups = len(out) / domain.GroupRows
	for _, r := range out {
		if r.IsReal {
			report.RealRows++
		} else {
			report.SyntheticRows++
		}
	}

	p.logger.InfoContext(ctx, "padded long table",
		"input_rows", len(rows),
		"groups", report.Groups,
		"real_rows", report.RealRows,
		"synthetic_rows", report.SyntheticRows,
		"small_future_fallback", report.SmallFutureFallback)

	return out, report, nil
}

// PadWithTemplate groups rows, assigns group ids starting at firstID and
// fills every missing slot from tmpl. It returns the padded rows in group
// order and the last id assigned (firstID-1 when rows is empty).
func PadWithTemplate(rows []domain.LongRow, tmpl Template, firstID int) ([]domain.LongRow, int, error) {
	sorted := make([]domain.LongRow, len(rows))
	for i, r := range rows {
		sorted[i] = r.Clone()
		sorted[i].IsReal = true
	}
	slices.SortStableFunc(sorted, compareGrouping)

	out := make([]domain.LongRow, 0, len(sorted)+domain.GroupRows)
	id := firstID - 1
	for start := 0; start < len(sorted); {
		end := start + 1
		key := sorted[start].Key()
		for end < len(sorted) && sorted[end].Key().Compare(key) == 0 {
			end++
		}

		id++
		group, err := fillGroup(sorted[start:end], tmpl, id)
		if err != nil {
			return nil, id, err
		}
		out = append(out, group...)
		start = end
	}
	return out, id, nil
}

// fillGroup returns the 14 slots of one group in canonical order. Missing
// slots copy their non-template attributes from the nearest preceding real
// row, or from the first real row when none precedes them.
func fillGroup(observed []domain.LongRow, tmpl Template, id int) ([]domain.LongRow, error) {
	if len(observed) == 0 {
		return nil, pipelineerrors.NewStructuralMismatch(stage, "group has no real rows").
			WithContext("group_id", id)
	}

	var slots [domain.GroupRows]*domain.LongRow
	for i := range observed {
		r := &observed[i]
		if !r.LocalFlow.Valid() || r.ForecastPeriod < 1 || r.ForecastPeriod > domain.Periods {
			return nil, pipelineerrors.NewStructuralMismatch(stage,
				fmt.Sprintf("row has invalid slot (%s, %d)", r.LocalFlow, r.ForecastPeriod)).
				WithContext("group_id", id)
		}
		idx := r.Slot().Index()
		if slots[idx] != nil {
			return nil, pipelineerrors.NewStructuralMismatch(stage,
				fmt.Sprintf("duplicate rows for slot (%s, %d)", r.LocalFlow, r.ForecastPeriod)).
				WithContext("group_id", id)
		}
		slots[idx] = r
	}

	var first *domain.LongRow
	for _, s := range slots {
		if s != nil {
			first = s
			break
		}
	}

	out := make([]domain.LongRow, 0, domain.GroupRows)
	var prev *domain.LongRow
	for i, s := range domain.AllSlots() {
		var row domain.LongRow
		if slots[i] != nil {
			prev = slots[i]
			row = slots[i].Clone()
		} else {
			src := prev
			if src == nil {
				src = first
			}
			row = src.Clone()
			tmpl.apply(&row, s)
		}
		row.GroupID = id
		row.GroupSize = len(observed)
		out = append(out, row)
	}
	return out, nil
}

// compareGrouping orders rows by group key, then local/flow, then period
func compareGrouping(a, b domain.LongRow) int {
	if c := a.Key().Compare(b.Key()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.LocalFlow, b.LocalFlow); c != 0 {
		return c
	}
	return cmp.Compare(a.ForecastPeriod, b.ForecastPeriod)
}

// SortPadded puts padded rows in output order: forecast departure date,
// then the route and flight attributes, group id, local/flow and period.
func SortPadded(rows []domain.LongRow) {
	slices.SortStableFunc(rows, func(a, b domain.LongRow) int {
		if c := a.ForecastDepartureDate.Compare(b.ForecastDepartureDate); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Origin, b.Origin); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Destination, b.Destination); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ForecastID, b.ForecastID); c != 0 {
			return c
		}
		if c := a.FlightDepartureDate.Compare(b.FlightDepartureDate); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ForecastDayOfWeek, b.ForecastDayOfWeek); c != 0 {
			return c
		}
		if c := cmp.Compare(a.PoolCode, b.PoolCode); c != 0 {
			return c
		}
		if c := cmp.Compare(a.CabinCode, b.CabinCode); c != 0 {
			return c
		}
		// keeps groups that share every attribute contiguous
		if c := cmp.Compare(a.GroupID, b.GroupID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.LocalFlow, b.LocalFlow); c != 0 {
			return c
		}
		return cmp.Compare(a.ForecastPeriod, b.ForecastPeriod)
	})
}
