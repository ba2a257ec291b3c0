// Package periods maps a day-to-departure onto one of the seven booking
// periods of a market.
package periods

import (
	"fmt"
	"math/rand"
	"sort"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/validation"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const stage = "periods"

// Map is an immutable period boundary table. Ranges are half-open
// [start, end), so a day equal to a boundary belongs to the later period.
type Map struct {
	ranges []domain.PeriodRange
	starts []int
}

// New validates entries and builds a Map. Entries must cover periods 1..7
// in order with contiguous, non-empty ranges.
func New(entries []domain.PeriodRange) (*Map, error) {
	if len(entries) != domain.Periods {
		return nil, pipelineerrors.NewInvalidInput(stage,
			fmt.Sprintf("expected %d period ranges, got %d", domain.Periods, len(entries)), nil)
	}

	v := validation.NewStructValidator()
	m := &Map{
		ranges: make([]domain.PeriodRange, len(entries)),
		starts: make([]int, len(entries)),
	}
	for i, e := range entries {
		if err := v.Struct(e); err != nil {
			return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("period range %d", i+1), err)
		}
		if e.Period != i+1 {
			return nil, pipelineerrors.NewInvalidInput(stage,
				fmt.Sprintf("range %d holds period %d, periods must be 1..7 in order", i+1, e.Period), nil)
		}
		if i > 0 && entries[i-1].End != e.Start {
			return nil, pipelineerrors.NewInvalidInput(stage,
				fmt.Sprintf("period %d starts at %d but period %d ends at %d", e.Period, e.Start, e.Period-1, entries[i-1].End), nil)
		}
		m.ranges[i] = e
		m.starts[i] = e.Start
	}
	return m, nil
}

// PeriodFor returns the period whose range contains d. Days at or beyond
// the last start map to period 7; days before the first start are an
// out of range error.
func (m *Map) PeriodFor(d int) (int, error) {
	// index of the first start strictly greater than d
	i := sort.Search(len(m.starts), func(i int) bool { return m.starts[i] > d })
	if i == 0 {
		return 0, pipelineerrors.NewOutOfRange(stage,
			fmt.Sprintf("day %d precedes first period start %d", d, m.starts[0])).
			WithContext("day", d)
	}
	return i, nil
}

// OpenPeriod is PeriodFor with days before the first start treated as
// period 1.
func (m *Map) OpenPeriod(d int) int {
	p, err := m.PeriodFor(d)
	if err != nil {
		return 1
	}
	return p
}

// Range returns the boundary entry of period p
func (m *Map) Range(p int) (domain.PeriodRange, error) {
	if p < 1 || p > len(m.ranges) {
		return domain.PeriodRange{}, pipelineerrors.NewOutOfRange(stage, fmt.Sprintf("period %d outside 1..%d", p, len(m.ranges)))
	}
	return m.ranges[p-1], nil
}

// Start returns the first day of period p. p must be in 1..7.
func (m *Map) Start(p int) int {
	return m.ranges[p-1].Start
}

// Width returns the number of days in period p. p must be in 1..7.
func (m *Map) Width(p int) int {
	return m.ranges[p-1].Width()
}

// Starts returns a copy of the ascending range starts
func (m *Map) Starts() []int {
	out := make([]int, len(m.starts))
	copy(out, m.starts)
	return out
}

// Entries returns a copy of the boundary table
func (m *Map) Entries() []domain.PeriodRange {
	out := make([]domain.PeriodRange, len(m.ranges))
	copy(out, m.ranges)
	return out
}

// RandomDay draws a day uniformly from [start(p), end(p))
func (m *Map) RandomDay(rng *rand.Rand, p int) int {
	r := m.ranges[p-1]
	return r.Start + rng.Intn(r.Width())
}
