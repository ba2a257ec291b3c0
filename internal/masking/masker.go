// Package masking cuts traffic tensors into fixed-length histories and
// hides the traffic that would not yet be known on the forecast day.
package masking

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sort"
	"time"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/periods"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const stage = "masking"

// Masked is the value written over unknown traffic
const Masked float32 = -1

// Policy selects how the forecast day of each sample is chosen
type Policy string

const (
	// PolicyRandom draws a random forecast day per sample
	PolicyRandom Policy = "random"
	// PolicyDate masks relative to a fixed as-of date
	PolicyDate Policy = "date"
)

// Stratify selects how samples are windowed
type Stratify string

const (
	// StratifyNone windows the groups in their given order
	StratifyNone Stratify = "none"
	// StratifyWeekday windows each day-of-week independently, so one step
	// back in a history is one week earlier
	StratifyWeekday Stratify = "dow"
)

// Request describes one masking pass
type Request struct {
	// Traffic is the canonical N×2×7×10 traffic tensor
	Traffic *tensor.Tensor
	// Groups carries the departure date and weekday of each of the N groups
	Groups   []tensor.GroupMeta
	Policy   Policy
	Stratify Stratify
	// AsOf is the forecast day of PolicyDate
	AsOf time.Time
}

// Windows is the result of a masking pass
type Windows struct {
	// History is S×window×2×7×10
	History *tensor.Tensor
	// Targets holds, per sample, the index of the group the history ends at
	Targets []int
	// SkippedStrata counts weekday strata too short to yield a sample
	SkippedStrata int
	// AsOfApplied reports whether the as-of date fell inside the data
	AsOfApplied bool
}

// Masker windows and masks traffic tensors. Random draws come from a
// source owned by the masker, so a seed reproduces the same output.
type Masker struct {
	periods *periods.Map
	window  int
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewMasker creates a masker with histories of length window
func NewMasker(pm *periods.Map, window int, seed int64, logger *slog.Logger) (*Masker, error) {
	if pm == nil {
		return nil, pipelineerrors.NewInvalidConfig("masker needs a period map", nil)
	}
	if window < 1 {
		return nil, pipelineerrors.NewInvalidConfig(fmt.Sprintf("window must be positive, got %d", window), nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Masker{
		periods: pm,
		window:  window,
		rng:     rand.New(rand.NewSource(seed)),
		logger:  logger,
	}, nil
}

// Window returns the history length
func (m *Masker) Window() int {
	return m.window
}

// Mask builds one history per target group. With PolicyRandom each
// history is masked from its own random forecast day; with PolicyDate the
// whole tensor is masked once relative to req.AsOf before windowing.
func (m *Masker) Mask(ctx context.Context, req Request) (Windows, error) {
	if err := checkTraffic(req.Traffic, len(req.Groups)); err != nil {
		return Windows{}, err
	}

	src := req.Traffic
	var maskFn func(win []float32)
	var applied bool
	switch req.Policy {
	case PolicyRandom:
		if req.Stratify == StratifyWeekday {
			maskFn = m.maskWeekly
		} else {
			maskFn = m.maskDaily
		}
	case PolicyDate:
		src, applied = m.ApplyAsOf(ctx, req.Traffic, req.Groups, req.AsOf)
	default:
		return Windows{}, pipelineerrors.NewInvalidConfig(fmt.Sprintf("unknown masking policy %q", req.Policy), nil)
	}

	var out Windows
	switch req.Stratify {
	case StratifyNone, "":
		idx := make([]int, src.Len())
		for i := range idx {
			idx[i] = i
		}
		out = m.windows(src, idx, maskFn)
	case StratifyWeekday:
		out = m.windowsByWeekday(ctx, src, req.Groups, maskFn)
	default:
		return Windows{}, pipelineerrors.NewInvalidConfig(fmt.Sprintf("unknown stratification %q", req.Stratify), nil)
	}
	out.AsOfApplied = applied

	m.logger.DebugContext(ctx, "masked traffic histories",
		"policy", string(req.Policy),
		"stratify", string(req.Stratify),
		"groups", src.Len(),
		"samples", len(out.Targets),
		"window", m.window)
	return out, nil
}

// ApplyAsOf masks traffic as it would have been known on asOf. Groups
// departing before asOf stay untouched. From the first group departing on
// or after asOf, a day counter starting at 0 advances by one per group and
// periods 1..open are masked, where open is the period of the counter.
// When asOf is after every departure the input is returned unmodified.
func (m *Masker) ApplyAsOf(ctx context.Context, traffic *tensor.Tensor, groups []tensor.GroupMeta, asOf time.Time) (*tensor.Tensor, bool) {
	start := -1
	for i, g := range groups {
		if !g.ForecastDepartureDate.Before(asOf) {
			start = i
			break
		}
	}
	if start < 0 {
		m.logger.ErrorContext(ctx, "as-of date is after every departure, traffic left unmasked",
			"as_of", asOf.Format(domain.DateLayout),
			"groups", len(groups))
		return traffic, false
	}

	out := traffic.Clone()
	for i := start; i < out.Len(); i++ {
		open := min(m.periods.OpenPeriod(i-start), domain.Periods)
		maskPeriods(out.Sample(i), open)
	}
	return out, true
}

// windows cuts one history per target. idx lists the source samples in
// history order; target k of the result is idx[window+k].
func (m *Masker) windows(src *tensor.Tensor, idx []int, maskFn func(win []float32)) Windows {
	size := src.SampleSize()
	samples := max(len(idx)-m.window, 0)
	shape := append([]int{samples, m.window}, src.Shape[1:]...)
	out := Windows{History: tensor.New(shape...), Targets: make([]int, samples)}

	for s := 0; s < samples; s++ {
		i := s + m.window
		win := out.History.Data[s*m.window*size : (s+1)*m.window*size]
		for j := 0; j < m.window; j++ {
			copy(win[j*size:(j+1)*size], src.Sample(idx[i-m.window+1+j]))
		}
		if maskFn != nil {
			maskFn(win)
		}
		out.Targets[s] = idx[i]
	}
	return out
}

// windowsByWeekday windows each weekday stratum on its own, in order of
// first appearance, and merges the samples ordered by target index.
func (m *Masker) windowsByWeekday(ctx context.Context, src *tensor.Tensor, groups []tensor.GroupMeta, maskFn func(win []float32)) Windows {
	var order []int
	strata := make(map[int][]int)
	for i, g := range groups {
		if _, ok := strata[g.DayOfWeek]; !ok {
			order = append(order, g.DayOfWeek)
		}
		strata[g.DayOfWeek] = append(strata[g.DayOfWeek], i)
	}

	type sample struct {
		target int
		data   []float32
	}
	var all []sample
	skipped := 0
	for _, dow := range order {
		idx := strata[dow]
		w := m.windows(src, idx, maskFn)
		if len(w.Targets) == 0 {
			skipped++
			m.logger.WarnContext(ctx, "weekday stratum too short for one history",
				"day_of_week", dow,
				"groups", len(idx),
				"window", m.window)
			continue
		}
		size := w.History.SampleSize()
		for k, target := range w.Targets {
			all = append(all, sample{target: target, data: w.History.Data[k*size : (k+1)*size]})
		}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].target < all[b].target })

	shape := append([]int{len(all), m.window}, src.Shape[1:]...)
	out := Windows{History: tensor.New(shape...), Targets: make([]int, len(all)), SkippedStrata: skipped}
	size := out.History.SampleSize()
	for k, s := range all {
		copy(out.History.Data[k*size:(k+1)*size], s.data)
		out.Targets[k] = s.target
	}
	return out
}

// maskDaily masks one history whose consecutive entries depart one day
// apart. The last entry is the target seen p periods out on day d; walking
// back, each earlier departure is one day closer to its own flight, so
// fewer periods remain open. The walk consumes the rest of the current
// period, then one full earlier period per step, until the history or the
// periods run out.
func (m *Masker) maskDaily(win []float32) {
	p, d := m.drawForecastDay()
	m.walkDaily(win, p, d)
}

func (m *Masker) walkDaily(win []float32, p, d int) {
	size := len(win) / m.window
	cur := m.window - 1
	maskPeriods(win[cur*size:(cur+1)*size], p)

	period := p
	remaining := m.window - 1
	bound := d
	span := d - m.periods.Start(p)
	for remaining > 0 && period > 0 {
		step := min(span, remaining)
		for j := cur - step; j < cur; j++ {
			maskPeriods(win[j*size:(j+1)*size], period)
		}
		if span >= remaining {
			break
		}
		cur -= step
		remaining -= step
		period--
		if period == 0 {
			break
		}
		bound -= step
		span = bound - m.periods.Start(period)
	}
}

// maskWeekly masks one history whose consecutive entries depart a week
// apart. Entry k back from the target is masked up to the period of d-7k,
// stopping once d-7k precedes the first period.
func (m *Masker) maskWeekly(win []float32) {
	_, d := m.drawForecastDay()
	m.walkWeekly(win, d)
}

func (m *Masker) walkWeekly(win []float32, d int) {
	size := len(win) / m.window
	for k := 0; k < m.window; k++ {
		open, err := m.periods.PeriodFor(d - 7*k)
		if err != nil {
			break
		}
		j := m.window - 1 - k
		maskPeriods(win[j*size:(j+1)*size], open)
	}
}

// drawForecastDay draws the target's open period p from 1..6 and a day d
// inside it
func (m *Masker) drawForecastDay() (p, d int) {
	p = 1 + m.rng.Intn(domain.Periods-1)
	return p, m.periods.RandomDay(m.rng, p)
}

// maskPeriods sets periods 1..upTo of every channel of one canonical
// 2×7×10 sample to Masked
func maskPeriods(sample []float32, upTo int) {
	for c := 0; c < domain.Channels; c++ {
		for p := 0; p < upTo; p++ {
			off := (c*domain.Periods + p) * domain.FareClasses
			for f := 0; f < domain.FareClasses; f++ {
				sample[off+f] = Masked
			}
		}
	}
}

func checkTraffic(t *tensor.Tensor, groups int) error {
	want := []int{domain.Channels, domain.Periods, domain.FareClasses}
	if t == nil || len(t.Shape) != 4 || !slices.Equal(t.Shape[1:], want) {
		var shape []int
		if t != nil {
			shape = t.Shape
		}
		return pipelineerrors.NewStructuralMismatch(stage, fmt.Sprintf("traffic shape %v, want [N 2 7 10]", shape))
	}
	if t.Len() != groups {
		return pipelineerrors.NewStructuralMismatch(stage,
			fmt.Sprintf("traffic has %d groups but %d group records were given", t.Len(), groups))
	}
	return nil
}
