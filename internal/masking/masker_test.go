package masking

import (
	"context"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/periods"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/shared/testutil"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

func periodMap(t *testing.T) *periods.Map {
	t.Helper()
	m, err := periods.New([]domain.PeriodRange{
		{Period: 1, Start: 0, End: 2},
		{Period: 2, Start: 2, End: 5},
		{Period: 3, Start: 5, End: 10},
		{Period: 4, Start: 10, End: 20},
		{Period: 5, Start: 20, End: 40},
		{Period: 6, Start: 40, End: 90},
		{Period: 7, Start: 90, End: 330},
	})
	require.NoError(t, err)
	return m
}

func newMasker(t *testing.T, window int, seed int64) *Masker {
	t.Helper()
	m, err := NewMasker(periodMap(t), window, seed, nil)
	require.NoError(t, err)
	return m
}

// dailyTraffic returns n groups departing on consecutive days; every
// value of group i is i+1
func dailyTraffic(n int) (*tensor.Tensor, []tensor.GroupMeta) {
	traffic := tensor.New(n, domain.Channels, domain.Periods, domain.FareClasses)
	groups := make([]tensor.GroupMeta, n)
	start := testutil.Day(2024, 1, 1)
	for i := 0; i < n; i++ {
		for j := range traffic.Sample(i) {
			traffic.Sample(i)[j] = float32(i + 1)
		}
		dep := start.AddDate(0, 0, i)
		groups[i] = tensor.GroupMeta{GroupID: i + 1, ForecastDepartureDate: dep, DayOfWeek: testutil.DayOfWeek(dep)}
	}
	return traffic, groups
}

// maskedDepth returns how many leading periods of a 2×7×10 sample are
// masked, failing when the mask is not a prefix shared by both channels
// or when an unmasked value differs from want.
func maskedDepth(t *testing.T, sample []float32, want float32) int {
	t.Helper()
	depth := 0
	for p := 0; p < domain.Periods; p++ {
		if sample[p*domain.FareClasses] == Masked {
			depth = p + 1
		}
	}
	for c := 0; c < domain.Channels; c++ {
		for p := 0; p < domain.Periods; p++ {
			for f := 0; f < domain.FareClasses; f++ {
				v := sample[(c*domain.Periods+p)*domain.FareClasses+f]
				if p < depth {
					require.Equal(t, Masked, v, "channel %d period %d", c, p+1)
				} else {
					require.Equal(t, want, v, "channel %d period %d", c, p+1)
				}
			}
		}
	}
	return depth
}

func TestNewMasker_Validation(t *testing.T) {
	_, err := NewMasker(nil, 3, 1, nil)
	assert.True(t, pipelineerrors.IsKind(err, pipelineerrors.KindInvalidConfig))

	_, err = NewMasker(periodMap(t), 0, 1, nil)
	assert.True(t, pipelineerrors.IsKind(err, pipelineerrors.KindInvalidConfig))
}

func TestWalkDaily(t *testing.T) {
	tests := []struct {
		name   string
		window int
		p, d   int
		want   []int
	}{
		{"period three", 5, 3, 7, []int{2, 2, 3, 3, 3}},
		{"period one", 4, 1, 1, []int{0, 0, 1, 1}},
		{"day on period start", 4, 2, 2, []int{0, 1, 1, 2}},
		{"long window", 6, 6, 41, []int{5, 5, 5, 5, 6, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMasker(t, tt.window, 1)
			win := tensor.Filled(1, tt.window, domain.Channels, domain.Periods, domain.FareClasses)

			m.walkDaily(win.Data, tt.p, tt.d)

			got := make([]int, tt.window)
			for j := range got {
				got[j] = maskedDepth(t, win.Sample(j), 1)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// The state machine must agree with the direct rule: the entry k days
// before the target is masked up to the period of d-k.
func TestWalkDaily_MatchesDirectRule(t *testing.T) {
	pm := periodMap(t)
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 300; trial++ {
		window := 1 + rng.Intn(30)
		m := newMasker(t, window, 1)
		p := 1 + rng.Intn(6)
		d := pm.RandomDay(rng, p)

		win := tensor.Filled(1, window, domain.Channels, domain.Periods, domain.FareClasses)
		m.walkDaily(win.Data, p, d)

		for j := 0; j < window; j++ {
			k := window - 1 - j
			want, err := pm.PeriodFor(d - k)
			if err != nil {
				want = 0
			}
			require.Equal(t, want, maskedDepth(t, win.Sample(j), 1), "window %d p %d d %d entry %d", window, p, d, j)
		}
	}
}

func TestWalkWeekly(t *testing.T) {
	m := newMasker(t, 4, 1)
	win := tensor.Filled(1, 4, domain.Channels, domain.Periods, domain.FareClasses)

	// d=16: 16 -> period 4, 9 -> 3, 2 -> 2, -5 stops
	m.walkWeekly(win.Data, 16)

	got := make([]int, 4)
	for j := range got {
		got[j] = maskedDepth(t, win.Sample(j), 1)
	}
	assert.Equal(t, []int{0, 2, 3, 4}, got)
}

func TestMask_SampleCounts(t *testing.T) {
	ctx := context.Background()
	traffic, groups := dailyTraffic(30)
	const window = 3

	tests := []struct {
		name        string
		req         Request
		wantSamples int
	}{
		{"random", Request{Policy: PolicyRandom, Stratify: StratifyNone}, 27},
		{"date", Request{Policy: PolicyDate, AsOf: testutil.Day(2024, 1, 20)}, 27},
		// 30 days starting Monday: two weekdays hold 5 groups, five hold 4
		{"random by weekday", Request{Policy: PolicyRandom, Stratify: StratifyWeekday}, 2*2 + 5*1},
		{"date by weekday", Request{Policy: PolicyDate, Stratify: StratifyWeekday, AsOf: testutil.Day(2024, 1, 20)}, 2*2 + 5*1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			req.Traffic = traffic
			req.Groups = groups

			out, err := newMasker(t, window, 3).Mask(ctx, req)
			require.NoError(t, err)

			assert.Len(t, out.Targets, tt.wantSamples)
			assert.Equal(t, []int{tt.wantSamples, window, 2, 7, 10}, out.History.Shape)
			for s, target := range out.Targets {
				if tt.req.Stratify != StratifyWeekday {
					assert.Equal(t, s+window, target)
				}
			}
		})
	}
}

func TestMask_Weekday(t *testing.T) {
	ctx := context.Background()
	traffic, groups := dailyTraffic(21)

	out, err := newMasker(t, 2, 5).Mask(ctx, Request{
		Traffic:  traffic,
		Groups:   groups,
		Policy:   PolicyRandom,
		Stratify: StratifyWeekday,
	})
	require.NoError(t, err)

	// every weekday has three groups, one history each
	assert.Equal(t, []int{14, 15, 16, 17, 18, 19, 20}, out.Targets)
	assert.Zero(t, out.SkippedStrata)

	for s, target := range out.Targets {
		first := maskedDepth(t, out.History.Sample(s)[:out.History.SampleSize()/2], float32(target-7+1))
		last := maskedDepth(t, out.History.Sample(s)[out.History.SampleSize()/2:], float32(target+1))
		assert.GreaterOrEqual(t, last, 1)
		assert.LessOrEqual(t, last, 6)
		assert.LessOrEqual(t, first, last)
	}
}

func TestMask_WeekdaySkipsShortStrata(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	m, err := NewMasker(periodMap(t), 1, 1, logger)
	require.NoError(t, err)
	traffic, groups := dailyTraffic(9)

	out, err := m.Mask(context.Background(), Request{
		Traffic:  traffic,
		Groups:   groups,
		Policy:   PolicyRandom,
		Stratify: StratifyWeekday,
	})
	require.NoError(t, err)

	assert.Equal(t, []int{7, 8}, out.Targets)
	assert.Equal(t, 5, out.SkippedStrata)
	testutil.AssertLogged(t, handler, slog.LevelWarn, "stratum too short")
}

func TestMask_RandomHistories(t *testing.T) {
	traffic, groups := dailyTraffic(40)
	const window = 8

	out, err := newMasker(t, window, 42).Mask(context.Background(), Request{
		Traffic: traffic,
		Groups:  groups,
		Policy:  PolicyRandom,
	})
	require.NoError(t, err)

	size := out.History.SampleSize() / window
	for s, target := range out.Targets {
		sample := out.History.Sample(s)
		prev := domain.Periods + 1
		for j := window - 1; j >= 0; j-- {
			group := target - (window - 1 - j)
			depth := maskedDepth(t, sample[j*size:(j+1)*size], float32(group+1))
			if j == window-1 {
				assert.GreaterOrEqual(t, depth, 1)
				assert.LessOrEqual(t, depth, 6)
			}
			assert.LessOrEqual(t, depth, prev, "sample %d entry %d", s, j)
			prev = depth
		}
	}

	// the source is never modified
	assert.Zero(t, traffic.Count(Masked))
}

func TestMask_SeededReproducibility(t *testing.T) {
	ctx := context.Background()
	traffic, groups := dailyTraffic(60)

	run := func(seed int64, stratify Stratify) *tensor.Tensor {
		out, err := newMasker(t, 7, seed).Mask(ctx, Request{
			Traffic:  traffic,
			Groups:   groups,
			Policy:   PolicyRandom,
			Stratify: stratify,
		})
		require.NoError(t, err)
		return out.History
	}

	for _, stratify := range []Stratify{StratifyNone, StratifyWeekday} {
		t.Run(string(stratify), func(t *testing.T) {
			assert.Equal(t, run(99, stratify).Data, run(99, stratify).Data)
			assert.NotEqual(t, run(99, stratify).Data, run(100, stratify).Data)
		})
	}
}

func TestApplyAsOf(t *testing.T) {
	ctx := context.Background()
	traffic, groups := dailyTraffic(20)
	m := newMasker(t, 3, 1)
	asOf := testutil.Day(2024, 1, 5)

	masked, applied := m.ApplyAsOf(ctx, traffic, groups, asOf)
	require.True(t, applied)

	// counter 0,1 -> period 1; 2..4 -> 2; 5..9 -> 3; 10.. -> 4
	want := []int{0, 0, 0, 0, 1, 1, 2, 2, 2, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4}
	for i := range want {
		assert.Equal(t, want[i], maskedDepth(t, masked.Sample(i), float32(i+1)), "group %d", i)
	}

	t.Run("idempotent", func(t *testing.T) {
		again, applied := m.ApplyAsOf(ctx, masked, groups, asOf)
		require.True(t, applied)
		assert.Equal(t, masked.Data, again.Data)
	})

	t.Run("as-of after every departure", func(t *testing.T) {
		logger, handler := testutil.NewTestLogger(t)
		quiet, err := NewMasker(periodMap(t), 3, 1, logger)
		require.NoError(t, err)

		out, applied := quiet.ApplyAsOf(ctx, traffic, groups, testutil.Day(2025, 1, 1))
		assert.False(t, applied)
		assert.Equal(t, traffic.Data, out.Data)
		testutil.AssertLogged(t, handler, slog.LevelError, "after every departure")
	})

	t.Run("mask windows the masked tensor", func(t *testing.T) {
		out, err := m.Mask(ctx, Request{Traffic: traffic, Groups: groups, Policy: PolicyDate, AsOf: asOf})
		require.NoError(t, err)
		assert.True(t, out.AsOfApplied)
		require.Len(t, out.Targets, 17)
		// history of target 10 is groups 8, 9, 10
		size := out.History.SampleSize() / 3
		h := out.History.Sample(7)
		assert.Equal(t, masked.Sample(8), h[:size])
		assert.Equal(t, masked.Sample(10), h[2*size:])
	})
}

func TestMask_Errors(t *testing.T) {
	ctx := context.Background()
	traffic, groups := dailyTraffic(5)
	m := newMasker(t, 2, 1)

	tests := []struct {
		name string
		req  Request
		kind pipelineerrors.Kind
	}{
		{"nil traffic", Request{Groups: groups, Policy: PolicyRandom}, pipelineerrors.KindStructuralMismatch},
		{"wrong shape", Request{Traffic: tensor.New(5, 14, 10), Groups: groups, Policy: PolicyRandom}, pipelineerrors.KindStructuralMismatch},
		{"group count", Request{Traffic: traffic, Groups: groups[:3], Policy: PolicyRandom}, pipelineerrors.KindStructuralMismatch},
		{"unknown policy", Request{Traffic: traffic, Groups: groups, Policy: "weekly"}, pipelineerrors.KindInvalidConfig},
		{"unknown stratify", Request{Traffic: traffic, Groups: groups, Policy: PolicyRandom, Stratify: "month"}, pipelineerrors.KindInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Mask(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, pipelineerrors.IsKind(err, tt.kind))
		})
	}
}

func TestMask_FewerGroupsThanWindow(t *testing.T) {
	traffic, groups := dailyTraffic(3)
	out, err := newMasker(t, 5, 1).Mask(context.Background(), Request{Traffic: traffic, Groups: groups, Policy: PolicyRandom})
	require.NoError(t, err)
	assert.Empty(t, out.Targets)
	assert.Equal(t, []int{0, 5, 2, 7, 10}, out.History.Shape)
}
