package testutil

import (
	"time"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// Day returns midnight UTC of the given date
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOfWeek returns the 1 (Monday) .. 7 (Sunday) weekday of t
func DayOfWeek(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// RowBuilder builds LongRow fixtures
type RowBuilder struct {
	row domain.LongRow
}

// Row starts a DFW-LAX local period 1 row departing 2024-01-15
func Row() *RowBuilder {
	dep := Day(2024, 1, 15)
	return &RowBuilder{row: domain.LongRow{
		SnapshotDate:          Day(2024, 1, 1),
		Origin:                "DFW",
		Destination:           "LAX",
		ForecastID:            1,
		ForecastDepartureDate: dep,
		FlightDepartureDate:   dep,
		ForecastDayOfWeek:     DayOfWeek(dep),
		PoolCode:              "DFWLAX",
		CabinCode:             "Y",
		LocalFlow:             domain.Local,
		ForecastPeriod:        1,
		FracClosure:           domain.FilledFareVector(0.5),
		TrafficActual:         domain.FilledFareVector(1),
		TrafficActualAadv:     domain.FilledFareVector(1),
		Seasonality:           map[string]float64{"holiday": 0},
		IsReal:                true,
	}}
}

// Departing sets forecast and flight departure date and the matching weekday
func (b *RowBuilder) Departing(t time.Time) *RowBuilder {
	b.row.ForecastDepartureDate = t
	b.row.FlightDepartureDate = t
	b.row.ForecastDayOfWeek = DayOfWeek(t)
	return b
}

// At sets the local/flow category and period
func (b *RowBuilder) At(lf domain.LocalFlow, period int) *RowBuilder {
	b.row.LocalFlow = lf
	b.row.ForecastPeriod = period
	return b
}

// Pool sets the pool code
func (b *RowBuilder) Pool(code string) *RowBuilder {
	b.row.PoolCode = code
	return b
}

// Traffic fills every actual and alternate traffic fare class with v
func (b *RowBuilder) Traffic(v float64) *RowBuilder {
	b.row.TrafficActual = domain.FilledFareVector(v)
	b.row.TrafficActualAadv = domain.FilledFareVector(v)
	return b
}

// Closure fills every fractional closure fare class with v
func (b *RowBuilder) Closure(v float64) *RowBuilder {
	b.row.FracClosure = domain.FilledFareVector(v)
	return b
}

// Seasonality sets one named seasonality scalar
func (b *RowBuilder) Seasonality(name string, v float64) *RowBuilder {
	b.row.Seasonality[name] = v
	return b
}

// Build returns an independent copy of the row
func (b *RowBuilder) Build() domain.LongRow {
	return b.row.Clone()
}

// FullGroup returns the 14 real rows of one flight with traffic v
func FullGroup(dep time.Time, v float64) []domain.LongRow {
	rows := make([]domain.LongRow, 0, domain.GroupRows)
	for _, s := range domain.AllSlots() {
		rows = append(rows, Row().Departing(dep).At(s.LocalFlow, s.Period).Traffic(v).Build())
	}
	return rows
}

// DailyHistory returns one full group per day starting at start. Group k
// carries traffic k+1 and seasonality "holiday" k.
func DailyHistory(start time.Time, days int) []domain.LongRow {
	rows := make([]domain.LongRow, 0, days*domain.GroupRows)
	for k := 0; k < days; k++ {
		dep := start.AddDate(0, 0, k)
		for _, s := range domain.AllSlots() {
			rows = append(rows, Row().
				Departing(dep).
				At(s.LocalFlow, s.Period).
				Traffic(float64(k+1)).
				Seasonality("holiday", float64(k)).
				Build())
		}
	}
	return rows
}
