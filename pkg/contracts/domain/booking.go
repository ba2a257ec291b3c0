package domain

import (
	"cmp"
	"maps"
	"time"
)

const (
	// FareClasses is the number of fare buckets tracked per period
	FareClasses = 10
	// Periods is the number of booking-horizon periods before departure
	Periods = 7
	// Channels is the number of traffic categories (flow, local)
	Channels = 2
	// GroupRows is the number of rows in a fully padded group
	GroupRows = Periods * Channels

	// DateLayout is the layout used for every date column
	DateLayout = "2006-01-02"
)

// LocalFlow distinguishes local traffic from flow (connecting) traffic
type LocalFlow string

const (
	Flow  LocalFlow = "F"
	Local LocalFlow = "L"
)

// Channel returns the tensor channel of the category. Flow sorts before
// local, so flow is channel 0.
func (lf LocalFlow) Channel() int {
	if lf == Local {
		return 1
	}
	return 0
}

// Valid reports whether lf is one of the two known categories
func (lf LocalFlow) Valid() bool {
	return lf == Flow || lf == Local
}

// FareVector holds one value per fare class, addressed by fare-class index
type FareVector [FareClasses]float64

// FilledFareVector returns a vector with every fare class set to v
func FilledFareVector(v float64) FareVector {
	var fv FareVector
	for i := range fv {
		fv[i] = v
	}
	return fv
}

// LongRow is one observed or synthetic measurement for a flight, pool,
// local/flow category and booking period.
type LongRow struct {
	SnapshotDate          time.Time `json:"snapshot_date" validate:"required"`
	Origin                string    `json:"origin" validate:"required,iata"`
	Destination           string    `json:"destination" validate:"required,iata"`
	ForecastID            int       `json:"forecast_id" validate:"min=0"`
	ForecastDepartureDate time.Time `json:"forecast_departure_date" validate:"required"`
	FlightDepartureDate   time.Time `json:"flight_departure_date" validate:"required"`
	ForecastDayOfWeek     int       `json:"forecast_day_of_week" validate:"min=1,max=7"`
	PoolCode              string    `json:"pool_code" validate:"required"`
	CabinCode             string    `json:"cabin_code" validate:"required"`
	LocalFlow             LocalFlow `json:"local_flow_indicator" validate:"oneof=L F"`
	ForecastPeriod        int       `json:"forecast_period" validate:"min=1,max=7"`

	FracClosure       FareVector `json:"frac_closure"`
	TrafficActual     FareVector `json:"traffic_actual"`
	TrafficActualAadv FareVector `json:"traffic_actual_aadv"`

	// Seasonality holds the named pass-through seasonality scalars
	Seasonality map[string]float64 `json:"seasonality,omitempty"`

	IsReal    bool `json:"is_real"`
	GroupID   int  `json:"group_id"`
	GroupSize int  `json:"group_size"`
}

// Key returns the padding group key of the row
func (r LongRow) Key() GroupKey {
	return GroupKey{
		SnapshotDate:        r.SnapshotDate,
		Origin:              r.Origin,
		Destination:         r.Destination,
		ForecastID:          r.ForecastID,
		FlightDepartureDate: r.FlightDepartureDate,
		DayOfWeek:           r.ForecastDayOfWeek,
		PoolCode:            r.PoolCode,
		CabinCode:           r.CabinCode,
	}
}

// Slot returns the (local/flow, period) position of the row inside its group
func (r LongRow) Slot() Slot {
	return Slot{LocalFlow: r.LocalFlow, Period: r.ForecastPeriod}
}

// Clone returns a copy of the row that shares no mutable state with r
func (r LongRow) Clone() LongRow {
	out := r
	if r.Seasonality != nil {
		out.Seasonality = maps.Clone(r.Seasonality)
	}
	return out
}

// GroupKey identifies the unit of padding
type GroupKey struct {
	SnapshotDate        time.Time
	Origin              string
	Destination         string
	ForecastID          int
	FlightDepartureDate time.Time
	DayOfWeek           int
	PoolCode            string
	CabinCode           string
}

// Compare orders group keys field by field, in declaration order
func (k GroupKey) Compare(o GroupKey) int {
	if c := k.SnapshotDate.Compare(o.SnapshotDate); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Origin, o.Origin); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Destination, o.Destination); c != 0 {
		return c
	}
	if c := cmp.Compare(k.ForecastID, o.ForecastID); c != 0 {
		return c
	}
	if c := k.FlightDepartureDate.Compare(o.FlightDepartureDate); c != 0 {
		return c
	}
	if c := cmp.Compare(k.DayOfWeek, o.DayOfWeek); c != 0 {
		return c
	}
	if c := cmp.Compare(k.PoolCode, o.PoolCode); c != 0 {
		return c
	}
	return cmp.Compare(k.CabinCode, o.CabinCode)
}

// Slot is a (local/flow, period) position inside a group
type Slot struct {
	LocalFlow LocalFlow
	Period    int
}

// Index returns the row offset of the slot inside a canonically ordered group
func (s Slot) Index() int {
	return s.LocalFlow.Channel()*Periods + s.Period - 1
}

// AllSlots returns the 14 slots of a group in canonical order:
// flow periods 1..7 followed by local periods 1..7.
func AllSlots() []Slot {
	slots := make([]Slot, 0, GroupRows)
	for _, lf := range []LocalFlow{Flow, Local} {
		for p := 1; p <= Periods; p++ {
			slots = append(slots, Slot{LocalFlow: lf, Period: p})
		}
	}
	return slots
}

// CivilDate truncates t to midnight UTC of its calendar day
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a date column value
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
