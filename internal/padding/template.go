package padding

import (
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// Template holds the fill values of a synthetic row
type Template struct {
	Name              string
	FracClosure       float64
	TrafficActual     float64
	TrafficActualAadv float64
}

var (
	// Historical fills departed flights: every class closed, no traffic
	Historical = Template{Name: "historical", FracClosure: 1, TrafficActual: 0, TrafficActualAadv: 0}
	// Future fills flights that have not departed: open classes, traffic unknown
	Future = Template{Name: "future", FracClosure: 0, TrafficActual: -1, TrafficActualAadv: -1}
)

// apply overwrites the template-defined fields of row for slot s
func (t Template) apply(row *domain.LongRow, s domain.Slot) {
	row.LocalFlow = s.LocalFlow
	row.ForecastPeriod = s.Period
	row.FracClosure = domain.FilledFareVector(t.FracClosure)
	row.TrafficActual = domain.FilledFareVector(t.TrafficActual)
	row.TrafficActualAadv = domain.FilledFareVector(t.TrafficActualAadv)
	row.IsReal = false
}

// Matches reports whether row carries exactly the template's fill values
func (t Template) Matches(row domain.LongRow) bool {
	return row.FracClosure == domain.FilledFareVector(t.FracClosure) &&
		row.TrafficActual == domain.FilledFareVector(t.TrafficActual) &&
		row.TrafficActualAadv == domain.FilledFareVector(t.TrafficActualAadv)
}

// SyntheticGroup builds a fully synthetic 14-row group for key. The
// forecast departure date is taken from the flight departure date.
func SyntheticGroup(key domain.GroupKey, tmpl Template, groupID int) []domain.LongRow {
	base := domain.LongRow{
		SnapshotDate:          key.SnapshotDate,
		Origin:                key.Origin,
		Destination:           key.Destination,
		ForecastID:            key.ForecastID,
		ForecastDepartureDate: key.FlightDepartureDate,
		FlightDepartureDate:   key.FlightDepartureDate,
		ForecastDayOfWeek:     key.DayOfWeek,
		PoolCode:              key.PoolCode,
		CabinCode:             key.CabinCode,
		GroupID:               groupID,
	}

	rows := make([]domain.LongRow, 0, domain.GroupRows)
	for _, s := range domain.AllSlots() {
		row := base
		tmpl.apply(&row, s)
		rows = append(rows, row)
	}
	return rows
}
