package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// Long-table column names
const (
	ColSnapshotDate          = "snapshotDate"
	ColOrigin                = "origin"
	ColDestination           = "destination"
	ColForecastID            = "forecastId"
	ColForecastDepartureDate = "forecastDepartureDate"
	ColFlightDepartureDate   = "flightDepartureDate"
	ColForecastDayOfWeek     = "forecastDayOfWeek"
	ColPoolCode              = "poolCode"
	ColCabinCode             = "cabinCode"
	ColLocalFlow             = "localFlowIndicator"
	ColForecastPeriod        = "forecastPeriod"

	PrefixFracClosure       = "fracClosure_"
	PrefixTrafficActual     = "trafficActual_"
	PrefixTrafficActualAadv = "trafficActualAadv_"
)

// keyColumns are the scalar columns every long table carries
var keyColumns = []string{
	ColSnapshotDate, ColOrigin, ColDestination, ColForecastID,
	ColForecastDepartureDate, ColFlightDepartureDate, ColForecastDayOfWeek,
	ColPoolCode, ColCabinCode, ColLocalFlow, ColForecastPeriod,
}

// FareColumns returns prefix_1 .. prefix_10
func FareColumns(prefix string) []string {
	out := make([]string, domain.FareClasses)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

// Header returns the full long-table header for the given seasonality
// columns, in the order the exporter writes it
func Header(seasonality []string) []string {
	out := append([]string{}, keyColumns...)
	out = append(out, FareColumns(PrefixFracClosure)...)
	out = append(out, FareColumns(PrefixTrafficActual)...)
	out = append(out, FareColumns(PrefixTrafficActualAadv)...)
	return append(out, seasonality...)
}

// header maps lower-cased column names to their index
type header map[string]int

func newHeader(record []string) header {
	h := make(header, len(record))
	for i, name := range record {
		name = strings.TrimPrefix(name, "\ufeff")
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h
}

// missing returns the names absent from the header, in order
func (h header) missing(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := h[strings.ToLower(n)]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// record reads named cells of one data row
type record struct {
	h     header
	cells []string
}

func (r record) get(name string) string {
	i, ok := r.h[strings.ToLower(name)]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r record) floatValue(name string) (float64, error) {
	s := r.get(name)
	if s == "" {
		return 0, fmt.Errorf("%s is empty", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func (r record) intValue(name string) (int, error) {
	v, err := r.floatValue(name)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%s: %v is not a whole number", name, v)
	}
	return int(v), nil
}

func (r record) fares(prefix string) (domain.FareVector, error) {
	var v domain.FareVector
	for i, name := range FareColumns(prefix) {
		f, err := r.floatValue(name)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// dateLayouts are the accepted text date formats
var dateLayouts = []string{domain.DateLayout, "2006/01/02", time.RFC3339}

// date parses a text date or an Excel serial date, normalized to UTC
// midnight
func (r record) date(name string) (time.Time, error) {
	s := r.get(name)
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is empty", name)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.CivilDate(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", name, err)
		}
		return domain.CivilDate(t), nil
	}
	return time.Time{}, fmt.Errorf("%s: unrecognized date %q", name, s)
}

// row converts one record to a LongRow
func (r record) row(seasonality []string) (domain.LongRow, error) {
	var row domain.LongRow
	var err error

	if row.SnapshotDate, err = r.date(ColSnapshotDate); err != nil {
		return row, err
	}
	if row.ForecastDepartureDate, err = r.date(ColForecastDepartureDate); err != nil {
		return row, err
	}
	if row.FlightDepartureDate, err = r.date(ColFlightDepartureDate); err != nil {
		return row, err
	}
	if row.ForecastID, err = r.intValue(ColForecastID); err != nil {
		return row, err
	}
	if row.ForecastDayOfWeek, err = r.intValue(ColForecastDayOfWeek); err != nil {
		return row, err
	}
	if row.ForecastPeriod, err = r.intValue(ColForecastPeriod); err != nil {
		return row, err
	}
	row.Origin = strings.ToUpper(r.get(ColOrigin))
	row.Destination = strings.ToUpper(r.get(ColDestination))
	row.PoolCode = r.get(ColPoolCode)
	row.CabinCode = r.get(ColCabinCode)
	row.LocalFlow = domain.LocalFlow(strings.ToUpper(r.get(ColLocalFlow)))

	if row.FracClosure, err = r.fares(PrefixFracClosure); err != nil {
		return row, err
	}
	if row.TrafficActual, err = r.fares(PrefixTrafficActual); err != nil {
		return row, err
	}
	if row.TrafficActualAadv, err = r.fares(PrefixTrafficActualAadv); err != nil {
		return row, err
	}

	row.Seasonality = make(map[string]float64, len(seasonality))
	for _, name := range seasonality {
		if row.Seasonality[name], err = r.floatValue(name); err != nil {
			return row, err
		}
	}
	row.IsReal = true
	return row, nil
}
