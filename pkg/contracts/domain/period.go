package domain

// PeriodRange is one row of a market's period boundary table: the
// day-to-departure range [Start, End) in which Period is the open period.
type PeriodRange struct {
	Period int `json:"forecast_period" yaml:"forecast_period" validate:"min=1,max=7"`
	Start  int `json:"rrd_start" yaml:"rrd_start" validate:"min=0"`
	End    int `json:"rrd_end" yaml:"rrd_end" validate:"gtfield=Start"`
}

// Width returns the number of days covered by the range
func (r PeriodRange) Width() int {
	return r.End - r.Start
}
