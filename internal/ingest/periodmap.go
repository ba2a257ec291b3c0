package ingest

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/periods"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// Period map column names. Lookup is case-insensitive, so the upper-case
// FORECASTPERIOD / RRD_START / RRD_END exports read the same.
const (
	ColRRDStart = "rrd_start"
	ColRRDEnd   = "rrd_end"
	// ColLocalFlowShort is the alternative local/flow column of period maps
	ColLocalFlowShort = "lcl_flw_ind"
)

// LoadPeriodMap reads a period map CSV and builds the validated map
func LoadPeriodMap(path string) (*periods.Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("open period map %s", path), err)
	}
	defer f.Close()

	entries, err := ReadPeriodMap(path, f)
	if err != nil {
		return nil, err
	}
	return periods.New(entries)
}

// ReadPeriodMap parses period map records. Rows with a local/flow column
// other than 'L' are dropped, identical rows collapse to one, and the
// result is ordered by period. Two different ranges for one period are
// rejected.
func ReadPeriodMap(name string, src io.Reader) ([]domain.PeriodRange, error) {
	records, err := csvRecords(src)
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("read period map %s", name), err)
	}
	if len(records) == 0 {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("period map %s has no header", name), nil)
	}

	h := newHeader(records[0])
	if missing := h.missing([]string{ColForecastPeriod, ColRRDStart, ColRRDEnd}); len(missing) > 0 {
		return nil, pipelineerrors.NewInvalidInput(stage,
			fmt.Sprintf("period map %s is missing columns: %s", name, strings.Join(missing, ", ")), nil)
	}
	lfCol := ""
	for _, c := range []string{ColLocalFlow, ColLocalFlowShort} {
		if len(h.missing([]string{c})) == 0 {
			lfCol = c
			break
		}
	}

	byPeriod := make(map[int]domain.PeriodRange)
	for i, cells := range records[1:] {
		if blank(cells) {
			continue
		}
		rec := record{h: h, cells: cells}
		if lfCol != "" && !strings.EqualFold(rec.get(lfCol), string(domain.Local)) {
			continue
		}

		var pr domain.PeriodRange
		if pr.Period, err = rec.intValue(ColForecastPeriod); err == nil {
			if pr.Start, err = rec.intValue(ColRRDStart); err == nil {
				pr.End, err = rec.intValue(ColRRDEnd)
			}
		}
		if err != nil {
			return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("period map %s line %d", name, i+2), err)
		}

		if prev, ok := byPeriod[pr.Period]; ok && prev != pr {
			return nil, pipelineerrors.NewInvalidInput(stage,
				fmt.Sprintf("period map %s gives period %d as [%d, %d) and [%d, %d)",
					name, pr.Period, prev.Start, prev.End, pr.Start, pr.End), nil)
		}
		byPeriod[pr.Period] = pr
	}

	out := make([]domain.PeriodRange, 0, len(byPeriod))
	for _, pr := range byPeriod {
		out = append(out, pr)
	}
	slices.SortFunc(out, func(a, b domain.PeriodRange) int { return a.Period - b.Period })
	return out, nil
}
