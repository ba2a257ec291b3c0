package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/masking"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/padding"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

// Workbook sheet names
const (
	SheetRun    = "Run"
	SheetSplits = "Splits"
)

// Summary describes one pipeline run
type Summary struct {
	RunID         string                      `json:"run_id"`
	Version       string                      `json:"version"`
	CreatedAt     time.Time                   `json:"created_at"`
	TestStart     time.Time                   `json:"test_start"`
	PreGroups     int                         `json:"pre_groups"`
	PostGroups    int                         `json:"post_groups"`
	SkippedStrata int                         `json:"skipped_strata"`
	AsOfApplied   bool                        `json:"as_of_applied"`
	Padding       padding.Report              `json:"padding"`
	Splits        []SplitSummary              `json:"splits"`
	Runtime       infrastructure.RuntimeStats `json:"runtime"`
}

// SplitSummary holds sample counts and traffic statistics of one split
type SplitSummary struct {
	Split   string `json:"split"`
	Samples int    `json:"samples"`
	// MaskedFraction is the share of history cells hidden from the model
	MaskedFraction float64 `json:"masked_fraction"`
	TargetMean     float64 `json:"target_mean"`
	TargetStdDev   float64 `json:"target_std_dev"`
}

// Summarize computes the run summary of res
func Summarize(runID string, res *dataset.Result, rt infrastructure.RuntimeStats) Summary {
	s := Summary{
		RunID:         runID,
		Version:       contracts.Version,
		CreatedAt:     time.Now().UTC(),
		TestStart:     res.TestStart,
		PreGroups:     res.PreGroups,
		PostGroups:    res.PostGroups,
		SkippedStrata: res.SkippedStrata,
		AsOfApplied:   res.AsOfApplied,
		Padding:       res.Padding,
		Runtime:       rt,
	}
	for _, b := range []dataset.Bundle{res.Train, res.Val, res.Test} {
		s.Splits = append(s.Splits, summarizeSplit(b))
	}
	return s
}

func summarizeSplit(b dataset.Bundle) SplitSummary {
	out := SplitSummary{Split: b.Split, Samples: b.Len()}
	if b.History != nil && len(b.History.Data) > 0 {
		out.MaskedFraction = float64(b.History.Count(masking.Masked)) / float64(len(b.History.Data))
	}
	if b.Target == nil {
		return out
	}

	values := make([]float64, 0, len(b.Target.Data))
	for _, v := range b.Target.Data {
		if v >= 0 {
			values = append(values, float64(v))
		}
	}
	switch len(values) {
	case 0:
	case 1:
		out.TargetMean = values[0]
	default:
		out.TargetMean, out.TargetStdDev = stat.MeanStdDev(values, nil)
	}
	return out
}

// WriteJSON writes the summary as indented JSON
func (s Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// WriteXLSX writes the summary as a workbook with a run sheet of
// key/value pairs and a splits sheet with one row per split
func (s Summary) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetRun); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	run := [][]interface{}{
		{"run_id", s.RunID},
		{"version", s.Version},
		{"created_at", s.CreatedAt.Format(time.RFC3339)},
		{"test_start", formatDate(s.TestStart)},
		{"cutoff", formatDate(s.Padding.Cutoff)},
		{"groups", s.Padding.Groups},
		{"real_rows", s.Padding.RealRows},
		{"synthetic_rows", s.Padding.SyntheticRows},
		{"boundary_groups", s.Padding.BoundaryGroups},
		{"small_future_fallback", s.Padding.SmallFutureFallback},
		{"pre_groups", s.PreGroups},
		{"post_groups", s.PostGroups},
		{"skipped_strata", s.SkippedStrata},
		{"as_of_applied", s.AsOfApplied},
		{"heap_in_use_bytes", s.Runtime.HeapInUse},
		{"uptime_seconds", s.Runtime.UptimeSeconds},
	}
	if err := setRows(f, SheetRun, run); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSplits); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	splits := [][]interface{}{{"split", "samples", "masked_fraction", "target_mean", "target_std_dev"}}
	for _, sp := range s.Splits {
		splits = append(splits, []interface{}{sp.Split, sp.Samples, sp.MaskedFraction, sp.TargetMean, sp.TargetStdDev})
	}
	if err := setRows(f, SheetSplits, splits); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
