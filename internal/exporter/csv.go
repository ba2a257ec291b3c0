package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/ingest"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

// Padded-table columns appended after the long-table header
const (
	ColIsReal    = "isReal"
	ColGroupID   = "groupId"
	ColGroupSize = "groupSize"
)

// SampleIndexHeader names the columns of the sample index
var SampleIndexHeader = []string{"split", "sample", ColGroupID, "forecastDepartureDate", "forecastDayOfWeek"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes the CSV artifacts of a run
type CSVWriter struct {
	logger *slog.Logger
}

func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions controls a WriteCSV call. Headers and the BOM are only
// written when the file is truncated, never when appending.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool
}

// WriteCSV writes records to filePath, creating parent directories
func (w *CSVWriter) WriteCSV(filePath string, opts WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", filePath, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	if !opts.Append && opts.BOMPrefix {
		if _, err := f.Write(utf8BOM); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(f)
	if !opts.Append && len(opts.Headers) > 0 {
		if err := cw.Write(opts.Headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.WriteAll(opts.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	w.logger.Debug("csv written",
		slog.String("file_path", filePath),
		slog.Int("records", len(opts.Records)),
		slog.Bool("append", opts.Append))
	return nil
}

// StreamWriter writes a CSV file one record at a time
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter truncates filePath and writes a UTF-8 BOM and the
// header
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", filePath, err)
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filePath, err)
	}
	if _, err := f.Write(utf8BOM); err != nil {
		f.Close()
		return nil, fmt.Errorf("write BOM: %w", err)
	}

	sw := &StreamWriter{file: f, writer: csv.NewWriter(f)}
	if len(headers) > 0 {
		if err := sw.writer.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	return sw, nil
}

func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes buffered records and closes the file
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	flushErr := s.writer.Error()
	closeErr := s.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// PaddedHeader returns the long-table header followed by the padding
// bookkeeping columns
func PaddedHeader(seasonality []string) []string {
	return append(ingest.Header(seasonality), ColIsReal, ColGroupID, ColGroupSize)
}

// WritePadded streams the padded table to filePath. The file reads back
// through the long-table reader.
func (w *CSVWriter) WritePadded(filePath string, rows []domain.LongRow, seasonality []string) error {
	sw, err := w.CreateStreamWriter(filePath, PaddedHeader(seasonality))
	if err != nil {
		return err
	}
	for i, r := range rows {
		if err := sw.WriteRecord(paddedRecord(r, seasonality)); err != nil {
			sw.Close()
			return fmt.Errorf("write padded row %d: %w", i, err)
		}
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filePath, err)
	}

	w.logger.Info("padded table written",
		slog.String("file_path", filePath),
		slog.Int("rows", len(rows)))
	return nil
}

// WriteSampleIndex writes one line per sample naming the group whose
// traffic is the sample's target. Bundles are written in order, the
// first one truncating the file.
func (w *CSVWriter) WriteSampleIndex(filePath string, bundles ...dataset.Bundle) error {
	for i, b := range bundles {
		records := make([][]string, len(b.Groups))
		for j, g := range b.Groups {
			records[j] = []string{
				b.Split,
				strconv.Itoa(j),
				strconv.Itoa(g.GroupID),
				formatDate(g.ForecastDepartureDate),
				strconv.Itoa(g.DayOfWeek),
			}
		}
		err := w.WriteCSV(filePath, WriteOptions{
			Headers:   SampleIndexHeader,
			Records:   records,
			Append:    i > 0,
			BOMPrefix: true,
		})
		if err != nil {
			return fmt.Errorf("write %s sample index: %w", b.Split, err)
		}
	}
	return nil
}

func paddedRecord(r domain.LongRow, seasonality []string) []string {
	out := make([]string, 0, len(seasonality)+44)
	out = append(out,
		formatDate(r.SnapshotDate),
		r.Origin,
		r.Destination,
		formatInt(int64(r.ForecastID)),
		formatDate(r.ForecastDepartureDate),
		formatDate(r.FlightDepartureDate),
		formatInt(int64(r.ForecastDayOfWeek)),
		r.PoolCode,
		r.CabinCode,
		string(r.LocalFlow),
		formatInt(int64(r.ForecastPeriod)),
	)
	for _, v := range []domain.FareVector{r.FracClosure, r.TrafficActual, r.TrafficActualAadv} {
		for _, f := range v {
			out = append(out, formatFloat(f))
		}
	}
	for _, name := range seasonality {
		out = append(out, formatFloat(r.Seasonality[name]))
	}
	return append(out,
		formatBool(r.IsReal),
		formatInt(int64(r.GroupID)),
		formatInt(int64(r.GroupSize)),
	)
}
