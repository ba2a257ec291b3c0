// Package ingest reads long booking tables and period maps from CSV and
// Excel files.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	pipelineerrors "github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/errors"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/infrastructure"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/validation"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts/domain"
)

const stage = "ingest"

// DefaultConcurrency bounds the number of files LoadDir reads at once
const DefaultConcurrency = 4

// Reader reads long tables into validated rows
type Reader struct {
	seasonality []string
	concurrency int
	files       *validation.FileValidator
	validator   *validation.StructValidator
	metrics     *infrastructure.PipelineMetrics
	logger      *slog.Logger
}

// Option configures a Reader
type Option func(*Reader)

// WithConcurrency sets how many files LoadDir reads in parallel
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the reader's logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records ingested row counts on m
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(r *Reader) {
		r.metrics = m
	}
}

// NewReader creates a reader that extracts the named seasonality columns
func NewReader(seasonality []string, opts ...Option) *Reader {
	r := &Reader{
		seasonality: append([]string(nil), seasonality...),
		concurrency: DefaultConcurrency,
		validator:   validation.NewStructValidator(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.files = validation.NewFileValidator(r.logger)
	return r
}

// Load reads path, which is either one long-table file or a directory of
// them
func (r *Reader) Load(ctx context.Context, path string) ([]domain.LongRow, error) {
	if err := r.files.ValidateInputPath(path); err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, "invalid input path", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat input path: %w", err)
	}
	if info.IsDir() {
		return r.LoadDir(ctx, path)
	}
	return r.ReadFile(ctx, path)
}

// LoadDir reads every long table in dir concurrently and concatenates the
// rows in file name order
func (r *Reader) LoadDir(ctx context.Context, dir string) ([]domain.LongRow, error) {
	files, err := r.files.ListInputFiles(dir)
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, "list input directory", err)
	}
	if len(files) == 0 {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("no long tables in %s", dir), nil)
	}

	results := make([][]domain.LongRow, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, file := range files {
		g.Go(func() error {
			rows, err := r.ReadFile(ctx, file)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.LongRow
	for _, rows := range results {
		out = append(out, rows...)
	}
	r.logger.InfoContext(ctx, "loaded input directory",
		"directory", dir,
		"files", len(files),
		"rows", len(out))
	return out, nil
}

// ReadFile reads one CSV or XLSX long table
func (r *Reader) ReadFile(ctx context.Context, path string) ([]domain.LongRow, error) {
	format, err := r.files.DetectFormat(path)
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, "unsupported input file", err)
	}

	var records [][]string
	switch format {
	case validation.FormatCSV:
		records, err = readCSVRecords(path)
	case validation.FormatXLSX:
		records, err = readXLSXRecords(path)
	}
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("read %s", path), err)
	}

	rows, err := r.parse(ctx, path, records)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordIngest(ctx, string(format), len(rows))
	r.logger.DebugContext(ctx, "read long table",
		"file", path,
		"format", string(format),
		"rows", len(rows))
	return rows, nil
}

// ReadCSV parses a CSV long table from src; name labels errors
func (r *Reader) ReadCSV(ctx context.Context, name string, src io.Reader) ([]domain.LongRow, error) {
	records, err := csvRecords(src)
	if err != nil {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("read %s", name), err)
	}
	return r.parse(ctx, name, records)
}

// parse converts header + data records into validated rows. Blank lines
// are skipped; line numbers in errors are 1-based and count the header.
func (r *Reader) parse(ctx context.Context, name string, records [][]string) ([]domain.LongRow, error) {
	if len(records) == 0 {
		return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("%s has no header", name), nil)
	}
	h := newHeader(records[0])
	want := append(Header(nil), r.seasonality...)
	if missing := h.missing(want); len(missing) > 0 {
		return nil, pipelineerrors.NewInvalidInput(stage,
			fmt.Sprintf("%s is missing columns: %s", name, strings.Join(missing, ", ")), nil)
	}

	rows := make([]domain.LongRow, 0, len(records)-1)
	for i, cells := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blank(cells) {
			continue
		}
		line := i + 2
		row, err := record{h: h, cells: cells}.row(r.seasonality)
		if err != nil {
			return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("%s line %d", name, line), err).
				WithContext("file", name).
				WithContext("line", line)
		}
		if err := r.validator.Struct(row); err != nil {
			return nil, pipelineerrors.NewInvalidInput(stage, fmt.Sprintf("%s line %d", name, line), err).
				WithContext("file", name).
				WithContext("line", line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSVRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csvRecords(f)
}

func csvRecords(src io.Reader) ([][]string, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}

// readXLSXRecords reads the first sheet of a workbook with raw cell values,
// so dates arrive as Excel serials rather than display strings
func readXLSXRecords(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
