package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// InputFormat is the on-disk format of a long table
type InputFormat string

const (
	FormatCSV  InputFormat = "csv"
	FormatXLSX InputFormat = "xlsx"
)

// FileValidator checks input and output locations before a run
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateInputPath accepts either a readable long-table file or a
// directory holding at least one of them
func (v *FileValidator) ValidateInputPath(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("input path %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("stat input path %s: %w", path, err)
	}

	if !info.IsDir() {
		if _, err := v.DetectFormat(path); err != nil {
			return err
		}
		return v.ValidateFile(path)
	}

	files, err := v.ListInputFiles(path)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("input directory %s contains no .csv or .xlsx files", path)
	}
	v.logger.Debug("input directory validated",
		slog.String("directory", path),
		slog.Int("files", len(files)))
	return nil
}

// ListInputFiles returns the long-table files of dir in lexical order,
// skipping subdirectories, other extensions and Excel lock files
func (v *FileValidator) ListInputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := v.DetectFormat(path); err != nil {
			v.logger.Debug("skipping file", slog.String("file", path), slog.String("reason", err.Error()))
			continue
		}
		files = append(files, path)
	}
	return files, nil
}

// DetectFormat derives the input format from the file extension
func (v *FileValidator) DetectFormat(path string) (InputFormat, error) {
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return "", fmt.Errorf("%s is an Excel lock file", path)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%s has unsupported extension %q", path, ext)
	}
}

// ValidateOutputDirectory creates dir when missing and proves it writable
// with a scratch file
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	scratch, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := scratch.Name()
	scratch.Close()
	if err := os.Remove(name); err != nil {
		v.logger.Warn("could not remove write check file", slog.String("file", name), slog.String("error", err.Error()))
	}
	return nil
}

// ValidateFile checks that path is a regular file that can be opened
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	f.Close()
	v.logger.Debug("input file validated", slog.String("file", path), slog.Int64("size", info.Size()))
	return nil
}
