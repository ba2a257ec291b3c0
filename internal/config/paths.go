package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/validation"
)

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// Input is a long-table file or a directory of them
	Input     string `yaml:"input" envconfig:"INPUT" validate:"required"`
	PeriodMap string `yaml:"period_map" envconfig:"PERIOD_MAP" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
}

// Paths contains every path a run reads or writes, all absolute
type Paths struct {
	Input     string
	PeriodMap string
	OutputDir string

	// Output layout
	BundlesDir   string
	ManifestFile string
	SamplesCSV   string
	PaddedCSV    string
	SummaryJSON  string
	SummaryXLSX  string
}

// Resolve makes the configured paths absolute against baseDir and derives
// the output layout
func (c PathsConfig) Resolve(baseDir string) (*Paths, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}

	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	out := abs(c.OutputDir)
	bundles := filepath.Join(out, "bundles")
	return &Paths{
		Input:        abs(c.Input),
		PeriodMap:    abs(c.PeriodMap),
		OutputDir:    out,
		BundlesDir:   bundles,
		ManifestFile: filepath.Join(bundles, "manifest.json"),
		SamplesCSV:   filepath.Join(bundles, "samples.csv"),
		PaddedCSV:    filepath.Join(out, "padded.csv"),
		SummaryJSON:  filepath.Join(out, "summary.json"),
		SummaryXLSX:  filepath.Join(out, "summary.xlsx"),
	}, nil
}

// EnsureDirectories creates the output directories
func (p *Paths) EnsureDirectories() error {
	files := validation.NewFileValidator(nil)
	for _, dir := range []string{p.OutputDir, p.BundlesDir} {
		if err := files.ValidateOutputDirectory(dir); err != nil {
			return err
		}
	}
	return nil
}

// GetBundlePath returns the file of one tensor of one split
func (p *Paths) GetBundlePath(split, name string) string {
	return filepath.Join(p.BundlesDir, fmt.Sprintf("%s_%s.bin", split, name))
}

// LogPathResolution logs the resolved paths at debug level
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Debug("resolved paths",
		slog.String("input", p.Input),
		slog.String("period_map", p.PeriodMap),
		slog.String("output_dir", p.OutputDir),
		slog.String("bundles_dir", p.BundlesDir))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
