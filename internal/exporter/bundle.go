package exporter

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

// Manifest describes the tensor files of one export
type Manifest struct {
	Version      string          `json:"version"`
	TensorFormat string          `json:"tensor_format"`
	RunID        string          `json:"run_id"`
	CreatedAt    time.Time       `json:"created_at"`
	ByteOrder    string          `json:"byte_order"`
	DType        string          `json:"dtype"`
	Splits       []SplitManifest `json:"splits"`
}

// SplitManifest lists the tensors written for one split
type SplitManifest struct {
	Split   string           `json:"split"`
	Samples int              `json:"samples"`
	Tensors []TensorManifest `json:"tensors"`
}

// TensorManifest locates one tensor file and records its shape
type TensorManifest struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Shape []int  `json:"shape"`
}

// BundleWriter writes tensor bundles as raw little-endian float32 files
type BundleWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewBundleWriter creates a bundle writer rooted at paths.BundlesDir
func NewBundleWriter(paths *config.Paths, logger *slog.Logger) *BundleWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BundleWriter{paths: paths, logger: logger}
}

// WriteBundles writes every tensor of every bundle and then the manifest.
// File names in the manifest are relative to the bundles directory.
func (w *BundleWriter) WriteBundles(runID string, bundles ...dataset.Bundle) (*Manifest, error) {
	if err := os.MkdirAll(w.paths.BundlesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundles directory: %w", err)
	}

	m := &Manifest{
		Version:      contracts.Version,
		TensorFormat: contracts.TensorFormatVersion,
		RunID:        runID,
		CreatedAt:    time.Now().UTC(),
		ByteOrder:    "little",
		DType:        "float32",
	}

	for _, b := range bundles {
		sm := SplitManifest{Split: b.Split, Samples: b.Len()}
		names := b.Names()
		for i, t := range b.Tensors() {
			if t == nil {
				continue
			}
			path := w.paths.GetBundlePath(b.Split, names[i])
			if err := WriteTensor(path, t); err != nil {
				return nil, fmt.Errorf("write %s %s: %w", b.Split, names[i], err)
			}
			sm.Tensors = append(sm.Tensors, TensorManifest{
				Name:  names[i],
				File:  filepath.Base(path),
				Shape: append([]int(nil), t.Shape...),
			})
		}
		m.Splits = append(m.Splits, sm)

		w.logger.Info("bundle written",
			slog.String("split", b.Split),
			slog.Int("samples", sm.Samples),
			slog.Int("tensors", len(sm.Tensors)))
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(w.paths.ManifestFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return m, nil
}

// WriteTensor writes the data of t to path in row-major order
func WriteTensor(path string, t *tensor.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := binary.Write(bw, binary.LittleEndian, t.Data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return f.Close()
}

// ReadTensor reads a tensor file written by WriteTensor. The file must
// hold exactly the number of values the shape implies.
func ReadTensor(path string, shape []int) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	t := tensor.New(shape...)
	br := bufio.NewReader(f)
	if err := binary.Read(br, binary.LittleEndian, t.Data); err != nil {
		return nil, fmt.Errorf("failed to read %d values: %w", len(t.Data), err)
	}
	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%s holds more than %d values", path, len(t.Data))
	}
	return t, nil
}

// ReadManifest loads a manifest written by WriteBundles
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(f, 1<<20)).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// VerifyBundles reads the manifest back and checks that every tensor file
// it lists holds exactly the values its shape implies
func (w *BundleWriter) VerifyBundles(runID string) (*Manifest, error) {
	m, err := ReadManifest(w.paths.ManifestFile)
	if err != nil {
		return nil, err
	}
	if m.RunID != runID {
		return nil, fmt.Errorf("manifest belongs to run %q, want %q", m.RunID, runID)
	}

	files := 0
	for _, sm := range m.Splits {
		for _, tm := range sm.Tensors {
			t, err := ReadTensor(filepath.Join(w.paths.BundlesDir, tm.File), tm.Shape)
			if err != nil {
				return nil, fmt.Errorf("verify %s %s: %w", sm.Split, tm.Name, err)
			}
			if t.Len() != sm.Samples {
				return nil, fmt.Errorf("%s %s has %d samples, manifest says %d", sm.Split, tm.Name, t.Len(), sm.Samples)
			}
			files++
		}
	}

	w.logger.Debug("bundles verified",
		slog.String("manifest", w.paths.ManifestFile),
		slog.Int("files", files))
	return m, nil
}
