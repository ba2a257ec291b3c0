package exporter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/config"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/dataset"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/pkg/contracts"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	p, err := config.PathsConfig{
		Input:     "in",
		PeriodMap: "periods.csv",
		OutputDir: "out",
	}.Resolve(t.TempDir())
	require.NoError(t, err)
	return p
}

func ramp(shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = float32(i) / 4
	}
	return t
}

func smallBundle(split string, n int) dataset.Bundle {
	return dataset.Bundle{
		Split:       split,
		Closure:     ramp(n, 2, 7, 10),
		Seasonality: ramp(n, 1),
		History:     ramp(n, 3, 2, 7, 10),
		Target:      ramp(n, 2, 7, 10),
	}
}

func TestTensorRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		shape []int
	}{
		{"four axes", []int{3, 2, 7, 10}},
		{"matrix", []int{5, 1}},
		{"empty sample axis", []int{0, 2, 7, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := ramp(tt.shape...)
			path := filepath.Join(dir, tt.name+".bin")
			require.NoError(t, WriteTensor(path, want))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, int64(4*len(want.Data)), info.Size())

			got, err := ReadTensor(path, tt.shape)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReadTensorSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bin")
	require.NoError(t, WriteTensor(path, ramp(2, 3)))

	_, err := ReadTensor(path, []int{3, 3})
	assert.Error(t, err)

	_, err = ReadTensor(path, []int{1, 3})
	assert.ErrorContains(t, err, "holds more than 3 values")

	_, err = ReadTensor(filepath.Join(t.TempDir(), "absent.bin"), []int{1})
	assert.Error(t, err)
}

func TestLittleEndianLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.bin")
	require.NoError(t, WriteTensor(path, tensor.Filled(1, 1)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// float32(1) is 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, data)
}

func TestWriteBundles(t *testing.T) {
	paths := testPaths(t)
	w := NewBundleWriter(paths, nil)

	train := smallBundle(dataset.SplitTrain, 4)
	test := smallBundle(dataset.SplitTest, 2)
	test.Seasonality = nil

	m, err := w.WriteBundles("run-1", train, test)
	require.NoError(t, err)

	assert.Equal(t, contracts.Version, m.Version)
	assert.Equal(t, contracts.TensorFormatVersion, m.TensorFormat)
	assert.Equal(t, "run-1", m.RunID)
	require.Len(t, m.Splits, 2)
	assert.Equal(t, 4, m.Splits[0].Samples)
	assert.Len(t, m.Splits[0].Tensors, 4)
	assert.Len(t, m.Splits[1].Tensors, 3, "nil tensors are skipped")

	hist := m.Splits[0].Tensors[2]
	assert.Equal(t, "history", hist.Name)
	assert.Equal(t, "train_history.bin", hist.File)
	assert.Equal(t, []int{4, 3, 2, 7, 10}, hist.Shape)

	t.Run("manifest reads back", func(t *testing.T) {
		got, err := ReadManifest(paths.ManifestFile)
		require.NoError(t, err)
		assert.Equal(t, m.Splits, got.Splits)
		assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("tensors read back from the manifest", func(t *testing.T) {
		for _, tm := range m.Splits[0].Tensors {
			got, err := ReadTensor(filepath.Join(paths.BundlesDir, tm.File), tm.Shape)
			require.NoError(t, err)
			assert.Equal(t, tm.Shape, got.Shape)
		}
		got, err := ReadTensor(paths.GetBundlePath(dataset.SplitTrain, "target"), train.Target.Shape)
		require.NoError(t, err)
		assert.Equal(t, train.Target, got)
	})
}

func TestVerifyBundles(t *testing.T) {
	tests := []struct {
		name    string
		runID   string
		corrupt func(t *testing.T, paths *config.Paths)
		wantErr string
	}{
		{name: "intact", runID: "run-1"},
		{name: "other run", runID: "run-2", wantErr: `manifest belongs to run "run-1"`},
		{
			name:  "truncated tensor",
			runID: "run-1",
			corrupt: func(t *testing.T, paths *config.Paths) {
				path := paths.GetBundlePath(dataset.SplitTrain, "target")
				require.NoError(t, os.Truncate(path, 8))
			},
			wantErr: "verify train target",
		},
		{
			name:  "missing manifest",
			runID: "run-1",
			corrupt: func(t *testing.T, paths *config.Paths) {
				require.NoError(t, os.Remove(paths.ManifestFile))
			},
			wantErr: "failed to open manifest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := testPaths(t)
			w := NewBundleWriter(paths, nil)
			_, err := w.WriteBundles("run-1", smallBundle(dataset.SplitTrain, 4), smallBundle(dataset.SplitTest, 2))
			require.NoError(t, err)
			if tt.corrupt != nil {
				tt.corrupt(t, paths)
			}

			m, err := w.VerifyBundles(tt.runID)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, m.Splits, 2)
			assert.Equal(t, 2, m.Splits[1].Samples)
		})
	}
}
