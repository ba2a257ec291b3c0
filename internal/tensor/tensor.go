// Package tensor holds dense float32 arrays and the conversion of padded
// long tables into per-group tensors.
package tensor

import (
	"fmt"
	"slices"
)

// Tensor is a dense row-major float32 array. Axis 0 is the sample axis.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zero tensor of the given shape
func New(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, volume(shape))}
}

// Filled allocates a tensor of the given shape with every element set to v
func Filled(v float32, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Len returns the size of the sample axis
func (t *Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// SampleSize returns the number of elements in one sample
func (t *Tensor) SampleSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return volume(t.Shape[1:])
}

// Sample returns a view of sample i. Writes go through to t.
func (t *Tensor) Sample(i int) []float32 {
	size := t.SampleSize()
	return t.Data[i*size : (i+1)*size]
}

// Offset returns the flat index of a full multi-dimensional index
func (t *Tensor) Offset(idx ...int) int {
	off := 0
	for axis, i := range idx {
		off = off*t.Shape[axis] + i
	}
	return off
}

// At returns the element at idx
func (t *Tensor) At(idx ...int) float32 {
	return t.Data[t.Offset(idx...)]
}

// Clone returns a deep copy
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// Slice copies samples [from, to) into a new tensor
func (t *Tensor) Slice(from, to int) *Tensor {
	size := t.SampleSize()
	shape := slices.Clone(t.Shape)
	shape[0] = to - from
	return &Tensor{Shape: shape, Data: slices.Clone(t.Data[from*size : to*size])}
}

// Select copies the listed samples, in order, into a new tensor
func (t *Tensor) Select(indices []int) *Tensor {
	shape := slices.Clone(t.Shape)
	shape[0] = len(indices)
	out := New(shape...)
	size := t.SampleSize()
	for j, i := range indices {
		copy(out.Data[j*size:(j+1)*size], t.Sample(i))
	}
	return out
}

// Reshape returns a tensor sharing t's data under a new shape
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if volume(shape) != len(t.Data) {
		return nil, fmt.Errorf("reshape %v to %v: element count %d does not match", t.Shape, shape, len(t.Data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: t.Data}, nil
}

// Concat joins tensors along the sample axis. Trailing shapes must agree.
func Concat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat: no tensors")
	}
	inner := ts[0].Shape[1:]
	n := 0
	for i, t := range ts {
		if !slices.Equal(t.Shape[1:], inner) {
			return nil, fmt.Errorf("concat: tensor %d has shape %v, want [_ %v]", i, t.Shape, inner)
		}
		n += t.Len()
	}
	shape := append([]int{n}, inner...)
	out := &Tensor{Shape: shape, Data: make([]float32, 0, volume(shape))}
	for _, t := range ts {
		out.Data = append(out.Data, t.Data...)
	}
	return out, nil
}

// Count returns how many elements equal v
func (t *Tensor) Count(v float32) int {
	n := 0
	for _, x := range t.Data {
		if x == v {
			n++
		}
	}
	return n
}
