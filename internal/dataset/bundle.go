package dataset

import (
	"github.com/sina-ehsani-aa/Kronos-Sina-personal/internal/tensor"
)

// Split names
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// Bundle holds the four aligned tensors of one split. Axis 0 is the
// sample axis of every tensor.
type Bundle struct {
	Split       string
	Closure     *tensor.Tensor
	Seasonality *tensor.Tensor
	History     *tensor.Tensor
	Target      *tensor.Tensor
	// Groups identifies the target group of each sample
	Groups []tensor.GroupMeta
}

// Len returns the number of samples
func (b Bundle) Len() int {
	if b.Target == nil {
		return 0
	}
	return b.Target.Len()
}

// Tensors returns the bundle in model input order: closure, seasonality,
// traffic history, traffic target
func (b Bundle) Tensors() []*tensor.Tensor {
	return []*tensor.Tensor{b.Closure, b.Seasonality, b.History, b.Target}
}

// Names returns the names matching Tensors
func (b Bundle) Names() []string {
	return []string{"closure", "seasonality", "history", "target"}
}

// Slice copies samples [from, to) into a new bundle named split
func (b Bundle) Slice(split string, from, to int) Bundle {
	return Bundle{
		Split:       split,
		Closure:     b.Closure.Slice(from, to),
		Seasonality: b.Seasonality.Slice(from, to),
		History:     b.History.Slice(from, to),
		Target:      b.Target.Slice(from, to),
		Groups:      append([]tensor.GroupMeta(nil), b.Groups[from:to]...),
	}
}
