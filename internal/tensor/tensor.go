// Package tensor provides the in-memory tensor value passed between the
// codec, the executor and the model handle.
package tensor

import "math"

// Tensor is a dense row-major float32 tensor. The zero value is an empty
// tensor. Tensors are treated as immutable once handed to the executor.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, n)}
}

// FromSlice wraps a flat vector as a rank-1 tensor.
func FromSlice(data []float32) Tensor {
	return Tensor{Shape: []int{len(data)}, Data: data}
}

// Rank returns the number of dimensions.
func (t Tensor) Rank() int { return len(t.Shape) }

// Elems returns the product of the shape dimensions. An empty shape has one
// element by convention, matching a scalar.
func (t Tensor) Elems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Rows returns the batch size: 1 for rank-1 tensors, the leading dimension
// for rank-2 tensors.
func (t Tensor) Rows() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[0]
}

// LastDim returns the trailing dimension, or 0 for an empty shape.
func (t Tensor) LastDim() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[len(t.Shape)-1]
}

// Row returns the i-th row of a rank-1 or rank-2 tensor as a slice view.
func (t Tensor) Row(i int) []float32 {
	w := t.LastDim()
	return t.Data[i*w : (i+1)*w]
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	out := Tensor{Shape: append([]int(nil), t.Shape...), Data: make([]float32, len(t.Data))}
	copy(out.Data, t.Data)
	return out
}

// IsFinite reports whether every element is neither NaN nor infinite.
func (t Tensor) IsFinite() bool {
	for _, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
