// Package codec converts wire tensor payloads to model inputs and model
// outputs back to payloads. Everything here is pure and deterministic, safe
// from any goroutine without synchronization.
package codec

import (
	"fmt"
	"math"

	"trast/internal/model"
	"trast/internal/tensor"

	"trast/pkg/types"
)

// DTypeF32 is the only element type the wire format carries.
const DTypeF32 = "f32"

// Decode validates a wire payload against the model signature and returns
// the input tensor. Accepted shapes are [dim] and [n, dim].
func Decode(p types.TensorPayload, sig model.Signature) (tensor.Tensor, error) {
	if p.DType == "" || len(p.Shape) == 0 || p.Data == nil {
		return tensor.Tensor{}, errMalformed("payload needs dtype, shape and data")
	}
	if p.DType != DTypeF32 {
		return tensor.Tensor{}, errMalformed("unsupported dtype " + p.DType)
	}
	elems := 1
	for _, d := range p.Shape {
		if d <= 0 {
			return tensor.Tensor{}, errMalformed(fmt.Sprintf("non-positive dimension %d", d))
		}
		elems *= d
	}
	if elems != len(p.Data) {
		return tensor.Tensor{}, errMalformed(fmt.Sprintf("shape wants %d elements, data has %d", elems, len(p.Data)))
	}
	if len(p.Shape) > 2 {
		return tensor.Tensor{}, errSchemaMismatch(fmt.Sprintf("rank %d payload, model takes rank 1 or 2", len(p.Shape)))
	}
	if dim := p.Shape[len(p.Shape)-1]; dim != sig.InputDim {
		return tensor.Tensor{}, errSchemaMismatch(fmt.Sprintf("input dim %d, model expects %d", dim, sig.InputDim))
	}
	for i, v := range p.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return tensor.Tensor{}, errOutOfRange(fmt.Sprintf("non-finite value at index %d", i))
		}
	}
	t := tensor.Tensor{
		Shape: append([]int(nil), p.Shape...),
		Data:  append([]float32(nil), p.Data...),
	}
	return t, nil
}

// Encode turns a tensor into its wire payload. It is total: any tensor the
// model produces encodes without error.
func Encode(t tensor.Tensor) types.TensorPayload {
	return types.TensorPayload{
		DType: DTypeF32,
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}
