package model

import (
	"fmt"
	"math"

	"trast/internal/tensor"
)

// Backend executes the artifact graph. Implementations report once, at
// construction, whether Forward may be called concurrently; the executor
// consults that flag instead of rediscovering it per call.
type Backend interface {
	// Forward runs one input (or batch) through the graph.
	Forward(a *Artifact, in tensor.Tensor) (tensor.Tensor, error)
	// ParallelSafe reports whether concurrent Forward calls are allowed.
	ParallelSafe() bool
	// Device returns the backend descriptor, e.g. "cpu".
	Device() string
	Close() error
}

// DeviceConfig selects and tunes the compute backend.
type DeviceConfig struct {
	// Device descriptor. Only "cpu" is implemented.
	Device string
	// Parallel marks the backend as safe for concurrent inference calls.
	// Defaults to false: serialized execution unless validated otherwise.
	Parallel bool
}

// newBackend builds the backend for a device config.
func newBackend(dev DeviceConfig) (Backend, error) {
	switch dev.Device {
	case "", "cpu":
		return &cpuBackend{parallel: dev.Parallel}, nil
	default:
		return nil, errIOFailure("unsupported device: "+dev.Device, nil)
	}
}

// cpuBackend evaluates dense layers in pure Go. Forward touches no shared
// state, so the parallel flag is purely a caller promise pass-through.
type cpuBackend struct {
	parallel bool
}

func (b *cpuBackend) ParallelSafe() bool { return b.parallel }

func (b *cpuBackend) Device() string { return "cpu" }

func (b *cpuBackend) Close() error { return nil }

func (b *cpuBackend) Forward(a *Artifact, in tensor.Tensor) (tensor.Tensor, error) {
	rows := in.Rows()
	if len(a.Layers) == 0 {
		out := in.Clone()
		return out, nil
	}
	out := tensor.New(rows, a.OutputDim)
	if in.Rank() == 1 {
		out = tensor.New(a.OutputDim)
	}
	for r := 0; r < rows; r++ {
		x := append([]float32(nil), in.Row(r)...)
		for _, l := range a.Layers {
			if len(x) != l.InDim {
				return tensor.Tensor{}, ErrBackendFailure(fmt.Sprintf("layer expects %d inputs, got %d", l.InDim, len(x)))
			}
			y := make([]float32, l.OutDim)
			for o := 0; o < l.OutDim; o++ {
				w := l.Weights[o*l.InDim : (o+1)*l.InDim]
				acc := l.Bias[o]
				for i, xi := range x {
					acc += w[i] * xi
				}
				y[o] = activate(l.Activation, acc)
			}
			x = y
		}
		copy(out.Row(r), x)
	}
	return out, nil
}

func activate(a Activation, v float32) float32 {
	switch a {
	case ActReLU:
		if v < 0 {
			return 0
		}
		return v
	case ActTanh:
		return float32(math.Tanh(float64(v)))
	default:
		return v
	}
}
