// Package model owns the loaded model artifact: one handle per process,
// created at startup and immutable until shutdown.
package model

import (
	"bufio"
	"fmt"
	"os"

	"trast/internal/tensor"
)

// Signature is the model's declared input/output contract.
type Signature struct {
	InputDim  int
	OutputDim int
}

// Handle wraps the loaded artifact and its compute backend. All fields are
// set at Load and never mutated, so reads need no synchronization.
type Handle struct {
	artifact Artifact
	version  uint32
	backend  Backend
}

// Load reads, validates and binds a model artifact. It is called exactly
// once at startup; every failure is fatal to the process.
func Load(path string, dev DeviceConfig) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errIOFailure("open artifact "+path, err)
	}
	defer f.Close()
	a, err := readArtifact(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	b, err := newBackend(dev)
	if err != nil {
		return nil, err
	}
	return &Handle{artifact: a, version: FormatVersion, backend: b}, nil
}

// ID returns the model identifier from the artifact header.
func (h *Handle) ID() string { return h.artifact.ID }

// FormatVersion returns the artifact format version that was loaded.
func (h *Handle) FormatVersion() uint32 { return h.version }

// Device returns the backend descriptor.
func (h *Handle) Device() string { return h.backend.Device() }

// ParallelSafe reports whether Infer may be called concurrently. False means
// the executor must serialize compute.
func (h *Handle) ParallelSafe() bool { return h.backend.ParallelSafe() }

// Signature returns the declared input/output dimensions.
func (h *Handle) Signature() Signature {
	return Signature{InputDim: h.artifact.InputDim, OutputDim: h.artifact.OutputDim}
}

// Infer runs one input (rank-1 [dim]) or batch (rank-2 [n, dim]) through the
// model. It mutates no shared state. NaN/Inf in the output is reported as an
// error, never returned silently.
func (h *Handle) Infer(in tensor.Tensor) (tensor.Tensor, error) {
	if err := h.checkShape(in); err != nil {
		return tensor.Tensor{}, err
	}
	out, err := h.backend.Forward(&h.artifact, in)
	if err != nil {
		return tensor.Tensor{}, err
	}
	if !out.IsFinite() {
		return tensor.Tensor{}, errNumericOverflow("non-finite value in model output")
	}
	return out, nil
}

func (h *Handle) checkShape(in tensor.Tensor) error {
	switch in.Rank() {
	case 1, 2:
		if in.LastDim() != h.artifact.InputDim {
			return errShapeMismatch(fmt.Sprintf("input dim %d, model expects %d", in.LastDim(), h.artifact.InputDim))
		}
		if in.Elems() != len(in.Data) {
			return errShapeMismatch("shape does not match element count")
		}
		if in.Elems() == 0 {
			return errShapeMismatch("empty input")
		}
		return nil
	default:
		return errShapeMismatch(fmt.Sprintf("rank %d input, model expects rank 1 or 2", in.Rank()))
	}
}

// Close releases the backend. Called only at process shutdown, after the
// executor has drained.
func (h *Handle) Close() error { return h.backend.Close() }
