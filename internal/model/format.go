package model

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// TRSM artifact layout (little endian):
//
//	magic        [4]byte "TRSM"
//	version      uint32
//	idLen        uint16, id bytes (utf-8)
//	inputDim     uint32
//	outputDim    uint32
//	layerCount   uint32
//	per layer:
//	  inDim      uint32
//	  outDim     uint32
//	  activation uint8
//	  weights    float32 x outDim*inDim (row-major)
//	  bias       float32 x outDim
//
// layerCount zero means the identity model; inputDim must equal outputDim.

var artifactMagic = [4]byte{'T', 'R', 'S', 'M'}

// FormatVersion is the artifact format version this build reads and writes.
const FormatVersion uint32 = 1

// Dimension and id sanity bounds. Anything past these is a corrupt header,
// not a huge model.
const (
	maxDim   = 1 << 20
	maxLayer = 1 << 10
	maxIDLen = 1 << 10
)

// Activation selects the per-layer nonlinearity.
type Activation uint8

const (
	ActNone Activation = iota
	ActReLU
	ActTanh
	actEnd
)

// Layer is one dense layer of the artifact graph.
type Layer struct {
	InDim, OutDim int
	Activation    Activation
	// Weights holds OutDim*InDim values, row-major.
	Weights []float32
	Bias    []float32
}

// Artifact is the decoded model file, independent of any backend.
type Artifact struct {
	ID        string
	InputDim  int
	OutputDim int
	Layers    []Layer
}

// Identity returns an artifact computing the identity function over vectors
// of the given dimension.
func Identity(id string, dim int) Artifact {
	return Artifact{ID: id, InputDim: dim, OutputDim: dim}
}

// readArtifact decodes and validates an artifact stream. Validation is
// all-or-nothing: a partially valid file never yields a handle.
func readArtifact(r io.Reader) (Artifact, error) {
	var a Artifact
	var magic [4]byte
	if err := readFull(r, magic[:]); err != nil {
		return a, err
	}
	if magic != artifactMagic {
		return a, errCorrupt("bad magic, not a TRSM artifact")
	}
	var version uint32
	if err := readLE(r, &version); err != nil {
		return a, err
	}
	if version != FormatVersion {
		return a, errVersionMismatch(fmt.Sprintf("artifact format v%d, this build supports v%d", version, FormatVersion))
	}
	var idLen uint16
	if err := readLE(r, &idLen); err != nil {
		return a, err
	}
	if idLen == 0 || idLen > maxIDLen {
		return a, errCorrupt(fmt.Sprintf("model id length %d out of bounds", idLen))
	}
	id := make([]byte, idLen)
	if err := readFull(r, id); err != nil {
		return a, err
	}
	a.ID = string(id)

	var inDim, outDim, layers uint32
	if err := readLE(r, &inDim); err != nil {
		return a, err
	}
	if err := readLE(r, &outDim); err != nil {
		return a, err
	}
	if err := readLE(r, &layers); err != nil {
		return a, err
	}
	if inDim == 0 || inDim > maxDim || outDim == 0 || outDim > maxDim {
		return a, errCorrupt(fmt.Sprintf("signature %dx%d out of bounds", inDim, outDim))
	}
	if layers > maxLayer {
		return a, errCorrupt(fmt.Sprintf("layer count %d out of bounds", layers))
	}
	a.InputDim, a.OutputDim = int(inDim), int(outDim)

	prev := a.InputDim
	for i := 0; i < int(layers); i++ {
		l, err := readLayer(r)
		if err != nil {
			return a, err
		}
		if l.InDim != prev {
			return a, errCorrupt(fmt.Sprintf("layer %d input dim %d does not chain from %d", i, l.InDim, prev))
		}
		prev = l.OutDim
		a.Layers = append(a.Layers, l)
	}
	if prev != a.OutputDim {
		return a, errCorrupt(fmt.Sprintf("graph output dim %d does not match declared %d", prev, a.OutputDim))
	}
	if len(a.Layers) == 0 && a.InputDim != a.OutputDim {
		return a, errCorrupt("identity artifact with mismatched input/output dims")
	}
	// Trailing garbage means a truncated write or the wrong file.
	var trailer [1]byte
	if n, _ := r.Read(trailer[:]); n != 0 {
		return a, errCorrupt("trailing bytes after graph")
	}
	return a, nil
}

func readLayer(r io.Reader) (Layer, error) {
	var l Layer
	var inDim, outDim uint32
	var act uint8
	if err := readLE(r, &inDim); err != nil {
		return l, err
	}
	if err := readLE(r, &outDim); err != nil {
		return l, err
	}
	if err := readLE(r, &act); err != nil {
		return l, err
	}
	if inDim == 0 || inDim > maxDim || outDim == 0 || outDim > maxDim {
		return l, errCorrupt(fmt.Sprintf("layer dims %dx%d out of bounds", inDim, outDim))
	}
	if Activation(act) >= actEnd {
		return l, errCorrupt(fmt.Sprintf("unknown activation %d", act))
	}
	l.InDim, l.OutDim, l.Activation = int(inDim), int(outDim), Activation(act)
	l.Weights = make([]float32, l.OutDim*l.InDim)
	if err := readLE(r, &l.Weights); err != nil {
		return l, err
	}
	l.Bias = make([]float32, l.OutDim)
	if err := readLE(r, &l.Bias); err != nil {
		return l, err
	}
	if !finite(l.Weights) || !finite(l.Bias) {
		return l, errCorrupt("non-finite weight in artifact")
	}
	return l, nil
}

// WriteArtifact encodes an artifact in TRSM format. It is used by the check
// tooling and by tests to produce fixtures.
func WriteArtifact(w io.Writer, a Artifact) error {
	if a.ID == "" || len(a.ID) > maxIDLen {
		return fmt.Errorf("invalid model id %q", a.ID)
	}
	if _, err := w.Write(artifactMagic[:]); err != nil {
		return err
	}
	if err := writeLE(w, FormatVersion); err != nil {
		return err
	}
	if err := writeLE(w, uint16(len(a.ID))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, a.ID); err != nil {
		return err
	}
	for _, v := range []uint32{uint32(a.InputDim), uint32(a.OutputDim), uint32(len(a.Layers))} {
		if err := writeLE(w, v); err != nil {
			return err
		}
	}
	for _, l := range a.Layers {
		if len(l.Weights) != l.OutDim*l.InDim || len(l.Bias) != l.OutDim {
			return fmt.Errorf("layer %dx%d has inconsistent weight/bias lengths", l.InDim, l.OutDim)
		}
		if err := writeLE(w, uint32(l.InDim)); err != nil {
			return err
		}
		if err := writeLE(w, uint32(l.OutDim)); err != nil {
			return err
		}
		if err := writeLE(w, uint8(l.Activation)); err != nil {
			return err
		}
		if err := writeLE(w, l.Weights); err != nil {
			return err
		}
		if err := writeLE(w, l.Bias); err != nil {
			return err
		}
	}
	return nil
}

func finite(vs []float32) bool {
	for _, v := range vs {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// readFull reads exactly len(b) bytes; anything short is a corrupt artifact.
func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errCorrupt("truncated artifact")
		}
		return errIOFailure("read artifact", err)
	}
	return nil
}

func readLE(r io.Reader, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errCorrupt("truncated artifact")
		}
		return errIOFailure("read artifact", err)
	}
	return nil
}

func writeLE(w io.Writer, v any) error {
	return binary.Write(w, binary.LittleEndian, v)
}
