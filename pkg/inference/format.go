package inference

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// A .vpunn file is laid out as
//
//	magic "VPUN" | format version (uint32 LE) | header length (uint64 LE) | JSON header | float32 LE data
//
// Constant tensors reference a slice of the data section by element offset.
const (
	fileMagic     = "VPUN"
	FormatVersion = 1

	preambleSize = 4 + 4 + 8
	// maxHeaderSize guards against allocating for corrupt header lengths.
	maxHeaderSize = 64 << 20
	// maxTensorVolume bounds the elements of one row of an activation and of
	// any tensor shape.
	maxTensorVolume = 1 << 24
)

var ErrNotModel = errors.New("not a VPUNN model")

// OpType names a layer kernel.
type OpType string

const (
	OpFullyConnected  OpType = "fully_connected"
	OpBias            OpType = "bias"
	OpL2Normalization OpType = "l2_normalization"
	OpKNN             OpType = "knn"
	OpRelu            OpType = "relu"
	OpSigmoid         OpType = "sigmoid"
)

// Computation describes how a tensor is derived from other tensors.
type Computation struct {
	Type    OpType `json:"type"`
	Sources []int  `json:"sources"`
	// Activation is applied to the result of a fully connected layer ("", "relu" or "sigmoid").
	Activation string `json:"activation,omitempty"`
	// Neighbours is the k of a kNN layer.
	Neighbours int `json:"neighbours,omitempty"`
}

// DataRef locates the values of a constant tensor in the data section.
type DataRef struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// TensorDef is one node of the model graph. A tensor is exactly one of:
// a constant (Data set), a computed value (Computation set), or a model input.
// Constants carry their full shape; every other tensor's shape is its row
// width and gets the batch dimension at allocation.
type TensorDef struct {
	ID          int          `json:"id"`
	Shape       []int        `json:"shape"`
	Data        *DataRef     `json:"data,omitempty"`
	Computation *Computation `json:"computation,omitempty"`
}

func (t *TensorDef) IsConstant() bool { return t.Data != nil }
func (t *TensorDef) IsInput() bool    { return t.Data == nil && t.Computation == nil }

// Header is the JSON part of a model file.
type Header struct {
	Name    string      `json:"name"`
	Inputs  []int       `json:"inputs"`
	Outputs []int       `json:"outputs"`
	Tensors []TensorDef `json:"tensors"`
}

// File is a decoded model.
type File struct {
	Header Header
	Data   []float32
}

// Decode parses and structurally checks a model file.
func Decode(data []byte) (*File, error) {
	if len(data) < preambleSize || string(data[:4]) != fileMagic {
		return nil, ErrNotModel
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version %d", version)
	}
	headerLen := binary.LittleEndian.Uint64(data[8:16])
	if headerLen > maxHeaderSize || headerLen > uint64(len(data)-preambleSize) {
		return nil, fmt.Errorf("header length %d exceeds file size %d", headerLen, len(data))
	}

	f := &File{}
	headerEnd := preambleSize + int(headerLen)
	if err := json.Unmarshal(data[preambleSize:headerEnd], &f.Header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}

	raw := data[headerEnd:]
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("data section length %d is not a multiple of 4", len(raw))
	}
	f.Data = make([]float32, len(raw)/4)
	for i := range f.Data {
		f.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) validate() error {
	byID := make(map[int]*TensorDef, len(f.Header.Tensors))
	for i := range f.Header.Tensors {
		t := &f.Header.Tensors[i]
		if _, found := byID[t.ID]; found {
			return fmt.Errorf("tensor %d defined more than once", t.ID)
		}
		byID[t.ID] = t

		if len(t.Shape) == 0 {
			return fmt.Errorf("tensor %d has no shape", t.ID)
		}
		volume := int64(1)
		for _, d := range t.Shape {
			if d <= 0 {
				return fmt.Errorf("tensor %d has non-positive dimension in %v", t.ID, t.Shape)
			}
			if int64(d) > maxTensorVolume/volume {
				return fmt.Errorf("tensor %d shape %v exceeds %d elements", t.ID, t.Shape, maxTensorVolume)
			}
			volume *= int64(d)
		}

		if t.Data != nil && t.Computation != nil {
			return fmt.Errorf("tensor %d is both constant and computed", t.ID)
		}
		if t.Data != nil {
			n := int64(len(f.Data))
			if t.Data.Offset < 0 || t.Data.Length != volume || t.Data.Offset > n || t.Data.Length > n-t.Data.Offset {
				return fmt.Errorf("tensor %d data %+v does not fit shape %v in %d values", t.ID, *t.Data, t.Shape, len(f.Data))
			}
		}
	}

	for _, t := range f.Header.Tensors {
		if t.Computation == nil {
			continue
		}
		for _, src := range t.Computation.Sources {
			if _, found := byID[src]; !found {
				return fmt.Errorf("tensor %d depends on unknown tensor %d", t.ID, src)
			}
		}
	}

	if len(f.Header.Inputs) == 0 || len(f.Header.Outputs) == 0 {
		return fmt.Errorf("model must declare inputs and outputs")
	}
	for _, id := range f.Header.Inputs {
		t, found := byID[id]
		if !found {
			return fmt.Errorf("input tensor %d not found", id)
		}
		if !t.IsInput() {
			return fmt.Errorf("input tensor %d is not a plain input", id)
		}
	}
	// Outputs are read back with one row per descriptor, so they must be computed.
	for _, id := range f.Header.Outputs {
		t, found := byID[id]
		if !found {
			return fmt.Errorf("output tensor %d not found", id)
		}
		if t.Computation == nil {
			return fmt.Errorf("output tensor %d is not computed", id)
		}
	}
	return nil
}

// Values returns the constant data of t.
func (f *File) Values(t *TensorDef) []float32 {
	if t.Data == nil {
		return nil
	}
	return f.Data[t.Data.Offset : t.Data.Offset+t.Data.Length]
}

// Encode writes f in the .vpunn layout.
func (f *File) Encode(w io.Writer) error {
	header, err := json.Marshal(f.Header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(preambleSize + len(header) + 4*len(f.Data))
	buf.WriteString(fileMagic)
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], FormatVersion)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(header)))
	buf.Write(scratch[:])
	buf.Write(header)
	for _, v := range f.Data {
		binary.LittleEndian.PutUint32(scratch[:4], math.Float32bits(v))
		buf.Write(scratch[:4])
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}
