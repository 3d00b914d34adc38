package inference

import (
	"bytes"
	"fmt"
	"os"
)

// Builder assembles a model graph. Methods return the id of the tensor they
// create so layers can be chained.
type Builder struct {
	file   File
	nextID int
	widths map[int]int
}

func NewBuilder(name string) *Builder {
	return &Builder{
		file:   File{Header: Header{Name: name}},
		nextID: 1,
		widths: make(map[int]int),
	}
}

func (b *Builder) add(def TensorDef) int {
	def.ID = b.nextID
	b.nextID++
	b.file.Header.Tensors = append(b.file.Header.Tensors, def)
	b.widths[def.ID] = def.Shape[len(def.Shape)-1]
	return def.ID
}

// Input declares a batched model input with width features.
func (b *Builder) Input(width int) int {
	id := b.add(TensorDef{Shape: []int{width}})
	b.file.Header.Inputs = append(b.file.Header.Inputs, id)
	return id
}

// Constant stores values, laid out row-major in shape.
func (b *Builder) Constant(shape []int, values []float32) int {
	ref := &DataRef{Offset: int64(len(b.file.Data)), Length: int64(len(values))}
	b.file.Data = append(b.file.Data, values...)
	return b.add(TensorDef{Shape: append([]int(nil), shape...), Data: ref})
}

// FullyConnected adds x*W^T + bias. weights is [out][in]; bias may be nil.
func (b *Builder) FullyConnected(x int, weights [][]float32, bias []float32, activation string) int {
	out := len(weights)
	in := b.widths[x]
	flat := make([]float32, 0, out*in)
	for _, row := range weights {
		flat = append(flat, row...)
	}
	sources := []int{x, b.Constant([]int{out, in}, flat)}
	if bias != nil {
		sources = append(sources, b.Constant([]int{out}, bias))
	}
	return b.add(TensorDef{
		Shape:       []int{out},
		Computation: &Computation{Type: OpFullyConnected, Sources: sources, Activation: activation},
	})
}

// AddBias adds the constant vector bias to every row of x.
func (b *Builder) AddBias(x, bias int) int {
	return b.add(TensorDef{
		Shape:       []int{b.widths[x]},
		Computation: &Computation{Type: OpBias, Sources: []int{x, bias}},
	})
}

func (b *Builder) L2Normalization(x int) int {
	return b.add(TensorDef{
		Shape:       []int{b.widths[x]},
		Computation: &Computation{Type: OpL2Normalization, Sources: []int{x}},
	})
}

// KNN adds a nearest-neighbour lookup over keys ([n][in]) returning the
// weighted targets ([n][out]) of the k nearest keys.
func (b *Builder) KNN(x int, keys, targets [][]float32, k int) int {
	n := len(keys)
	in := b.widths[x]
	out := 0
	if n > 0 {
		out = len(targets[0])
	}
	var flatKeys, flatTargets []float32
	for i := 0; i < n; i++ {
		flatKeys = append(flatKeys, keys[i]...)
		flatTargets = append(flatTargets, targets[i]...)
	}
	keyID := b.Constant([]int{n, in}, flatKeys)
	targetID := b.Constant([]int{n, out}, flatTargets)
	return b.add(TensorDef{
		Shape:       []int{out},
		Computation: &Computation{Type: OpKNN, Sources: []int{x, keyID, targetID}, Neighbours: k},
	})
}

func (b *Builder) Activation(x int, op OpType) int {
	return b.add(TensorDef{
		Shape:       []int{b.widths[x]},
		Computation: &Computation{Type: op, Sources: []int{x}},
	})
}

// Output marks id as a model output.
func (b *Builder) Output(id int) {
	b.file.Header.Outputs = append(b.file.Header.Outputs, id)
}

// Bytes encodes the model, checking it the same way a loader would.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.file.Encode(&buf); err != nil {
		return nil, err
	}
	if _, err := Decode(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("built model is invalid: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Builder) WriteFile(path string) error {
	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing model to %q: %w", path, err)
	}
	return nil
}
