package inference

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// Model is a loaded cost-model network. Loading never fails outright: a
// model that could not be read or checked reports Initialized() == false
// and refuses to predict.
type Model struct {
	name        string
	initialized bool

	file    *File
	tensors map[TensorID]*tensor
	order   []TensorID

	batch  int
	inputs []TensorID
	output []TensorID
}

// Load reads a model from path.
func Load(path string) *Model {
	data, err := os.ReadFile(path)
	if err != nil {
		klog.Warningf("cannot read model %q: %v", path, err)
		return &Model{}
	}
	m := LoadBytes(data)
	if !m.initialized {
		klog.Warningf("model %q is not a valid VPUNN model", path)
	}
	return m
}

// LoadBytes decodes a model held in memory. The bytes are not retained.
func LoadBytes(data []byte) *Model {
	f, err := Decode(data)
	if err != nil {
		klog.V(2).Infof("decoding model: %v", err)
		return &Model{}
	}
	m, err := newModel(f)
	if err != nil {
		klog.V(2).Infof("building model graph: %v", err)
		return &Model{}
	}
	return m
}

func newModel(f *File) (*Model, error) {
	m := &Model{
		name:    f.Header.Name,
		file:    f,
		tensors: make(map[TensorID]*tensor, len(f.Header.Tensors)),
	}
	for i := range f.Header.Tensors {
		def := &f.Header.Tensors[i]
		m.tensors[TensorID(def.ID)] = newTensor(def)
	}
	for _, id := range f.Header.Inputs {
		m.inputs = append(m.inputs, TensorID(id))
	}
	for _, id := range f.Header.Outputs {
		m.output = append(m.output, TensorID(id))
	}

	order, err := BuildDAG(m, m.output)
	if err != nil {
		return nil, err
	}
	m.order = order

	for _, id := range m.order {
		if err := m.checkShapes(m.tensors[id]); err != nil {
			return nil, err
		}
	}

	m.initialized = true
	return m, nil
}

func (m *Model) AllTensors() map[TensorID]node {
	tensors := make(map[TensorID]node, len(m.tensors))
	for id, t := range m.tensors {
		tensors[id] = t
	}
	return tensors
}

func (m *Model) Initialized() bool { return m.initialized }

// Name is the raw model name, which carries the descriptor interface versions.
func (m *Model) Name() string { return m.name }

// InputWidth is the number of features per row of the first input.
func (m *Model) InputWidth() int {
	if !m.initialized {
		return 0
	}
	return m.tensors[m.inputs[0]].width()
}

// OutputWidth is the number of values per row of the first output.
func (m *Model) OutputWidth() int {
	if !m.initialized {
		return 0
	}
	return m.tensors[m.output[0]].width()
}

// BatchSize is the number of rows allocated by the last AllocateTensors call.
func (m *Model) BatchSize() int { return m.batch }

// AllocateTensors sizes every non-constant tensor for batch rows.
// Constants are materialized once.
func (m *Model) AllocateTensors(batch int) error {
	if !m.initialized {
		return fmt.Errorf("model is not initialized")
	}
	if batch <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batch)
	}
	for _, t := range m.tensors {
		if t.def.IsConstant() {
			if t.value == nil {
				t.value = constantMatrix(t.def, m.file.Values(t.def))
			}
			continue
		}
		t.value = mat.NewDense(batch, t.width(), nil)
	}
	m.batch = batch
	return nil
}

// SetInputs copies batch*InputWidth values into the first input tensor.
func (m *Model) SetInputs(values []float32) error {
	if m.batch == 0 {
		return fmt.Errorf("tensors are not allocated")
	}
	in := m.tensors[m.inputs[0]].value
	raw := in.RawMatrix().Data
	if len(values) != len(raw) {
		return fmt.Errorf("expected %d input values, got %d", len(raw), len(values))
	}
	for i, v := range values {
		raw[i] = float64(v)
	}
	return nil
}

// Predict evaluates the graph.
func (m *Model) Predict() error {
	if m.batch == 0 {
		return fmt.Errorf("tensors are not allocated")
	}
	for _, id := range m.order {
		if err := m.evaluateTensor(m.tensors[id]); err != nil {
			return err
		}
	}
	return nil
}

// Outputs returns the first output tensor, row-major.
func (m *Model) Outputs() []float32 {
	if m.batch == 0 {
		return nil
	}
	raw := m.tensors[m.output[0]].value.RawMatrix().Data
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v)
	}
	return out
}

func (m *Model) evaluateTensor(t *tensor) error {
	c := t.def.Computation
	if c == nil {
		return nil
	}

	src := func(i int) *mat.Dense {
		return m.tensors[TensorID(c.Sources[i])].value
	}

	switch c.Type {
	case OpFullyConnected:
		fullyConnected(t.value, src(0), src(1))
		if len(c.Sources) > 2 {
			addBias(t.value, src(2).RawMatrix().Data)
		}
		switch c.Activation {
		case "relu":
			relu(t.value, t.value)
		case "sigmoid":
			sigmoid(t.value, t.value)
		}
	case OpBias:
		t.value.Copy(src(0))
		addBias(t.value, src(1).RawMatrix().Data)
	case OpL2Normalization:
		l2Normalize(t.value, src(0))
	case OpKNN:
		kNN(t.value, src(0), src(1), src(2), c.Neighbours)
	case OpRelu:
		relu(t.value, src(0))
	case OpSigmoid:
		sigmoid(t.value, src(0))
	default:
		return fmt.Errorf("tensor %d: unsupported operation %q", t.id, c.Type)
	}
	return nil
}

// checkShapes verifies that the sources of t fit its operation, so Predict
// cannot panic inside the matrix kernels.
func (m *Model) checkShapes(t *tensor) error {
	c := t.def.Computation
	if c == nil {
		return nil
	}

	need := map[OpType]int{
		OpFullyConnected:  2,
		OpBias:            2,
		OpL2Normalization: 1,
		OpKNN:             3,
		OpRelu:            1,
		OpSigmoid:         1,
	}
	n, ok := need[c.Type]
	if !ok {
		return fmt.Errorf("tensor %d: unsupported operation %q", t.id, c.Type)
	}
	if len(c.Sources) < n {
		return fmt.Errorf("tensor %d: %s needs %d sources, got %d", t.id, c.Type, n, len(c.Sources))
	}
	srcs := make([]*tensor, len(c.Sources))
	for i, id := range c.Sources {
		srcs[i] = m.tensors[TensorID(id)]
	}

	// The first source is always a batched activation.
	if srcs[0].def.IsConstant() {
		return fmt.Errorf("tensor %d: first source %d must not be a constant", t.id, srcs[0].id)
	}
	inWidth := srcs[0].width()
	width := t.width()

	switch c.Type {
	case OpFullyConnected:
		if !srcs[1].isMatrix(width, inWidth) {
			return fmt.Errorf("tensor %d: weights %d must be [%d %d], got %v", t.id, srcs[1].id, width, inWidth, srcs[1].def.Shape)
		}
		if len(srcs) > 2 && !srcs[2].isVector(width) {
			return fmt.Errorf("tensor %d: bias %d must have %d values", t.id, srcs[2].id, width)
		}
		switch c.Activation {
		case "", "relu", "sigmoid":
		default:
			return fmt.Errorf("tensor %d: unsupported activation %q", t.id, c.Activation)
		}
	case OpBias:
		if inWidth != width || !srcs[1].isVector(width) {
			return fmt.Errorf("tensor %d: bias shape mismatch", t.id)
		}
	case OpKNN:
		keys, targets := srcs[1], srcs[2]
		if !keys.def.IsConstant() || !targets.def.IsConstant() || len(keys.def.Shape) != 2 || len(targets.def.Shape) != 2 {
			return fmt.Errorf("tensor %d: kNN keys and targets must be constant matrices", t.id)
		}
		if keys.def.Shape[1] != inWidth || targets.def.Shape[0] != keys.def.Shape[0] || targets.def.Shape[1] != width {
			return fmt.Errorf("tensor %d: kNN shape mismatch (keys %v, targets %v, in %d, out %d)",
				t.id, keys.def.Shape, targets.def.Shape, inWidth, width)
		}
	default:
		if inWidth != width {
			return fmt.Errorf("tensor %d: %s must preserve width %d, got %d", t.id, c.Type, inWidth, width)
		}
	}
	return nil
}
