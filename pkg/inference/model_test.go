package inference

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func FloatingPointEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i, value := range a {
		if math.Abs(float64(value-b[i])) > 0.00001 {
			return false
		}
	}
	return true
}

func buildDenseModel(t *testing.T) []byte {
	t.Helper()
	b := NewBuilder("TEST-11-2")
	x := b.Input(3)
	y := b.FullyConnected(x, [][]float32{{1, 0, 0}, {0, 2, 0}}, []float32{0.5, -1}, "relu")
	b.Output(y)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("building model: %v", err)
	}
	return data
}

func TestPredictDense(t *testing.T) {
	m := LoadBytes(buildDenseModel(t))
	if !m.Initialized() {
		t.Fatalf("expected model to be initialized")
	}
	if m.Name() != "TEST-11-2" {
		t.Errorf("unexpected name %q", m.Name())
	}
	if m.InputWidth() != 3 || m.OutputWidth() != 2 {
		t.Errorf("unexpected widths in=%d out=%d", m.InputWidth(), m.OutputWidth())
	}

	if err := m.AllocateTensors(2); err != nil {
		t.Fatalf("allocating tensors: %v", err)
	}
	if err := m.SetInputs([]float32{1, 2, 3, -3, 0, 0}); err != nil {
		t.Fatalf("setting inputs: %v", err)
	}
	if err := m.Predict(); err != nil {
		t.Fatalf("predicting: %v", err)
	}

	expected := []float32{1.5, 3, 0, 0}
	if got := m.Outputs(); !FloatingPointEqual(got, expected) {
		t.Errorf("expected %+v, got %+v", expected, got)
	}
}

func TestPredictL2AndKNN(t *testing.T) {
	b := NewBuilder("KNN-11-2")
	x := b.Input(2)
	norm := b.L2Normalization(x)
	y := b.KNN(norm, [][]float32{{1, 0}, {0, 1}}, [][]float32{{10}, {20}}, 2)
	b.Output(y)
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("building model: %v", err)
	}

	r := NewRuntime(LoadBytes(data), 4)
	if !r.Initialized() {
		t.Fatalf("expected runtime to be initialized")
	}

	// [3 4] normalizes to [0.6 0.8]: distances 0.4 and 0.2.
	got, err := r.Predict([]float32{3, 4})
	if err != nil {
		t.Fatalf("predicting: %v", err)
	}
	expected := []float32{(2.5*10 + 5*20) / 7.5}
	if !FloatingPointEqual(got, expected) {
		t.Errorf("expected %+v, got %+v", expected, got)
	}
}

func TestRuntimeBatchLimits(t *testing.T) {
	r := NewRuntime(LoadBytes(buildDenseModel(t)), 1)
	if !r.Initialized() {
		t.Fatalf("expected runtime to be initialized")
	}
	if v := r.Version(); v.InputVersion != 11 || v.OutputVersion != 2 {
		t.Errorf("unexpected version %v", v)
	}

	if _, err := r.Predict([]float32{1, 2, 3, 4, 5, 6}); err == nil {
		t.Errorf("expected error for more descriptors than the batch")
	}
	if _, err := r.Predict([]float32{1, 2}); err == nil {
		t.Errorf("expected error for a partial descriptor")
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "package.json")
	if err := os.WriteFile(jsonPath, []byte(`{"name": "vpunn", "version": "1.0.0"}`), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	valid := buildDenseModel(t)
	truncatedPath := filepath.Join(dir, "truncated.vpunn")
	if err := os.WriteFile(truncatedPath, valid[:len(valid)-3], 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.vpunn"), jsonPath, truncatedPath} {
		m := Load(path)
		if m.Initialized() {
			t.Errorf("%s: expected model not to be initialized", path)
		}
		if err := m.AllocateTensors(1); err == nil {
			t.Errorf("%s: expected allocation to fail", path)
		}
		if r := NewRuntime(m, 1); r.Initialized() {
			t.Errorf("%s: expected runtime not to be initialized", path)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpu_2_7.vpunn")
	b := NewBuilder("VPUNN-10-2")
	x := b.Input(4)
	b.Output(b.Activation(x, OpSigmoid))
	if err := b.WriteFile(path); err != nil {
		t.Fatalf("writing model: %v", err)
	}

	r := NewRuntime(Load(path), 1)
	got, err := r.Predict([]float32{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("predicting: %v", err)
	}
	if expected := []float32{0.5, 0.5, 0.5, 0.5}; !FloatingPointEqual(got, expected) {
		t.Errorf("expected %+v, got %+v", expected, got)
	}
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	f := &File{
		Header: Header{
			Name:    "BAD-1-1",
			Inputs:  []int{1},
			Outputs: []int{3},
			Tensors: []TensorDef{
				{ID: 1, Shape: []int{3}},
				{ID: 2, Shape: []int{2, 2}, Data: &DataRef{Offset: 0, Length: 4}},
				{ID: 3, Shape: []int{2}, Computation: &Computation{Type: OpFullyConnected, Sources: []int{1, 2}}},
			},
		},
		Data: []float32{1, 2, 3, 4},
	}
	if _, err := Decode(encode(t, f)); err != nil {
		t.Fatalf("structurally valid file should decode: %v", err)
	}
	// The weights are [2 2] but the input has width 3.
	if m := LoadBytes(encode(t, f)); m.Initialized() {
		t.Errorf("expected mismatched weights to leave the model uninitialized")
	}

	f.Header.Tensors[1].Data.Length = 5
	if _, err := Decode(encode(t, f)); err == nil {
		t.Errorf("expected error for data outside the data section")
	}
}

func TestDecodeRejectsOverflowingData(t *testing.T) {
	grid := []struct {
		name  string
		shape []int
		data  *DataRef
	}{
		{name: "offset near max int64", shape: []int{2}, data: &DataRef{Offset: math.MaxInt64 - 1, Length: 2}},
		{name: "offset past end", shape: []int{2}, data: &DataRef{Offset: 5, Length: 2}},
		{name: "shape product overflows", shape: []int{1 << 31, 1 << 31, 1 << 31}, data: &DataRef{Offset: 0, Length: 4}},
	}
	for _, g := range grid {
		f := &File{
			Header: Header{
				Name:    "VPUNN-11-2",
				Inputs:  []int{1},
				Outputs: []int{3},
				Tensors: []TensorDef{
					{ID: 1, Shape: []int{2}},
					{ID: 2, Shape: g.shape, Data: g.data},
					{ID: 3, Shape: []int{2}, Computation: &Computation{Type: OpBias, Sources: []int{1, 2}}},
				},
			},
			Data: []float32{1, 2, 3, 4},
		}
		data := encode(t, f)
		if _, err := Decode(data); err == nil {
			t.Errorf("%s: expected a decode error", g.name)
		}
		m := LoadBytes(data)
		if m.Initialized() {
			t.Errorf("%s: expected the model to be uninitialized", g.name)
		}
		if r := NewRuntime(m, 1); r.Initialized() {
			t.Errorf("%s: expected the runtime to be uninitialized", g.name)
		}
	}
}

func TestDecodeRejectsUncomputedOutputs(t *testing.T) {
	for _, output := range []int{1, 2} {
		f := &File{
			Header: Header{
				Name:    "VPUNN-11-2",
				Inputs:  []int{1},
				Outputs: []int{output},
				Tensors: []TensorDef{
					{ID: 1, Shape: []int{3}},
					{ID: 2, Shape: []int{1}, Data: &DataRef{Offset: 0, Length: 1}},
				},
			},
			Data: []float32{7},
		}
		if _, err := Decode(encode(t, f)); err == nil {
			t.Errorf("output %d: expected a decode error", output)
		}
		r := NewRuntime(LoadBytes(encode(t, f)), 4)
		if r.Initialized() {
			t.Errorf("output %d: expected the runtime to be uninitialized", output)
		}
		if _, err := r.Predict(make([]float32, 12)); err == nil {
			t.Errorf("output %d: expected Predict to fail", output)
		}
	}
}

func encode(t *testing.T, f *File) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.vpunn")
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating file: %v", err)
	}
	if err := f.Encode(out); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	return data
}
