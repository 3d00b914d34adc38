package inference

import (
	"gonum.org/v1/gonum/mat"
)

type tensor struct {
	id  TensorID
	def *TensorDef

	dependencies []TensorID
	value        *mat.Dense
}

func newTensor(def *TensorDef) *tensor {
	t := &tensor{
		id:  TensorID(def.ID),
		def: def,
	}
	if c := def.Computation; c != nil {
		for _, src := range c.Sources {
			t.dependencies = append(t.dependencies, TensorID(src))
		}
	}
	return t
}

func (t *tensor) TensorID() TensorID {
	return t.id
}

func (t *tensor) Dependencies() []TensorID {
	return t.dependencies
}

// width is the innermost dimension.
func (t *tensor) width() int {
	return t.def.Shape[len(t.def.Shape)-1]
}

func (t *tensor) isMatrix(rows, cols int) bool {
	s := t.def.Shape
	return t.def.IsConstant() && len(s) == 2 && s[0] == rows && s[1] == cols
}

func (t *tensor) isVector(n int) bool {
	if !t.def.IsConstant() {
		return false
	}
	volume := 1
	for _, d := range t.def.Shape {
		volume *= d
	}
	return volume == n
}

// constantMatrix lays out constant values as a matrix whose columns are the
// innermost dimension.
func constantMatrix(def *TensorDef, values []float32) *mat.Dense {
	cols := def.Shape[len(def.Shape)-1]
	rows := len(values) / cols
	data := make([]float64, len(values))
	for i, v := range values {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data)
}
