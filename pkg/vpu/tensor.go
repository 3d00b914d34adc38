package vpu

import "fmt"

// Tensor describes the shape and storage of an activation or weight tensor.
// It is a plain value; copies are independent.
type Tensor struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Channels int      `json:"channels"`
	Batch    int      `json:"batch"`
	DType    DataType `json:"dtype"`
	Layout   Layout   `json:"layout,omitempty"`
	Sparse   bool     `json:"sparse,omitempty"`
}

// NewTensor builds a ZMAJOR dense tensor. It never fails; shape checks happen
// when a workload using the tensor is evaluated.
func NewTensor(width, height, channels, batch int, dtype DataType) Tensor {
	return Tensor{
		Width:    width,
		Height:   height,
		Channels: channels,
		Batch:    batch,
		DType:    dtype,
		Layout:   ZMAJOR,
	}
}

// WithLayout returns a copy of t using layout l.
func (t Tensor) WithLayout(l Layout) Tensor {
	t.Layout = l
	return t
}

// WithSparsity returns a copy of t with the sparsity flag set.
func (t Tensor) WithSparsity(sparse bool) Tensor {
	t.Sparse = sparse
	return t
}

// Shape is {W, H, C, B}.
func (t Tensor) Shape() [4]int {
	return [4]int{t.Width, t.Height, t.Channels, t.Batch}
}

// Volume is the number of elements.
func (t Tensor) Volume() int {
	return t.Width * t.Height * t.Channels * t.Batch
}

// Size is the number of bytes needed to store the tensor.
func (t Tensor) Size() int {
	return t.Volume() * t.DType.Bytes()
}

// Order is the dimension order (innermost first) implied by the layout.
func (t Tensor) Order() [4]int {
	if t.Layout == CMAJOR {
		return [4]int{0, 1, 2, 3}
	}
	return [4]int{2, 0, 1, 3}
}

// Strides returns the byte stride of every dimension, indexed like Shape.
func (t Tensor) Strides() [4]int {
	shape := t.Shape()
	var strides [4]int
	stride := t.DType.Bytes()
	for _, dim := range t.Order() {
		strides[dim] = stride
		stride *= shape[dim]
	}
	return strides
}

func (t Tensor) String() string {
	s := fmt.Sprintf("%dx%dx%dx%d %v", t.Width, t.Height, t.Channels, t.Batch, t.DType)
	if t.Layout != ZMAJOR {
		s += " " + t.Layout.String()
	}
	if t.Sparse {
		s += " sparse"
	}
	return s
}

func (t Tensor) validate(name string) error {
	if t.Width <= 0 || t.Height <= 0 || t.Channels <= 0 || t.Batch <= 0 {
		return fmt.Errorf("%s tensor has non-positive shape %v: %w", name, t.Shape(), ErrInvalidWorkload)
	}
	if !t.DType.Valid() {
		return fmt.Errorf("%s tensor has unknown data type %d: %w", name, int(t.DType), ErrInvalidWorkload)
	}
	if !t.Layout.Valid() {
		return fmt.Errorf("%s tensor has unknown layout %d: %w", name, int(t.Layout), ErrInvalidWorkload)
	}
	return nil
}
