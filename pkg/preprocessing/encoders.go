package preprocessing

import "github.com/intel/npu-nn-cost-model/pkg/vpu"

// version01Reserved is the number of trailing slots the first descriptor
// interface declared but never filled.
const version01Reserved = 4

// encoder writes consecutive descriptor slots. With a nil out it only counts.
type encoder struct {
	out    []float32
	offset int
}

func (e *encoder) value(v float64) {
	if e.offset < len(e.out) {
		e.out[e.offset] = float32(v)
	}
	e.offset++
}

// oneHot writes n slots with a 1 at position v. Out-of-range values leave all
// slots zero.
func (e *encoder) oneHot(v, n int) {
	if v >= 0 && v < n && e.offset+v < len(e.out) {
		e.out[e.offset+v] = 1
	}
	e.offset += n
}

func (e *encoder) tensor(t vpu.Tensor) {
	e.value(float64(t.Width))
	e.value(float64(t.Height))
	e.value(float64(t.Channels))
	e.value(float64(t.Batch))
	e.oneHot(int(t.DType), vpu.DataTypeCount)
}

func (e *encoder) tensorWithLayout(t vpu.Tensor) {
	e.tensor(t)
	e.oneHot(int(t.Layout), vpu.LayoutCount)
	if t.Sparse {
		e.value(1)
	} else {
		e.value(0)
	}
}

func encodeV10(e *encoder, wl vpu.DPUWorkload) {
	encodeWorkload(e, wl, e.tensor)
}

func encodeV11(e *encoder, wl vpu.DPUWorkload) {
	encodeWorkload(e, wl, e.tensorWithLayout)
}

func encodeWorkload(e *encoder, wl vpu.DPUWorkload, tensor func(vpu.Tensor)) {
	e.oneHot(int(wl.Device), vpu.DeviceCount)
	e.oneHot(int(wl.Op), vpu.OperationCount)

	tensor(wl.Input)
	tensor(wl.Output)

	e.value(float64(wl.KernelW))
	e.value(float64(wl.KernelH))
	e.value(float64(wl.StrideW))
	e.value(float64(wl.StrideH))
	e.value(float64(wl.Padding.Top))
	e.value(float64(wl.Padding.Bottom))
	e.value(float64(wl.Padding.Left))
	e.value(float64(wl.Padding.Right))

	e.oneHot(int(wl.ExecutionMode), vpu.ExecutionModeCount)
	e.oneHot(int(wl.Activation), vpu.ActivationCount)
	e.value(wl.ActSparsity)
	e.value(wl.WeightSparsity)
	e.oneHot(int(wl.InputSwizzling), vpu.SwizzlingCount)
	e.oneHot(int(wl.OutputSwizzling), vpu.SwizzlingCount)
	e.value(float64(wl.OutputWriteTiles))
}
