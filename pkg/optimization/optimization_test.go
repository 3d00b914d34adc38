package optimization

import (
	"errors"
	"testing"

	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// modeCoster charges a fixed price per execution mode and per output row.
type modeCoster struct {
	price map[vpu.ExecutionMode]uint32
}

func (c *modeCoster) DPU(wl vpu.DPUWorkload) (uint32, error) {
	if err := wl.Validate(); err != nil {
		return 0, err
	}
	return c.price[wl.ExecutionMode] * uint32(wl.Output.Height), nil
}

func TestSchedule(t *testing.T) {
	grid := []struct {
		n        int
		costs    []uint32
		overhead uint32
		want     uint32
	}{
		{n: 5, costs: []uint32{10, 10, 10, 10, 10}, want: 10},
		{n: 2, costs: []uint32{5, 3, 8}, want: 11},
		{n: 2, costs: []uint32{5, 3, 8}, overhead: 1, want: 13},
		{n: 1, costs: []uint32{1, 2, 3}, want: 6},
		{n: 3, costs: nil, want: 0},
		{n: 0, costs: []uint32{1}, want: 0},
	}
	for _, g := range grid {
		if got := Schedule(g.n, g.costs, g.overhead); got != g.want {
			t.Errorf("Schedule(%d, %v, %d): expected %d, got %d", g.n, g.costs, g.overhead, g.want, got)
		}
	}
}

func layer(device vpu.Device, dtype vpu.DataType) Layer {
	return Layer{
		Device:  device,
		Op:      vpu.CONVOLUTION,
		Input:   vpu.NewTensor(56, 56, 16, 1, dtype),
		Output:  vpu.NewTensor(56, 56, 16, 1, dtype),
		KernelW: 3, KernelH: 3,
		StrideW: 1, StrideH: 1,
		Padding: vpu.Padding{Top: 1, Bottom: 1, Left: 1, Right: 1},
	}
}

func TestSelectOptimalExecutionMode(t *testing.T) {
	coster := &modeCoster{price: map[vpu.ExecutionMode]uint32{
		vpu.VECTOR:       3,
		vpu.MATRIX:       2,
		vpu.VECTOR_FP16:  9,
		vpu.CUBOID_16x16: 5,
		vpu.CUBOID_8x16:  4,
		vpu.CUBOID_4x16:  4,
	}}

	grid := []struct {
		device   vpu.Device
		dtype    vpu.DataType
		wantMode vpu.ExecutionMode
		wantCost uint32
	}{
		{vpu.VPU_2_0, vpu.UINT8, vpu.MATRIX, 2 * 56},
		{vpu.VPU_2_1, vpu.FLOAT16, vpu.VECTOR_FP16, 9 * 56},
		// Ties keep the earlier candidate.
		{vpu.VPU_2_7, vpu.UINT8, vpu.CUBOID_4x16, 4 * 56},
	}
	for _, g := range grid {
		mode, cost, err := SelectOptimalExecutionMode(coster, layer(g.device, g.dtype))
		if err != nil {
			t.Fatalf("%v: %v", g.device, err)
		}
		if mode != g.wantMode || cost != g.wantCost {
			t.Errorf("%v %v: expected %v (%d), got %v (%d)", g.device, g.dtype, g.wantMode, g.wantCost, mode, cost)
		}
	}

	if _, _, err := SelectOptimalExecutionMode(coster, layer(vpu.Device(99), vpu.UINT8)); !errors.Is(err, vpu.ErrInvalidWorkload) {
		t.Errorf("expected ErrInvalidWorkload for an unknown device, got %v", err)
	}
}

func TestSelectOptimalExecutionModeWithCostModel(t *testing.T) {
	m := costmodel.New("")
	l := layer(vpu.VPU_2_7, vpu.UINT8)

	mode, cost, err := SelectOptimalExecutionMode(m, l)
	if err != nil {
		t.Fatalf("SelectOptimalExecutionMode: %v", err)
	}
	for _, candidate := range vpu.ExecutionModes(vpu.VPU_2_7) {
		c, err := m.DPU(l.Workload(candidate))
		if err != nil {
			t.Fatalf("DPU(%v): %v", candidate, err)
		}
		if c < cost {
			t.Errorf("mode %v costs %d, less than the selected %v (%d)", candidate, c, mode, cost)
		}
	}
}

func TestSelectOptimalSplit(t *testing.T) {
	coster := &modeCoster{price: map[vpu.ExecutionMode]uint32{vpu.VECTOR: 10, vpu.MATRIX: 10}}
	tensor := func(h int) vpu.Tensor { return vpu.NewTensor(56, h, 16, 1, vpu.UINT8) }

	full := Split{Input: tensor(56), Output: tensor(56), Mode: vpu.VECTOR}
	half := Split{Input: tensor(28), Output: tensor(28), Mode: vpu.MATRIX}
	twelve := Split{Input: tensor(12), Output: tensor(12), Mode: vpu.MATRIX}
	eight := Split{Input: tensor(8), Output: tensor(8), Mode: vpu.MATRIX}

	splits := [][]Split{
		{full},
		{half, half},
		{twelve, twelve, twelve, twelve, eight},
	}
	idx, cost, err := SelectOptimalSplit(coster, 5, vpu.VPU_2_0, vpu.CONVOLUTION, splits,
		[2]int{3, 3}, [2]int{1, 1}, vpu.Padding{Top: 1, Bottom: 1, Left: 1, Right: 1})
	if err != nil {
		t.Fatalf("SelectOptimalSplit: %v", err)
	}
	if idx != 2 || cost != 120 {
		t.Errorf("expected split 2 at 120 cycles, got split %d at %d", idx, cost)
	}

	// With one DPU every split costs the same total; the first wins.
	idx, _, err = SelectOptimalSplit(coster, 1, vpu.VPU_2_0, vpu.CONVOLUTION, splits,
		[2]int{3, 3}, [2]int{1, 1}, vpu.Padding{})
	if err != nil {
		t.Fatalf("SelectOptimalSplit: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected split 0, got %d", idx)
	}

	if _, _, err := SelectOptimalSplit(coster, 0, vpu.VPU_2_0, vpu.CONVOLUTION, splits, [2]int{3, 3}, [2]int{1, 1}, vpu.Padding{}); err == nil {
		t.Errorf("expected an error for zero DPUs")
	}
	if _, _, err := SelectOptimalSplit(coster, 5, vpu.VPU_2_0, vpu.CONVOLUTION, nil, [2]int{3, 3}, [2]int{1, 1}, vpu.Padding{}); err == nil {
		t.Errorf("expected an error for no splits")
	}

	bad := [][]Split{{{Input: tensor(56), Output: tensor(56), Mode: vpu.CUBOID_16x16}}}
	if _, _, err := SelectOptimalSplit(coster, 5, vpu.VPU_2_0, vpu.CONVOLUTION, bad, [2]int{3, 3}, [2]int{1, 1}, vpu.Padding{}); !errors.Is(err, vpu.ErrInvalidWorkload) {
		t.Errorf("expected ErrInvalidWorkload, got %v", err)
	}
}
