// Package optimization picks execution modes and workload splits by asking
// a cost model for the cycles of each candidate.
package optimization

import (
	"container/heap"
	"fmt"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// DPUCoster is satisfied by *costmodel.CostModel.
type DPUCoster interface {
	DPU(wl vpu.DPUWorkload) (uint32, error)
}

// Layer is a DPU operation before an execution mode is chosen.
type Layer struct {
	Device  vpu.Device
	Op      vpu.Operation
	Input   vpu.Tensor
	Output  vpu.Tensor
	KernelW int
	KernelH int
	StrideW int
	StrideH int
	Padding vpu.Padding
}

func (l Layer) Workload(mode vpu.ExecutionMode) vpu.DPUWorkload {
	return vpu.NewDPUWorkload(l.Device, l.Op, l.Input, l.Output, mode,
		l.KernelH, l.KernelW, l.StrideH, l.StrideW,
		l.Padding.Top, l.Padding.Bottom, l.Padding.Left, l.Padding.Right)
}

func isFP16Family(dtype vpu.DataType) bool {
	return dtype == vpu.FLOAT16 || dtype == vpu.BFLOAT16
}

// candidateModes returns the modes compared for layer, in tie-breaking order.
func candidateModes(layer Layer) ([]vpu.ExecutionMode, error) {
	switch layer.Device {
	case vpu.VPU_2_0, vpu.VPU_2_1:
		if isFP16Family(layer.Input.DType) {
			return []vpu.ExecutionMode{vpu.VECTOR_FP16}, nil
		}
		return []vpu.ExecutionMode{vpu.VECTOR, vpu.MATRIX}, nil
	case vpu.VPU_2_7, vpu.VPU_4_0:
		return []vpu.ExecutionMode{vpu.CUBOID_16x16, vpu.CUBOID_4x16, vpu.CUBOID_8x16}, nil
	}
	return nil, fmt.Errorf("no execution modes for device %v: %w", layer.Device, vpu.ErrInvalidWorkload)
}

// SelectOptimalExecutionMode returns the cheapest mode for layer and its cost.
func SelectOptimalExecutionMode(m DPUCoster, layer Layer) (vpu.ExecutionMode, uint32, error) {
	modes, err := candidateModes(layer)
	if err != nil {
		return 0, 0, err
	}

	best, bestCost := modes[0], uint32(0)
	for i, mode := range modes {
		cost, err := m.DPU(layer.Workload(mode))
		if err != nil {
			return 0, 0, fmt.Errorf("costing mode %v: %w", mode, err)
		}
		if i == 0 || cost < bestCost {
			best, bestCost = mode, cost
		}
	}
	return best, bestCost, nil
}

// Split is one workload of a candidate split of a layer.
type Split struct {
	Input  vpu.Tensor
	Output vpu.Tensor
	Mode   vpu.ExecutionMode
}

// SelectOptimalSplit costs every candidate split scheduled over nDPU DPUs and
// returns the index of the cheapest with its cost. kernel and stride are {W, H}.
func SelectOptimalSplit(m DPUCoster, nDPU int, device vpu.Device, op vpu.Operation, splits [][]Split,
	kernel, stride [2]int, padding vpu.Padding) (int, uint32, error) {
	if nDPU <= 0 {
		return 0, 0, fmt.Errorf("number of DPUs must be positive, got %d", nDPU)
	}
	if len(splits) == 0 {
		return 0, 0, fmt.Errorf("no splits to choose from")
	}

	bestIdx, bestCost := -1, uint32(0)
	for i, split := range splits {
		costs := make([]uint32, len(split))
		for j, s := range split {
			wl := vpu.NewDPUWorkload(device, op, s.Input, s.Output, s.Mode,
				kernel[1], kernel[0], stride[1], stride[0],
				padding.Top, padding.Bottom, padding.Left, padding.Right)
			cost, err := m.DPU(wl)
			if err != nil {
				return 0, 0, fmt.Errorf("split %d workload %d: %w", i, j, err)
			}
			costs[j] = cost
		}
		total := Schedule(nDPU, costs, 0)
		if bestIdx < 0 || total < bestCost {
			bestIdx, bestCost = i, total
		}
	}
	return bestIdx, bestCost, nil
}

// Schedule assigns each task, in order, to the least loaded of n processors
// and returns the finishing time of the busiest one.
func Schedule(n int, costs []uint32, runtimeOverhead uint32) uint32 {
	if n <= 0 {
		return 0
	}
	loads := make(loadHeap, n)
	for _, c := range costs {
		loads[0] += uint64(c) + uint64(runtimeOverhead)
		heap.Fix(&loads, 0)
	}

	var makespan uint64
	for _, l := range loads {
		makespan = max(makespan, l)
	}
	if makespan > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(makespan)
}

// loadHeap is a min-heap of processor loads.
type loadHeap []uint64

func (h loadHeap) Len() int           { return len(h) }
func (h loadHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h loadHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *loadHeap) Push(x any)        { *h = append(*h, x.(uint64)) }
func (h *loadHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}
