// Package vpunn is the scripting surface of the cost model: descriptor
// constructors plus a model handle that is either evaluated in process or
// by a remote cost service.
package vpunn

import (
	"context"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// CreateTensor never fails; dimensions are checked when a cost is requested.
func CreateTensor(width, height, channels, batch int, dtype vpu.DataType) vpu.Tensor {
	return vpu.NewTensor(width, height, channels, batch, dtype)
}

// CreateWorkload builds a DPU workload from the flat argument list used by
// scripts. It never fails; an invalid workload is reported by Model.DPU.
func CreateWorkload(device vpu.Device, op vpu.Operation, in, out vpu.Tensor, mode vpu.ExecutionMode,
	kh, kw, sh, sw, padTop, padBottom, padLeft, padRight int) vpu.DPUWorkload {
	return vpu.NewDPUWorkload(device, op, in, out, mode, kh, kw, sh, sw, padTop, padBottom, padLeft, padRight)
}

// CreateSHV fails only for an unknown kernel name.
func CreateSHV(name string, device vpu.Device, in, out vpu.Tensor) (vpu.SHAVEWorkload, error) {
	return vpu.NewSHAVEWorkload(name, device, in, out)
}

// Model is a loaded cost model. Errors signal an invalid workload or, for
// remote models, a transport failure; a model that failed to load still
// answers with analytical estimates.
type Model interface {
	Initialized() bool
	// DMA costs a DRAM to CMX transfer.
	DMA(ctx context.Context, device vpu.Device, in, out vpu.Tensor, replication int) (uint32, error)
	DMAWithLocations(ctx context.Context, device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, replication int) (uint32, error)
	DPU(ctx context.Context, wl vpu.DPUWorkload) (uint32, error)
	SHAVE(ctx context.Context, wl vpu.SHAVEWorkload) (uint32, error)
}

type Engine interface {
	// CreateVPUCostModel never fails. Check Model.Initialized to learn
	// whether path held a usable model. Remote engines resolve path on the
	// server, relative to its model directory.
	CreateVPUCostModel(ctx context.Context, path string) Model
}
