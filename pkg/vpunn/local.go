package vpunn

import (
	"context"

	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"k8s.io/klog/v2"
)

// LocalEngine evaluates models in process.
type LocalEngine struct {
	Options []costmodel.Option
}

var _ Engine = (*LocalEngine)(nil)

func (e *LocalEngine) CreateVPUCostModel(ctx context.Context, path string) Model {
	m := costmodel.New(path, e.Options...)
	klog.FromContext(ctx).V(2).Info("created local cost model", "path", path, "initialized", m.Initialized())
	return &localModel{model: m}
}

type localModel struct {
	model *costmodel.CostModel
}

func (m *localModel) Initialized() bool { return m.model.Initialized() }

func (m *localModel) DMA(ctx context.Context, device vpu.Device, in, out vpu.Tensor, replication int) (uint32, error) {
	return m.DMAWithLocations(ctx, device, in, out, vpu.DRAM, vpu.CMX, replication)
}

func (m *localModel) DMAWithLocations(ctx context.Context, device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, replication int) (uint32, error) {
	return m.model.DMA(device, in, out, src, dst, replication)
}

func (m *localModel) DPU(ctx context.Context, wl vpu.DPUWorkload) (uint32, error) {
	return m.model.DPU(wl)
}

func (m *localModel) SHAVE(ctx context.Context, wl vpu.SHAVEWorkload) (uint32, error) {
	return m.model.SHAVE(wl)
}
