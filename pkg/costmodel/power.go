package costmodel

import "github.com/intel/npu-nn-cost-model/pkg/vpu"

// DPUActivityFactor scales the measured power factor of the operation by the
// utilization the workload achieves.
func (m *CostModel) DPUActivityFactor(wl vpu.DPUWorkload) (float64, error) {
	utilization, err := m.HWUtilization(wl)
	if err != nil {
		return 0, err
	}
	wl = wl.Sanitize()
	pf := vpu.PowerFactor(wl.Device, wl.Op, wl.Input.Channels, wl.Input.DType)
	return utilization * pf, nil
}

// DPUPower is the dynamic DPU power of wl at the default operating point.
func (m *CostModel) DPUPower(wl vpu.DPUWorkload) (float64, error) {
	af, err := m.DPUActivityFactor(wl)
	if err != nil {
		return 0, err
	}
	return vpu.DynamicPower(m.power[wl.Device].CDyn[vpu.VPU_DPU], af, vpu.DefaultDVFS(wl.Device)), nil
}

// DMAPower assumes the DMA engine is fully active for the transfer.
func (m *CostModel) DMAPower(wl vpu.DMAWorkload) (float64, error) {
	if err := wl.Validate(); err != nil {
		return 0, err
	}
	return vpu.DynamicPower(m.power[wl.Device].CDyn[vpu.VPU_DMA], 1, vpu.DefaultDVFS(wl.Device)), nil
}

func (m *CostModel) SHAVEPower(wl vpu.SHAVEWorkload) (float64, error) {
	if err := wl.Validate(); err != nil {
		return 0, err
	}
	return vpu.DynamicPower(m.power[wl.Device].CDyn[vpu.VPU_SHV], 1, vpu.DefaultDVFS(wl.Device)), nil
}

// StaticPower is the leakage of a subsystem at dvfs.
func (m *CostModel) StaticPower(device vpu.Device, subsystem vpu.Subsystem, dvfs vpu.DVFS) float64 {
	return m.power[device].StaticPower(device, subsystem, dvfs)
}
