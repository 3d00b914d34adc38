package vpu

import "math"

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// DPUTheoreticalCycles is the ideal cycle count of a DPU workload, assuming
// full MAC utilization and no stalls other than CMX read bandwidth.
func DPUTheoreticalCycles(wl DPUWorkload) int {
	hw := Characteristics(wl.Device)
	in, out := wl.Input, wl.Output

	if out.Volume() <= 0 {
		return 0
	}

	kw := min(wl.KernelW, in.Width)
	kh := min(wl.KernelH, in.Height)

	nrMACs := hw.MACs
	cycles := kw * kh * out.Volume()

	mt := 1
	if wl.Tiles() > 1 {
		mt = 2
	}

	if wl.Op == ELTWISE {
		cycles = ceilDiv(in.Volume(), hw.PPEs/mt)
	}
	if wl.Op == CONVOLUTION || wl.Op == CM_CONVOLUTION {
		cycles *= in.Channels
	} else {
		nrMACs /= hw.InputChannelsMAC
	}
	cycles = ceilDiv(cycles, nrMACs)

	return max(cycles, cmxReads(wl, hw, kw, kh))
}

// cmxReads estimates the cycles spent reading activations and weights from CMX.
func cmxReads(wl DPUWorkload, hw HWCharacteristics, kw, kh int) int {
	if wl.Device == VPU_2_0 || wl.Device == VPU_2_1 {
		return 0
	}
	in, out := wl.Input, wl.Output
	grid := NTHWNTKGrid(wl.ExecutionMode)

	numWT := ceilDiv(out.Channels, grid[2])
	numAct := ceilDiv(out.Height, grid[1]) * ceilDiv(out.Width, grid[0])

	actReads := float64(numWT*out.Height*out.Width*in.Channels*kw*kh) / 16
	wtReads := float64(numAct*out.Channels*in.Channels*kw*kh) / 16

	ratio := float64(hw.CMXFrequencyMHz) / float64(hw.DPUFrequencyMHz)
	return int(math.Ceil((actReads + wtReads) * ratio))
}

func sramWordSize(t Tensor, compression, permute, halfDuplex bool) int {
	word := 32
	if compression {
		word = 64
	}
	if halfDuplex {
		word /= 2
	}
	if permute {
		return t.DType.Bytes()
	}
	return min(t.Size(), word)
}

// bandwidthCyclesPerByte is the DPU cycles needed to move one byte to or from loc.
func bandwidthCyclesPerByte(hw HWCharacteristics, t Tensor, loc MemoryLocation, compression, permute, halfDuplex bool) float64 {
	if loc == DRAM {
		return float64(hw.DPUFrequencyMHz) / float64(hw.DRAMBandwidthMBps)
	}
	word := sramWordSize(t, compression, permute, halfDuplex)
	if word == 0 {
		return 0
	}
	return float64(hw.DPUFrequencyMHz) / float64(hw.CMXFrequencyMHz) / float64(word)
}

// DMATheoreticalCycles is the ideal cycle count of a transfer: the slower of
// the read and write sides plus the worst setup latency.
func DMATheoreticalCycles(wl DMAWorkload) int {
	hw := Characteristics(wl.Device)

	permuted := wl.Input.Layout != wl.Output.Layout
	compressed := wl.Input.Size() != wl.Output.Size()

	// Permutation and compression only change the CMX side of a transfer.
	inCMX := wl.InputLocation == CMX
	outCMX := wl.OutputLocation == CMX
	// CMX to CMX transfers share one SRAM port up to VPU_2_7.
	halfDuplex := inCMX && outCMX && wl.Device <= VPU_2_7
	inBW := bandwidthCyclesPerByte(hw, wl.Input, wl.InputLocation, compressed && inCMX, permuted && inCMX, halfDuplex)
	outBW := bandwidthCyclesPerByte(hw, wl.Output, wl.OutputLocation, compressed && outCMX, permuted && outCMX, halfDuplex)

	inCycles := int(math.Ceil(float64(wl.Input.Size()) * inBW))
	outCycles := int(math.Ceil(float64(wl.Output.Size()) * outBW))

	latency := max(hw.DMALatency(wl.InputLocation), hw.DMALatency(wl.OutputLocation))
	return latency + max(inCycles, outCycles)
}

// SHAVETheoreticalCycles uses the kernel's throughput and fixed latency.
// Unknown kernels cost nothing.
func SHAVETheoreticalCycles(wl SHAVEWorkload) int {
	k, ok := LookupShaveKernel(wl.Name)
	if !ok || k.Efficiency <= 0 {
		return 0
	}
	return int(math.Round(float64(wl.Output.Size())/k.Efficiency)) + k.Latency
}
