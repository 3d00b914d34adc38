package vpu

// HWCharacteristics holds the per-generation constants used by the analytical models.
type HWCharacteristics struct {
	Device Device

	// DPUFrequencyMHz is the nominal DPU clock.
	DPUFrequencyMHz int
	// CMXFrequencyMHz is the clock of the CMX scratchpad.
	CMXFrequencyMHz int
	// DRAMBandwidthMBps is the peak DMA bandwidth from DRAM.
	DRAMBandwidthMBps int

	MACs             int
	PPEs             int
	InputChannelsMAC int
	DPUsPerTile      int

	MemoryLocations []MemoryLocation
}

var hwCharacteristics = map[Device]HWCharacteristics{
	VPU_2_0: {
		Device:            VPU_2_0,
		DPUFrequencyMHz:   700,
		CMXFrequencyMHz:   700,
		DRAMBandwidthMBps: 20000,
		MACs:              256,
		PPEs:              16,
		InputChannelsMAC:  1,
		DPUsPerTile:       5,
		MemoryLocations:   []MemoryLocation{DRAM, CMX, UPA},
	},
	VPU_2_1: {
		Device:            VPU_2_1,
		DPUFrequencyMHz:   850,
		CMXFrequencyMHz:   850,
		DRAMBandwidthMBps: 20000,
		MACs:              256,
		PPEs:              16,
		InputChannelsMAC:  1,
		DPUsPerTile:       5,
		MemoryLocations:   []MemoryLocation{DRAM, CMX, CSRAM, UPA},
	},
	VPU_2_7: {
		Device:            VPU_2_7,
		DPUFrequencyMHz:   1300,
		CMXFrequencyMHz:   975,
		DRAMBandwidthMBps: 27000,
		MACs:              2048,
		PPEs:              64,
		InputChannelsMAC:  8,
		DPUsPerTile:       1,
		MemoryLocations:   []MemoryLocation{DRAM, CMX},
	},
	VPU_4_0: {
		Device:            VPU_4_0,
		DPUFrequencyMHz:   1700,
		CMXFrequencyMHz:   975,
		DRAMBandwidthMBps: 45000,
		MACs:              2048,
		PPEs:              64,
		InputChannelsMAC:  8,
		DPUsPerTile:       1,
		MemoryLocations:   []MemoryLocation{DRAM, CMX},
	},
}

// Characteristics returns the constants for device. Unknown devices get the
// VPU_2_0 clocks with a 1 MB/s DRAM bandwidth, which keeps every model finite.
func Characteristics(device Device) HWCharacteristics {
	if hw, ok := hwCharacteristics[device]; ok {
		return hw
	}
	hw := hwCharacteristics[VPU_2_0]
	hw.Device = device
	hw.DRAMBandwidthMBps = 1
	return hw
}

func (hw HWCharacteristics) HasMemoryLocation(loc MemoryLocation) bool {
	for _, l := range hw.MemoryLocations {
		if l == loc {
			return true
		}
	}
	return false
}

// DMALatency is the fixed setup cost in DPU cycles of a transfer touching loc.
func (hw HWCharacteristics) DMALatency(loc MemoryLocation) int {
	if hw.Device != VPU_2_7 {
		return 0
	}
	if loc == DRAM {
		return 950
	}
	return 50
}

// Grid is an {X, Y, Z, B} extent.
type Grid [4]int

// MPEGrid is the shape processed by one MPE in the given mode.
func MPEGrid(mode ExecutionMode) Grid {
	switch mode {
	case VECTOR:
		return Grid{16, 1, 16, 1}
	case VECTOR_FP16:
		return Grid{4, 1, 16, 1}
	default:
		return Grid{4, 4, 16, 1}
	}
}

// NTHWNTKGrid is the output block processed per pass in the cuboid modes.
func NTHWNTKGrid(mode ExecutionMode) Grid {
	switch mode {
	case CUBOID_4x16:
		return Grid{8, 8, 256, 1}
	case CUBOID_8x16:
		return Grid{16, 8, 128, 1}
	case CUBOID_16x16:
		return Grid{16, 16, 64, 1}
	default:
		return Grid{1, 1, 1, 1}
	}
}

// ExecutionModes lists the modes the DPU of device can run.
func ExecutionModes(device Device) []ExecutionMode {
	switch device {
	case VPU_2_0, VPU_2_1:
		return []ExecutionMode{VECTOR, MATRIX, VECTOR_FP16}
	case VPU_2_7, VPU_4_0:
		return []ExecutionMode{CUBOID_16x16, CUBOID_8x16, CUBOID_4x16}
	}
	return nil
}

func ExecutionModeSupported(device Device, mode ExecutionMode) bool {
	for _, m := range ExecutionModes(device) {
		if m == mode {
			return true
		}
	}
	return false
}
