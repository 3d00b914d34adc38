package vpu

import "math"

// DVFS is a voltage/frequency operating point.
type DVFS struct {
	Voltage      float64 `json:"voltage"`
	FrequencyMHz float64 `json:"frequencyMHz"`
}

// ValidDVFS lists the operating points of device in increasing frequency.
func ValidDVFS(device Device) []DVFS {
	switch device {
	case VPU_2_0:
		return []DVFS{{0.8, 700}}
	case VPU_2_1:
		return []DVFS{{0.8, 850}}
	case VPU_2_7:
		return []DVFS{{0.6, 850}, {0.75, 1100}, {0.9, 1300}}
	case VPU_4_0:
		return []DVFS{{0.55, 950}, {0.65, 1550}, {0.75, 1700}, {0.85, 1850}}
	}
	return nil
}

// DefaultDVFS is the highest-frequency operating point.
func DefaultDVFS(device Device) DVFS {
	var best DVFS
	for _, p := range ValidDVFS(device) {
		if p.FrequencyMHz > best.FrequencyMHz {
			best = p
		}
	}
	return best
}

// DynamicPower is Cdyn * f * V^2 * activity.
func DynamicPower(cdyn, activity float64, dvfs DVFS) float64 {
	return cdyn * dvfs.FrequencyMHz * dvfs.Voltage * dvfs.Voltage * activity
}

// PowerCoefficients are the per-subsystem capacitance and leakage figures of a device.
type PowerCoefficients struct {
	CDyn    map[Subsystem]float64 `json:"cdyn,omitempty"`
	Leakage map[Subsystem]float64 `json:"leakage,omitempty"`
}

// StaticPower scales the nominal leakage of a subsystem to the voltage of dvfs.
func (pc PowerCoefficients) StaticPower(device Device, subsystem Subsystem, dvfs DVFS) float64 {
	nominal := DefaultDVFS(device).Voltage
	if nominal == 0 {
		return 0
	}
	return pc.Leakage[subsystem] * dvfs.Voltage / nominal
}

type powerFactorTable map[Operation]map[int]float64

var powerFactorLUT = map[Device]powerFactorTable{
	VPU_2_0: {
		CONVOLUTION:    {16: 0.87, 32: 0.92, 64: 1.0, 128: 0.95, 256: 0.86, 512: 0.87},
		DW_CONVOLUTION: {64: 5.84},
		MAXPOOL:        {64: 5.29},
		AVEPOOL:        {2048: 32.60},
		ELTWISE:        {96: 232.71},
	},
	VPU_2_7: {
		CONVOLUTION: {
			16: 2.7409, 32: 1.4682, 64: 1.6358, 128: 1.4199,
			256: 1.2623, 512: 1.1466, 1024: 1.3641, 2048: 12.9022,
		},
		DW_CONVOLUTION: {64: 1.9603},
		MAXPOOL:        {64: 1.8111},
		AVEPOOL:        {2048: 1.0889},
		ELTWISE:        {256: 112.5513},
	},
}

// maxPowerFactorChannels bounds the interpolation search.
const maxPowerFactorChannels = 8192

// PowerFactor is the relative switching activity of op on device for the
// given number of input channels. Devices or operations without
// measurements return 0.
func PowerFactor(device Device, op Operation, inputChannels int, dtype DataType) float64 {
	values, ok := powerFactorLUT[device][op]
	if !ok {
		return 0
	}

	v, ok := values[inputChannels]
	if !ok {
		v = interpolatePowerFactor(values, inputChannels)
	}

	switch {
	case device == VPU_2_0 && dtype == FLOAT16:
		v *= 0.87
	case device == VPU_2_7 && dtype == UINT8:
		v *= 0.79
	}
	return v
}

// interpolatePowerFactor interpolates linearly between the neighbouring
// measurements and rounds up. Outside the measured range the nearest edge is used.
func interpolatePowerFactor(values map[int]float64, channels int) float64 {
	smaller, greater := 0, maxPowerFactorChannels
	for k := range values {
		if k < channels && k > smaller {
			smaller = k
		}
		if k > channels && k < greater {
			greater = k
		}
	}
	switch {
	case smaller == 0:
		return values[greater]
	case greater == maxPowerFactorChannels:
		return values[smaller]
	}
	lo, hi := values[smaller], values[greater]
	return math.Ceil(float64(channels-smaller)*(hi-lo)/float64(greater-smaller) + lo)
}
