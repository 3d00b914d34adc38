package vpu

import (
	"fmt"
	"strings"
)

// Device is a supported NPU generation.
type Device int

const (
	VPU_2_0 Device = iota
	VPU_2_1
	VPU_2_7
	VPU_4_0
)

// DataType is the element type of a tensor.
type DataType int

const (
	UINT8 DataType = iota
	INT8
	FLOAT16
	BFLOAT16
)

// Operation is the kind of layer a DPU workload executes.
type Operation int

const (
	CONVOLUTION Operation = iota
	DW_CONVOLUTION
	ELTWISE
	MAXPOOL
	AVEPOOL
	CM_CONVOLUTION
)

type ActivationFunction int

const (
	NONE ActivationFunction = iota
	RELU
	LRELU
	ADD
	SUB
	MULT
)

type Swizzling int

const (
	KEY_0 Swizzling = iota
	KEY_1
	KEY_2
	KEY_3
	KEY_4
	KEY_5
)

// ExecutionMode is the MPE grid configuration used by a DPU workload.
type ExecutionMode int

const (
	VECTOR ExecutionMode = iota
	MATRIX
	VECTOR_FP16
	CUBOID_16x16
	CUBOID_8x16
	CUBOID_4x16
)

type Layout int

const (
	ZMAJOR Layout = iota
	CMAJOR
)

// MemoryLocation is where a tensor lives for the duration of a transfer.
type MemoryLocation int

const (
	DRAM MemoryLocation = iota
	CMX
	CSRAM
	UPA
)

type Subsystem int

const (
	VPU_DPU Subsystem = iota
	VPU_SHV
	VPU_DMA
	VPU_CPU
	VPU_CMX
)

var (
	deviceNames         = []string{"VPU_2_0", "VPU_2_1", "VPU_2_7", "VPU_4_0"}
	dataTypeNames       = []string{"UINT8", "INT8", "FLOAT16", "BFLOAT16"}
	operationNames      = []string{"CONVOLUTION", "DW_CONVOLUTION", "ELTWISE", "MAXPOOL", "AVEPOOL", "CM_CONVOLUTION"}
	activationNames     = []string{"NONE", "RELU", "LRELU", "ADD", "SUB", "MULT"}
	swizzlingNames      = []string{"KEY_0", "KEY_1", "KEY_2", "KEY_3", "KEY_4", "KEY_5"}
	executionModeNames  = []string{"VECTOR", "MATRIX", "VECTOR_FP16", "CUBOID_16x16", "CUBOID_8x16", "CUBOID_4x16"}
	layoutNames         = []string{"ZMAJOR", "CMAJOR"}
	memoryLocationNames = []string{"DRAM", "CMX", "CSRAM", "UPA"}
	subsystemNames      = []string{"VPU_DPU", "VPU_SHV", "VPU_DMA", "VPU_CPU", "VPU_CMX"}
)

// Cardinalities, used by the descriptor encoders.
var (
	DeviceCount         = len(deviceNames)
	DataTypeCount       = len(dataTypeNames)
	OperationCount      = len(operationNames)
	ActivationCount     = len(activationNames)
	SwizzlingCount      = len(swizzlingNames)
	ExecutionModeCount  = len(executionModeNames)
	LayoutCount         = len(layoutNames)
	MemoryLocationCount = len(memoryLocationNames)
)

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("UNKNOWN(%d)", v)
	}
	return names[v]
}

func parseEnum(kind string, names []string, s string) (int, error) {
	for i, name := range names {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q (expected one of %s)", kind, s, strings.Join(names, ", "))
}

func (d Device) String() string             { return enumString(deviceNames, int(d)) }
func (d DataType) String() string           { return enumString(dataTypeNames, int(d)) }
func (o Operation) String() string          { return enumString(operationNames, int(o)) }
func (a ActivationFunction) String() string { return enumString(activationNames, int(a)) }
func (s Swizzling) String() string          { return enumString(swizzlingNames, int(s)) }
func (m ExecutionMode) String() string      { return enumString(executionModeNames, int(m)) }
func (l Layout) String() string             { return enumString(layoutNames, int(l)) }
func (m MemoryLocation) String() string     { return enumString(memoryLocationNames, int(m)) }
func (s Subsystem) String() string          { return enumString(subsystemNames, int(s)) }

func (d Device) Valid() bool             { return d >= 0 && int(d) < DeviceCount }
func (d DataType) Valid() bool           { return d >= 0 && int(d) < DataTypeCount }
func (o Operation) Valid() bool          { return o >= 0 && int(o) < OperationCount }
func (a ActivationFunction) Valid() bool { return a >= 0 && int(a) < ActivationCount }
func (s Swizzling) Valid() bool          { return s >= 0 && int(s) < SwizzlingCount }
func (m ExecutionMode) Valid() bool      { return m >= 0 && int(m) < ExecutionModeCount }
func (l Layout) Valid() bool             { return l >= 0 && int(l) < LayoutCount }
func (m MemoryLocation) Valid() bool     { return m >= 0 && int(m) < MemoryLocationCount }

func ParseDevice(s string) (Device, error) {
	v, err := parseEnum("device", deviceNames, s)
	return Device(v), err
}

func ParseDataType(s string) (DataType, error) {
	v, err := parseEnum("data type", dataTypeNames, s)
	return DataType(v), err
}

func ParseOperation(s string) (Operation, error) {
	v, err := parseEnum("operation", operationNames, s)
	return Operation(v), err
}

func ParseActivationFunction(s string) (ActivationFunction, error) {
	v, err := parseEnum("activation function", activationNames, s)
	return ActivationFunction(v), err
}

func ParseSwizzling(s string) (Swizzling, error) {
	v, err := parseEnum("swizzling", swizzlingNames, s)
	return Swizzling(v), err
}

func ParseExecutionMode(s string) (ExecutionMode, error) {
	v, err := parseEnum("execution mode", executionModeNames, s)
	return ExecutionMode(v), err
}

func ParseLayout(s string) (Layout, error) {
	v, err := parseEnum("layout", layoutNames, s)
	return Layout(v), err
}

func ParseMemoryLocation(s string) (MemoryLocation, error) {
	v, err := parseEnum("memory location", memoryLocationNames, s)
	return MemoryLocation(v), err
}

// Devices returns every supported device, oldest first.
func Devices() []Device {
	return []Device{VPU_2_0, VPU_2_1, VPU_2_7, VPU_4_0}
}

// Bytes is the storage size of one element.
func (d DataType) Bytes() int {
	switch d {
	case FLOAT16, BFLOAT16:
		return 2
	default:
		return 1
	}
}

// MarshalText and UnmarshalText let the enums travel as names in JSON and YAML.

func (d Device) MarshalText() ([]byte, error) { return []byte(d.String()), nil }
func (d *Device) UnmarshalText(b []byte) (err error) {
	*d, err = ParseDevice(string(b))
	return err
}

func (d DataType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }
func (d *DataType) UnmarshalText(b []byte) (err error) {
	*d, err = ParseDataType(string(b))
	return err
}

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o *Operation) UnmarshalText(b []byte) (err error) {
	*o, err = ParseOperation(string(b))
	return err
}

func (a ActivationFunction) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (a *ActivationFunction) UnmarshalText(b []byte) (err error) {
	*a, err = ParseActivationFunction(string(b))
	return err
}

func (s Swizzling) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *Swizzling) UnmarshalText(b []byte) (err error) {
	*s, err = ParseSwizzling(string(b))
	return err
}

func (m ExecutionMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (m *ExecutionMode) UnmarshalText(b []byte) (err error) {
	*m, err = ParseExecutionMode(string(b))
	return err
}

func (l Layout) MarshalText() ([]byte, error) { return []byte(l.String()), nil }
func (l *Layout) UnmarshalText(b []byte) (err error) {
	*l, err = ParseLayout(string(b))
	return err
}

func (m MemoryLocation) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (m *MemoryLocation) UnmarshalText(b []byte) (err error) {
	*m, err = ParseMemoryLocation(string(b))
	return err
}
