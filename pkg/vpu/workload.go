package vpu

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkload is wrapped by every validation failure.
var ErrInvalidWorkload = errors.New("invalid workload")

// Padding is expressed in elements.
type Padding struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// DPUWorkload is one unit of work executed on a single DPU.
type DPUWorkload struct {
	Device        Device        `json:"device"`
	Op            Operation     `json:"op"`
	Input         Tensor        `json:"input"`
	Output        Tensor        `json:"output"`
	ExecutionMode ExecutionMode `json:"executionMode"`

	KernelW int     `json:"kernelW"`
	KernelH int     `json:"kernelH"`
	StrideW int     `json:"strideW"`
	StrideH int     `json:"strideH"`
	Padding Padding `json:"padding"`

	Activation      ActivationFunction `json:"activation,omitempty"`
	ActSparsity     float64            `json:"actSparsity,omitempty"`
	WeightSparsity  float64            `json:"weightSparsity,omitempty"`
	InputSwizzling  Swizzling          `json:"inputSwizzling,omitempty"`
	OutputSwizzling Swizzling          `json:"outputSwizzling,omitempty"`

	// OutputWriteTiles is the number of tiles the output is broadcast to.
	OutputWriteTiles int `json:"outputWriteTiles,omitempty"`
}

// NewDPUWorkload builds a workload with no activation, no sparsity and a
// single output tile. It never fails.
func NewDPUWorkload(device Device, op Operation, input, output Tensor, mode ExecutionMode,
	kh, kw, sh, sw, padTop, padBottom, padLeft, padRight int) DPUWorkload {
	return DPUWorkload{
		Device:           device,
		Op:               op,
		Input:            input,
		Output:           output,
		ExecutionMode:    mode,
		KernelW:          kw,
		KernelH:          kh,
		StrideW:          sw,
		StrideH:          sh,
		Padding:          Padding{Top: padTop, Bottom: padBottom, Left: padLeft, Right: padRight},
		OutputWriteTiles: 1,
	}
}

// Tiles returns OutputWriteTiles, treating zero as one.
func (w DPUWorkload) Tiles() int {
	if w.OutputWriteTiles <= 0 {
		return 1
	}
	return w.OutputWriteTiles
}

// Sanitize returns a copy of w with the input channels forced to match the
// output channels for operations that cannot change the channel count.
func (w DPUWorkload) Sanitize() DPUWorkload {
	switch w.Op {
	case ELTWISE, DW_CONVOLUTION, MAXPOOL, AVEPOOL:
		w.Input.Channels = w.Output.Channels
	}
	if w.OutputWriteTiles <= 0 {
		w.OutputWriteTiles = 1
	}
	return w
}

// Validate reports whether the workload can be costed on its device.
func (w DPUWorkload) Validate() error {
	if !w.Device.Valid() {
		return fmt.Errorf("unknown device %d: %w", int(w.Device), ErrInvalidWorkload)
	}
	if !w.Op.Valid() {
		return fmt.Errorf("unknown operation %d: %w", int(w.Op), ErrInvalidWorkload)
	}
	if err := w.Input.validate("input"); err != nil {
		return err
	}
	if err := w.Output.validate("output"); err != nil {
		return err
	}
	if !w.ExecutionMode.Valid() {
		return fmt.Errorf("unknown execution mode %d: %w", int(w.ExecutionMode), ErrInvalidWorkload)
	}
	if !ExecutionModeSupported(w.Device, w.ExecutionMode) {
		return fmt.Errorf("execution mode %v is not supported on %v: %w", w.ExecutionMode, w.Device, ErrInvalidWorkload)
	}
	if w.KernelW <= 0 || w.KernelH <= 0 {
		return fmt.Errorf("kernel %dx%d must be positive: %w", w.KernelW, w.KernelH, ErrInvalidWorkload)
	}
	if w.StrideW <= 0 || w.StrideH <= 0 {
		return fmt.Errorf("stride %dx%d must be positive: %w", w.StrideW, w.StrideH, ErrInvalidWorkload)
	}
	p := w.Padding
	if p.Top < 0 || p.Bottom < 0 || p.Left < 0 || p.Right < 0 {
		return fmt.Errorf("padding %+v must not be negative: %w", p, ErrInvalidWorkload)
	}
	if !w.Activation.Valid() {
		return fmt.Errorf("unknown activation function %d: %w", int(w.Activation), ErrInvalidWorkload)
	}
	if !w.InputSwizzling.Valid() || !w.OutputSwizzling.Valid() {
		return fmt.Errorf("unknown swizzling key: %w", ErrInvalidWorkload)
	}
	if w.ActSparsity < 0 || w.ActSparsity > 1 || w.WeightSparsity < 0 || w.WeightSparsity > 1 {
		return fmt.Errorf("sparsity must be within [0,1]: %w", ErrInvalidWorkload)
	}
	return nil
}

func (w DPUWorkload) String() string {
	return fmt.Sprintf("%v %v in=[%v] out=[%v] mode=%v k=%dx%d s=%dx%d pad=%+v",
		w.Device, w.Op, w.Input, w.Output, w.ExecutionMode, w.KernelW, w.KernelH, w.StrideW, w.StrideH, w.Padding)
}

// DMAWorkload is a single transfer between two memory locations.
type DMAWorkload struct {
	Device         Device         `json:"device"`
	Input          Tensor         `json:"input"`
	Output         Tensor         `json:"output"`
	InputLocation  MemoryLocation `json:"inputLocation"`
	OutputLocation MemoryLocation `json:"outputLocation"`

	// OutputWriteTiles is the replication factor of the destination.
	OutputWriteTiles int `json:"outputWriteTiles,omitempty"`
}

// NewDMAWorkload builds a DRAM to CMX transfer with a single destination.
func NewDMAWorkload(device Device, input, output Tensor) DMAWorkload {
	return DMAWorkload{
		Device:           device,
		Input:            input,
		Output:           output,
		InputLocation:    DRAM,
		OutputLocation:   CMX,
		OutputWriteTiles: 1,
	}
}

func (w DMAWorkload) Validate() error {
	if !w.Device.Valid() {
		return fmt.Errorf("unknown device %d: %w", int(w.Device), ErrInvalidWorkload)
	}
	if err := w.Input.validate("input"); err != nil {
		return err
	}
	if err := w.Output.validate("output"); err != nil {
		return err
	}
	for _, loc := range []MemoryLocation{w.InputLocation, w.OutputLocation} {
		if !Characteristics(w.Device).HasMemoryLocation(loc) {
			return fmt.Errorf("memory location %v is not available on %v: %w", loc, w.Device, ErrInvalidWorkload)
		}
	}
	if w.OutputWriteTiles < 0 {
		return fmt.Errorf("output write tiles %d must not be negative: %w", w.OutputWriteTiles, ErrInvalidWorkload)
	}
	return nil
}

// SHAVEWorkload is a software kernel executed on the SHAVE cores.
type SHAVEWorkload struct {
	Name   string `json:"name"`
	Device Device `json:"device"`
	Input  Tensor `json:"input"`
	Output Tensor `json:"output"`
}

// NewSHAVEWorkload fails only when name is not a known kernel.
func NewSHAVEWorkload(name string, device Device, input, output Tensor) (SHAVEWorkload, error) {
	if _, ok := LookupShaveKernel(name); !ok {
		return SHAVEWorkload{}, fmt.Errorf("unknown SHAVE kernel %q", name)
	}
	return SHAVEWorkload{Name: name, Device: device, Input: input, Output: output}, nil
}

func (w SHAVEWorkload) Validate() error {
	if _, ok := LookupShaveKernel(w.Name); !ok {
		return fmt.Errorf("unknown SHAVE kernel %q: %w", w.Name, ErrInvalidWorkload)
	}
	if !w.Device.Valid() {
		return fmt.Errorf("unknown device %d: %w", int(w.Device), ErrInvalidWorkload)
	}
	if err := w.Input.validate("input"); err != nil {
		return err
	}
	return w.Output.validate("output")
}
