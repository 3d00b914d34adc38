package vpu

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseEnums(t *testing.T) {
	d, err := ParseDevice("vpu_2_7")
	if err != nil {
		t.Fatalf("parsing device: %v", err)
	}
	if d != VPU_2_7 {
		t.Errorf("expected VPU_2_7, got %v", d)
	}

	if _, err := ParseDevice("VPU_9_9"); err == nil {
		t.Errorf("expected error parsing unknown device")
	}

	m, err := ParseExecutionMode("CUBOID_16x16")
	if err != nil {
		t.Fatalf("parsing execution mode: %v", err)
	}
	if m.String() != "CUBOID_16x16" {
		t.Errorf("unexpected round trip %q", m.String())
	}

	if got := Operation(42).String(); got != "UNKNOWN(42)" {
		t.Errorf("unexpected name for unknown operation: %q", got)
	}
}

func TestTensorJSONUsesNames(t *testing.T) {
	b, err := json.Marshal(NewTensor(1, 2, 3, 4, FLOAT16))
	if err != nil {
		t.Fatalf("marshalling tensor: %v", err)
	}
	want := `{"width":1,"height":2,"channels":3,"batch":4,"dtype":"FLOAT16"}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestTensorSizeAndStrides(t *testing.T) {
	tensor := NewTensor(2, 3, 4, 1, FLOAT16)
	if got := tensor.Size(); got != 48 {
		t.Errorf("expected size 48, got %d", got)
	}

	if diff := cmp.Diff([4]int{8, 16, 2, 48}, tensor.Strides()); diff != "" {
		t.Errorf("unexpected ZMAJOR strides (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([4]int{2, 4, 12, 48}, tensor.WithLayout(CMAJOR).Strides()); diff != "" {
		t.Errorf("unexpected CMAJOR strides (-want +got):\n%s", diff)
	}

	if got := NewTensor(56, 56, 64, 1, UINT8).Size(); got != 200704 {
		t.Errorf("expected size 200704, got %d", got)
	}
}

func convWorkload(device Device, mode ExecutionMode) DPUWorkload {
	in := NewTensor(56, 56, 64, 1, UINT8)
	out := NewTensor(56, 56, 64, 1, UINT8)
	return NewDPUWorkload(device, CONVOLUTION, in, out, mode, 3, 3, 1, 1, 0, 0, 0, 0)
}

func TestDPUTheoreticalCycles(t *testing.T) {
	grid := []struct {
		name string
		wl   DPUWorkload
		want int
	}{
		{name: "conv VPU_2_0", wl: convWorkload(VPU_2_0, MATRIX), want: 451584},
		// CMX reads dominate on VPU_2_7.
		{name: "conv VPU_2_7", wl: convWorkload(VPU_2_7, CUBOID_16x16), want: 112320},
		{
			name: "eltwise VPU_2_0",
			wl: NewDPUWorkload(VPU_2_0, ELTWISE, NewTensor(16, 16, 32, 1, UINT8), NewTensor(16, 16, 32, 1, UINT8),
				VECTOR, 1, 1, 1, 1, 0, 0, 0, 0),
			want: 2,
		},
		{
			name: "empty output",
			wl:   NewDPUWorkload(VPU_2_0, CONVOLUTION, NewTensor(4, 4, 16, 1, UINT8), Tensor{}, MATRIX, 1, 1, 1, 1, 0, 0, 0, 0),
			want: 0,
		},
	}

	for _, g := range grid {
		t.Run(g.name, func(t *testing.T) {
			if got := DPUTheoreticalCycles(g.wl); got != g.want {
				t.Errorf("expected %d cycles, got %d", g.want, got)
			}
		})
	}
}

func TestKernelClampedToInput(t *testing.T) {
	small := NewDPUWorkload(VPU_2_0, CONVOLUTION, NewTensor(2, 2, 16, 1, UINT8), NewTensor(2, 2, 16, 1, UINT8),
		MATRIX, 7, 7, 1, 1, 0, 0, 0, 0)
	clamped := small
	clamped.KernelW, clamped.KernelH = 2, 2

	if a, b := DPUTheoreticalCycles(small), DPUTheoreticalCycles(clamped); a != b {
		t.Errorf("oversized kernel should cost the same as the clamped one: %d vs %d", a, b)
	}
}

func TestDMATheoreticalCycles(t *testing.T) {
	in := NewTensor(56, 56, 64, 1, UINT8)
	out := NewTensor(56, 56, 64, 1, UINT8)

	if got := DMATheoreticalCycles(NewDMAWorkload(VPU_2_0, in, out)); got != 7025 {
		t.Errorf("VPU_2_0: expected 7025 cycles, got %d", got)
	}
	if got := DMATheoreticalCycles(NewDMAWorkload(VPU_2_7, in, out)); got != 10614 {
		t.Errorf("VPU_2_7: expected 10614 cycles, got %d", got)
	}
}

func TestDMACMXToCMX(t *testing.T) {
	in := NewTensor(56, 56, 64, 1, UINT8)
	out := NewTensor(56, 56, 64, 1, UINT8)
	cmx := func(device Device) DMAWorkload {
		wl := NewDMAWorkload(device, in, out)
		wl.InputLocation, wl.OutputLocation = CMX, CMX
		return wl
	}

	grid := []struct {
		device Device
		want   int
	}{
		// Half duplex: 16 bytes per CMX cycle.
		{VPU_2_7, 16776},
		// Full duplex: 32 bytes per CMX cycle.
		{VPU_4_0, 10986},
	}
	for _, g := range grid {
		if got := DMATheoreticalCycles(cmx(g.device)); got != g.want {
			t.Errorf("%v: expected %d cycles, got %d", g.device, g.want, got)
		}
	}
}

func TestSHAVETheoreticalCycles(t *testing.T) {
	in := NewTensor(56, 56, 64, 1, UINT8)
	out := NewTensor(56, 56, 64, 1, UINT8)

	wl, err := NewSHAVEWorkload("HardSigmoid", VPU_2_7, in, out)
	if err != nil {
		t.Fatalf("creating SHAVE workload: %v", err)
	}
	if got := SHAVETheoreticalCycles(wl); got != 371874 {
		t.Errorf("expected 371874 cycles, got %d", got)
	}

	for _, name := range []string{"Sigmoid", "Swish", "HardSwish", "hardswish"} {
		wl, err := NewSHAVEWorkload(name, VPU_2_7, in, out)
		if err != nil {
			t.Fatalf("creating SHAVE workload %q: %v", name, err)
		}
		if got := SHAVETheoreticalCycles(wl); got <= 0 {
			t.Errorf("%s: expected positive cycles, got %d", name, got)
		}
	}

	if _, err := NewSHAVEWorkload("NoSuchKernel", VPU_2_7, in, out); err == nil {
		t.Errorf("expected error for unknown kernel")
	}
}

func TestValidate(t *testing.T) {
	if err := convWorkload(VPU_2_7, CUBOID_16x16).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	bad := []DPUWorkload{
		convWorkload(VPU_2_0, CUBOID_16x16),
		convWorkload(VPU_2_7, MATRIX),
		convWorkload(Device(11), MATRIX),
		NewDPUWorkload(VPU_2_0, CONVOLUTION, NewTensor(0, 0, 0, 0, UINT8), NewTensor(1, 1, 1, 1, UINT8), MATRIX, 1, 1, 1, 1, 0, 0, 0, 0),
		NewDPUWorkload(VPU_2_0, CONVOLUTION, NewTensor(4, 4, 4, 1, UINT8), NewTensor(4, 4, 4, 1, UINT8), MATRIX, 1, 1, 0, 0, 0, 0, 0, 0),
	}
	for i, wl := range bad {
		err := wl.Validate()
		if !errors.Is(err, ErrInvalidWorkload) {
			t.Errorf("case %d: expected ErrInvalidWorkload, got %v", i, err)
		}
	}

	dma := NewDMAWorkload(VPU_2_7, NewTensor(1, 1, 16, 1, UINT8), NewTensor(1, 1, 16, 1, UINT8))
	dma.InputLocation = UPA
	if err := dma.Validate(); !errors.Is(err, ErrInvalidWorkload) {
		t.Errorf("expected UPA to be rejected on VPU_2_7, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	wl := NewDPUWorkload(VPU_2_7, DW_CONVOLUTION, NewTensor(8, 8, 3, 1, UINT8), NewTensor(8, 8, 32, 1, UINT8),
		CUBOID_16x16, 3, 3, 1, 1, 1, 1, 1, 1)
	wl.OutputWriteTiles = 0

	got := wl.Sanitize()
	if got.Input.Channels != 32 {
		t.Errorf("expected input channels forced to 32, got %d", got.Input.Channels)
	}
	if got.OutputWriteTiles != 1 {
		t.Errorf("expected output write tiles defaulted to 1, got %d", got.OutputWriteTiles)
	}
	if wl.Input.Channels != 3 {
		t.Errorf("Sanitize must not modify its receiver")
	}
}

func TestPowerFactor(t *testing.T) {
	grid := []struct {
		device   Device
		op       Operation
		channels int
		dtype    DataType
		want     float64
	}{
		{VPU_2_7, CONVOLUTION, 64, UINT8, 1.6358 * 0.79},
		{VPU_2_7, CONVOLUTION, 64, FLOAT16, 1.6358},
		{VPU_2_0, CONVOLUTION, 64, FLOAT16, 0.87},
		// Interpolated between 32 and 64, then rounded up.
		{VPU_2_0, CONVOLUTION, 48, INT8, 1},
		{VPU_2_0, DW_CONVOLUTION, 8, UINT8, 5.84},
		{VPU_2_0, CONVOLUTION, 4096, UINT8, 0.87},
		{VPU_4_0, CONVOLUTION, 64, UINT8, 0},
	}
	for _, g := range grid {
		got := PowerFactor(g.device, g.op, g.channels, g.dtype)
		if math.Abs(got-g.want) > 1e-9 {
			t.Errorf("PowerFactor(%v, %v, %d, %v): expected %v, got %v", g.device, g.op, g.channels, g.dtype, g.want, got)
		}
	}
}

func TestDVFS(t *testing.T) {
	if diff := cmp.Diff(DVFS{Voltage: 0.9, FrequencyMHz: 1300}, DefaultDVFS(VPU_2_7)); diff != "" {
		t.Errorf("unexpected default DVFS (-want +got):\n%s", diff)
	}

	pc := PowerCoefficients{Leakage: map[Subsystem]float64{VPU_DPU: 2}}
	got := pc.StaticPower(VPU_4_0, VPU_DPU, DVFS{Voltage: 0.425, FrequencyMHz: 950})
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("expected static power 1, got %v", got)
	}

	if got := DynamicPower(2, 0.5, DVFS{Voltage: 1, FrequencyMHz: 100}); got != 100 {
		t.Errorf("expected dynamic power 100, got %v", got)
	}
}
