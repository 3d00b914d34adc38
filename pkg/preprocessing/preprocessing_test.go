package preprocessing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

func testWorkload() vpu.DPUWorkload {
	return vpu.NewDPUWorkload(vpu.VPU_2_7, vpu.CONVOLUTION,
		vpu.NewTensor(56, 56, 16, 1, vpu.UINT8), vpu.NewTensor(56, 56, 16, 1, vpu.UINT8),
		vpu.CUBOID_16x16, 3, 3, 1, 1, 1, 1, 1, 1)
}

func TestSizes(t *testing.T) {
	grid := []struct {
		version int
		size    int
	}{
		{VersionLatest, 67},
		{Version01, 65},
		{Version10, 61},
		{Version11, 67},
	}
	for _, g := range grid {
		pp, err := Make(g.version)
		if err != nil {
			t.Fatalf("making preprocessor %d: %v", g.version, err)
		}
		if pp.InterfaceVersion() != g.version {
			t.Errorf("expected interface version %d, got %d", g.version, pp.InterfaceVersion())
		}
		if got := pp.OutputSize(); got != g.size {
			t.Errorf("version %d: expected size %d, got %d", g.version, g.size, got)
		}
		if got := len(pp.Transform(testWorkload())); got != g.size {
			t.Errorf("version %d: expected descriptor of %d values, got %d", g.version, g.size, got)
		}
	}

	if _, err := Make(7); err == nil {
		t.Errorf("expected error for unknown version")
	}
	if diff := cmp.Diff([]int{0, 1, 10, 11}, Versions()); diff != "" {
		t.Errorf("unexpected versions (-want +got):\n%s", diff)
	}
}

func TestTransformLayout(t *testing.T) {
	pp, err := Make(Version10)
	if err != nil {
		t.Fatalf("making preprocessor: %v", err)
	}
	d := pp.Transform(testWorkload())

	// device one-hot, operation one-hot, then the input tensor.
	want := []float32{0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 56, 56, 16, 1, 1, 0, 0, 0}
	if diff := cmp.Diff(want, d[:len(want)]); diff != "" {
		t.Errorf("unexpected descriptor prefix (-want +got):\n%s", diff)
	}
	// The output write tiles are the last slot.
	if d[len(d)-1] != 1 {
		t.Errorf("expected output write tiles 1, got %v", d[len(d)-1])
	}

	v01, _ := Make(Version01)
	d01 := v01.Transform(testWorkload())
	if diff := cmp.Diff(d, d01[:len(d)]); diff != "" {
		t.Errorf("version 1 should share the version 10 fields (-v10 +v01):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{0, 0, 0, 0}, d01[len(d):]); diff != "" {
		t.Errorf("reserved slots should be zero:\n%s", diff)
	}
}

func TestTransformBatchPads(t *testing.T) {
	pp, _ := Make(Version11)
	wl := testWorkload()
	single := pp.Transform(wl)

	batch := pp.TransformBatch([]vpu.DPUWorkload{wl, wl, wl}, 2)
	size := pp.OutputSize()
	if len(batch) != 4*size {
		t.Fatalf("expected 4 descriptors, got %d values", len(batch))
	}
	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(single, batch[i*size:(i+1)*size]); diff != "" {
			t.Errorf("descriptor %d differs from single transform:\n%s", i, diff)
		}
	}
	for _, v := range batch[3*size:] {
		if v != 0 {
			t.Fatalf("padding descriptor should be zero")
		}
	}
}

func TestSetSize(t *testing.T) {
	pp, _ := Make(Version11)
	full := pp.Transform(testWorkload())

	pp.SetSize(70)
	grown := pp.Transform(testWorkload())
	if diff := cmp.Diff(full, grown[:67]); diff != "" {
		t.Errorf("growing should keep the encoded fields:\n%s", diff)
	}

	pp.SetSize(20)
	shrunk := pp.Transform(testWorkload())
	if diff := cmp.Diff(full[:20], shrunk); diff != "" {
		t.Errorf("shrinking should truncate:\n%s", diff)
	}
}

func TestOutputWriteTilesEncoded(t *testing.T) {
	for _, version := range []int{Version10, Version11} {
		pp, _ := Make(version)
		wl := testWorkload()
		wl.OutputWriteTiles = 4
		d := pp.Transform(wl)
		if d[len(d)-1] != 4 {
			t.Errorf("version %d: expected output write tiles 4 in the last slot, got %v", version, d[len(d)-1])
		}
	}

	// Version 1 carries it ahead of the reserved slots.
	pp, _ := Make(Version01)
	wl := testWorkload()
	wl.OutputWriteTiles = 4
	d := pp.Transform(wl)
	if got := d[len(d)-1-version01Reserved]; got != 4 {
		t.Errorf("version 1: expected output write tiles 4, got %v", got)
	}
}
