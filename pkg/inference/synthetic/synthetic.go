// Package synthetic builds small cost-model networks with known behaviour,
// for smoke tests and for exercising the serving stack without trained weights.
package synthetic

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/intel/npu-nn-cost-model/pkg/inference"
	"github.com/intel/npu-nn-cost-model/pkg/preprocessing"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// DefaultName is the name given to generated device models: descriptor
// interface 11, bounded hardware overhead output.
const DefaultName = "VPUNN-11-1"

// DescriptorWidth is the input width a network for the named model needs.
func DescriptorWidth(name string) (int, error) {
	version, err := inference.ParseModelVersion(name)
	if err != nil {
		return 0, err
	}
	pp, err := preprocessing.Make(version.InputVersion)
	if err != nil {
		return 0, err
	}
	return pp.OutputSize(), nil
}

// Constant returns a model that predicts value for every descriptor.
func Constant(name string, value float32) ([]byte, error) {
	width, err := DescriptorWidth(name)
	if err != nil {
		return nil, err
	}
	return ConstantWithWidth(name, width, value)
}

// ConstantWithWidth is Constant for an explicit input width.
func ConstantWithWidth(name string, width int, value float32) ([]byte, error) {
	b := inference.NewBuilder(name)
	x := b.Input(width)
	b.Output(b.FullyConnected(x, [][]float32{make([]float32, width)}, []float32{value}, ""))
	return b.Bytes()
}

// MLP returns a two-layer network with seeded random weights. Its output
// lies in (1, 2), which reads as a plausible hardware overhead.
func MLP(name string, hidden int, seed uint64) ([]byte, error) {
	width, err := DescriptorWidth(name)
	if err != nil {
		return nil, err
	}
	if hidden <= 0 {
		return nil, fmt.Errorf("hidden width must be positive, got %d", hidden)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))

	random := func(rows, cols int, scale float64) [][]float32 {
		m := make([][]float32, rows)
		for i := range m {
			m[i] = make([]float32, cols)
			for j := range m[i] {
				m[i][j] = float32(rng.NormFloat64() * scale)
			}
		}
		return m
	}

	b := inference.NewBuilder(name)
	x := b.Input(width)
	norm := b.L2Normalization(x)
	h := b.FullyConnected(norm, random(hidden, width, 1), make([]float32, hidden), "relu")
	y := b.FullyConnected(h, random(1, hidden, 1/float64(hidden)), []float32{0}, "sigmoid")
	one := b.Constant([]int{1}, []float32{1})
	b.Output(b.AddBias(y, one))
	return b.Bytes()
}

// WriteDeviceModels writes an MLP for every device to dir/<device>.vpunn,
// using the lower-case device name.
func WriteDeviceModels(dir string, seed uint64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %q: %w", dir, err)
	}
	for _, device := range vpu.Devices() {
		data, err := MLP(DefaultName, 32, seed+uint64(device))
		if err != nil {
			return err
		}
		path := filepath.Join(dir, strings.ToLower(device.String())+".vpunn")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %q: %w", path, err)
		}
	}
	return nil
}
