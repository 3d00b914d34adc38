package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/intel/npu-nn-cost-model/pkg/optimization"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"github.com/spf13/pflag"
)

// parseInts splits s on sep into exactly n non-negative integers.
func parseInts(s, sep string, n int) ([]int, error) {
	parts := strings.Split(s, sep)
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values separated by %q, got %q", n, sep, s)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", s, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("parsing %q: values must not be negative", s)
		}
		out[i] = v
	}
	return out, nil
}

// parseTensor reads WxHxC or WxHxCxB.
func parseTensor(s string, dtype vpu.DataType) (vpu.Tensor, error) {
	if strings.Count(s, "x") == 2 {
		s += "x1"
	}
	dims, err := parseInts(s, "x", 4)
	if err != nil {
		return vpu.Tensor{}, fmt.Errorf("tensor: %w", err)
	}
	return vpu.NewTensor(dims[0], dims[1], dims[2], dims[3], dtype), nil
}

type tensorFlags struct {
	Device string
	DType  string
	Input  string
	Output string
}

func (f *tensorFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Device, "device", "VPU_2_7", "device: "+strings.Join(deviceNames(), ", "))
	fs.StringVar(&f.DType, "dtype", "UINT8", "element type of both tensors")
	fs.StringVar(&f.Input, "input", "56x56x64", "input tensor as WxHxC[xB]")
	fs.StringVar(&f.Output, "output", "", "output tensor as WxHxC[xB]; defaults to the input")
}

func (f *tensorFlags) parse() (vpu.Device, vpu.Tensor, vpu.Tensor, error) {
	device, err := vpu.ParseDevice(f.Device)
	if err != nil {
		return 0, vpu.Tensor{}, vpu.Tensor{}, err
	}
	dtype, err := vpu.ParseDataType(f.DType)
	if err != nil {
		return 0, vpu.Tensor{}, vpu.Tensor{}, err
	}
	in, err := parseTensor(f.Input, dtype)
	if err != nil {
		return 0, vpu.Tensor{}, vpu.Tensor{}, err
	}
	out := in
	if f.Output != "" {
		if out, err = parseTensor(f.Output, dtype); err != nil {
			return 0, vpu.Tensor{}, vpu.Tensor{}, err
		}
	}
	return device, in, out, nil
}

type layerFlags struct {
	tensorFlags
	Op      string
	Kernel  string
	Stride  string
	Padding string
}

func (f *layerFlags) register(fs *pflag.FlagSet) {
	f.tensorFlags.register(fs)
	fs.StringVar(&f.Op, "op", "CONVOLUTION", "operation")
	fs.StringVar(&f.Kernel, "kernel", "3x3", "kernel as WxH")
	fs.StringVar(&f.Stride, "stride", "1x1", "stride as WxH")
	fs.StringVar(&f.Padding, "padding", "0,0,0,0", "padding as top,bottom,left,right")
}

func (f *layerFlags) parse() (optimization.Layer, error) {
	var l optimization.Layer
	var err error
	if l.Device, l.Input, l.Output, err = f.tensorFlags.parse(); err != nil {
		return l, err
	}
	if l.Op, err = vpu.ParseOperation(f.Op); err != nil {
		return l, err
	}
	kernel, err := parseInts(f.Kernel, "x", 2)
	if err != nil {
		return l, fmt.Errorf("kernel: %w", err)
	}
	stride, err := parseInts(f.Stride, "x", 2)
	if err != nil {
		return l, fmt.Errorf("stride: %w", err)
	}
	pad, err := parseInts(f.Padding, ",", 4)
	if err != nil {
		return l, fmt.Errorf("padding: %w", err)
	}
	l.KernelW, l.KernelH = kernel[0], kernel[1]
	l.StrideW, l.StrideH = stride[0], stride[1]
	l.Padding = vpu.Padding{Top: pad[0], Bottom: pad[1], Left: pad[2], Right: pad[3]}
	return l, nil
}

func deviceNames() []string {
	var names []string
	for _, d := range vpu.Devices() {
		names = append(names, d.String())
	}
	return names
}
