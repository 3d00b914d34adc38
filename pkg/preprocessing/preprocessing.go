// Package preprocessing turns DPU workloads into the fixed-width feature
// vectors (descriptors) consumed by the cost-model networks.
package preprocessing

import (
	"fmt"
	"sort"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
)

// Interface versions understood by Make.
const (
	VersionLatest = 0
	Version01     = 1
	Version10     = 10
	Version11     = 11
)

type Preprocessor interface {
	// InterfaceVersion is the descriptor layout this preprocessor produces.
	InterfaceVersion() int
	// OutputSize is the width of one descriptor.
	OutputSize() int
	// SetSize changes the descriptor width. Extra slots are zero; a smaller
	// width truncates the encoded fields.
	SetSize(n int)
	Transform(wl vpu.DPUWorkload) []float32
	// TransformBatch concatenates the descriptors of wls, zero-padding the
	// count up to a multiple of pad.
	TransformBatch(wls []vpu.DPUWorkload, pad int) []float32
}

type encodeFunc func(e *encoder, wl vpu.DPUWorkload)

type preprocessor struct {
	version int
	encode  encodeFunc
	size    int
}

func newPreprocessor(version int, encode encodeFunc, reserved int) *preprocessor {
	return &preprocessor{
		version: version,
		encode:  encode,
		size:    contentSize(encode) + reserved,
	}
}

// contentSize runs encode without writing to learn how many slots it fills.
func contentSize(encode encodeFunc) int {
	e := &encoder{}
	encode(e, vpu.DPUWorkload{})
	return e.offset
}

func (p *preprocessor) InterfaceVersion() int { return p.version }
func (p *preprocessor) OutputSize() int       { return p.size }
func (p *preprocessor) SetSize(n int)         { p.size = n }

func (p *preprocessor) Transform(wl vpu.DPUWorkload) []float32 {
	out := make([]float32, p.size)
	p.encode(&encoder{out: out}, wl)
	return out
}

func (p *preprocessor) TransformBatch(wls []vpu.DPUWorkload, pad int) []float32 {
	rows := len(wls)
	if pad > 1 && rows%pad != 0 {
		rows += pad - rows%pad
	}
	out := make([]float32, rows*p.size)
	for i, wl := range wls {
		p.encode(&encoder{out: out[i*p.size : (i+1)*p.size]}, wl)
	}
	return out
}

var factories = map[int]func() Preprocessor{
	VersionLatest: func() Preprocessor { return newPreprocessor(VersionLatest, encodeV11, 0) },
	Version01:     func() Preprocessor { return newPreprocessor(Version01, encodeV10, version01Reserved) },
	Version10:     func() Preprocessor { return newPreprocessor(Version10, encodeV10, 0) },
	Version11:     func() Preprocessor { return newPreprocessor(Version11, encodeV11, 0) },
}

// Exists reports whether Make supports version.
func Exists(version int) bool {
	_, ok := factories[version]
	return ok
}

// Make returns a fresh preprocessor for the descriptor interface version.
func Make(version int) (Preprocessor, error) {
	factory, ok := factories[version]
	if !ok {
		return nil, fmt.Errorf("no preprocessing for descriptor interface %d (supported: %v)", version, Versions())
	}
	return factory(), nil
}

// Versions lists the supported interface versions in ascending order.
func Versions() []int {
	versions := make([]int, 0, len(factories))
	for v := range factories {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
