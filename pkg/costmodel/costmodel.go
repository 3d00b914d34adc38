// Package costmodel estimates DPU, DMA and SHAVE execution cycles, using a
// trained network for DPU workloads when one is available and the analytical
// models otherwise.
package costmodel

import (
	"fmt"

	"github.com/intel/npu-nn-cost-model/pkg/cache"
	"github.com/intel/npu-nn-cost-model/pkg/inference"
	"github.com/intel/npu-nn-cost-model/pkg/preprocessing"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"k8s.io/klog/v2"
)

type CostModel struct {
	runtime      *inference.Runtime
	preprocessor preprocessing.Preprocessor
	cache        *cache.LRU
	post         postProcessing
	power        map[vpu.Device]vpu.PowerCoefficients

	initialized bool
}

// New loads the network at path. It never fails: if the file is missing or
// is not a usable model, Initialized reports false and DPU costs come from
// the analytical model.
func New(path string, opts ...Option) *CostModel {
	return newCostModel(inference.Load(path), buildOptions(opts))
}

// NewFromBytes is New for a model already in memory.
func NewFromBytes(data []byte, opts ...Option) *CostModel {
	return newCostModel(inference.LoadBytes(data), buildOptions(opts))
}

func newCostModel(model *inference.Model, o options) *CostModel {
	m := &CostModel{
		runtime: inference.NewRuntime(model, o.batchSize),
		cache:   cache.NewLRU(o.cacheSize),
		power:   o.power,
	}
	if !m.runtime.Initialized() {
		return m
	}

	version := m.runtime.Version()
	pp, err := preprocessing.Make(version.InputVersion)
	if err != nil {
		klog.Warningf("model %q: %v", version.RawName, err)
		return m
	}
	post, err := postProcessingFor(version.OutputVersion)
	if err != nil {
		klog.Warningf("model %q: %v", version.RawName, err)
		return m
	}

	if got, want := pp.OutputSize(), m.runtime.InputSize(); got != want {
		klog.Warningf("model %q expects descriptors of %d values but interface %d produces %d; resizing",
			version.RawName, want, version.InputVersion, got)
		pp.SetSize(want)
	}

	m.preprocessor = pp
	m.post = post
	m.initialized = true
	klog.V(2).Infof("loaded cost model %q (descriptor size %d, batch %d)", version.RawName, pp.OutputSize(), m.runtime.BatchSize())
	return m
}

// Initialized reports whether DPU costs come from the network.
func (m *CostModel) Initialized() bool { return m.initialized }

// Version is the parsed model name; zero when not initialized.
func (m *CostModel) Version() inference.ModelVersion {
	if !m.initialized {
		return inference.ModelVersion{}
	}
	return m.runtime.Version()
}

// CacheStats reports the hits and misses of the inference cache.
func (m *CostModel) CacheStats() (hits, misses uint64) {
	return m.cache.Stats()
}

// infer returns the raw network output for the descriptor of wl.
func (m *CostModel) infer(wl vpu.DPUWorkload) (float32, error) {
	descriptor := m.preprocessor.Transform(wl)
	if v, ok := m.cache.Get(descriptor); ok {
		return v, nil
	}
	out, err := m.runtime.Predict(descriptor)
	if err != nil {
		return 0, fmt.Errorf("running cost model: %w", err)
	}
	m.cache.Add(descriptor, out[0])
	return out[0], nil
}

func isSparse(wl vpu.DPUWorkload) bool {
	return wl.ActSparsity > 0 || wl.WeightSparsity > 0 || wl.Input.Sparse || wl.Output.Sparse
}

func prepare(wl vpu.DPUWorkload) (vpu.DPUWorkload, error) {
	wl = wl.Sanitize()
	if err := wl.Validate(); err != nil {
		return wl, err
	}
	return wl, nil
}

// DPU estimates the cycles of a DPU workload.
func (m *CostModel) DPU(wl vpu.DPUWorkload) (uint32, error) {
	wl, err := prepare(wl)
	if err != nil {
		return 0, err
	}
	theoretical := vpu.DPUTheoreticalCycles(wl)
	if !m.initialized {
		return toCycles(float64(theoretical)), nil
	}

	value, err := m.infer(wl)
	if err != nil {
		return 0, err
	}
	return toCycles(m.post.cycles(value, theoretical, isSparse(wl))), nil
}

// DPUBatch is DPU for many workloads, running the network in chunks of the
// model batch size. Any invalid workload fails the whole batch.
func (m *CostModel) DPUBatch(wls []vpu.DPUWorkload) ([]uint32, error) {
	prepared := make([]vpu.DPUWorkload, len(wls))
	for i, wl := range wls {
		p, err := prepare(wl)
		if err != nil {
			return nil, fmt.Errorf("workload %d: %w", i, err)
		}
		prepared[i] = p
	}

	results := make([]uint32, len(prepared))
	if !m.initialized {
		for i, wl := range prepared {
			results[i] = toCycles(float64(vpu.DPUTheoreticalCycles(wl)))
		}
		return results, nil
	}

	values := make([]float32, len(prepared))
	var pending []int
	for i, wl := range prepared {
		if v, ok := m.cache.Get(m.preprocessor.Transform(wl)); ok {
			values[i] = v
			continue
		}
		pending = append(pending, i)
	}

	batch := m.runtime.BatchSize()
	size := m.preprocessor.OutputSize()
	for start := 0; start < len(pending); start += batch {
		chunk := pending[start:min(start+batch, len(pending))]
		chunkWls := make([]vpu.DPUWorkload, len(chunk))
		for j, i := range chunk {
			chunkWls[j] = prepared[i]
		}
		descriptors := m.preprocessor.TransformBatch(chunkWls, 1)
		out, err := m.runtime.Predict(descriptors)
		if err != nil {
			return nil, fmt.Errorf("running cost model: %w", err)
		}
		stride := len(out) / len(chunk)
		for j, i := range chunk {
			values[i] = out[j*stride]
			m.cache.Add(descriptors[j*size:(j+1)*size], values[i])
		}
	}

	for i, wl := range prepared {
		results[i] = toCycles(m.post.cycles(values[i], vpu.DPUTheoreticalCycles(wl), isSparse(wl)))
	}
	return results, nil
}

// HWUtilization is the fraction of the ideal MAC throughput achieved by wl.
func (m *CostModel) HWUtilization(wl vpu.DPUWorkload) (float64, error) {
	wl, err := prepare(wl)
	if err != nil {
		return 0, err
	}
	theoretical := vpu.DPUTheoreticalCycles(wl)

	var utilization float64
	if m.initialized && m.post.kind == resultHWOverhead {
		value, err := m.infer(wl)
		if err != nil {
			return 0, err
		}
		utilization = 1 / (m.post.overhead(value, isSparse(wl)) + 0.001)
	} else {
		cycles, err := m.DPU(wl)
		if err != nil {
			return 0, err
		}
		if cycles == 0 {
			return 0, nil
		}
		utilization = float64(theoretical) / float64(cycles)
	}

	if m.post.bounded || !m.initialized {
		utilization = min(max(utilization, 0), 1)
	}
	return utilization, nil
}

// HWOverhead is how many times slower than theory wl runs.
func (m *CostModel) HWOverhead(wl vpu.DPUWorkload) (float64, error) {
	wl, err := prepare(wl)
	if err != nil {
		return 0, err
	}
	theoretical := vpu.DPUTheoreticalCycles(wl)
	if theoretical == 0 {
		return 1, nil
	}
	cycles, err := m.DPU(wl)
	if err != nil {
		return 0, err
	}
	return float64(cycles) / float64(theoretical), nil
}

// DMA estimates a transfer of in to out between two memory locations,
// replicated to outputWriteTiles destinations.
func (m *CostModel) DMA(device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, outputWriteTiles int) (uint32, error) {
	return m.DMAWorkload(vpu.DMAWorkload{
		Device:           device,
		Input:            in,
		Output:           out,
		InputLocation:    src,
		OutputLocation:   dst,
		OutputWriteTiles: outputWriteTiles,
	})
}

func (m *CostModel) DMAWorkload(wl vpu.DMAWorkload) (uint32, error) {
	if err := wl.Validate(); err != nil {
		return 0, err
	}
	return toCycles(float64(vpu.DMATheoreticalCycles(wl))), nil
}

// SHAVE estimates a software kernel.
func (m *CostModel) SHAVE(wl vpu.SHAVEWorkload) (uint32, error) {
	if err := wl.Validate(); err != nil {
		return 0, err
	}
	return toCycles(float64(vpu.SHAVETheoreticalCycles(wl))), nil
}
