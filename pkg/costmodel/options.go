package costmodel

import "github.com/intel/npu-nn-cost-model/pkg/vpu"

const (
	DefaultCacheSize = 16384
	DefaultBatchSize = 1
)

type options struct {
	cacheSize int
	batchSize int
	power     map[vpu.Device]vpu.PowerCoefficients
}

type Option func(*options)

// WithCacheSize bounds the number of memoized inferences; 0 disables the cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithBatchSize sets how many descriptors one network run processes.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithPowerCoefficients supplies the capacitance and leakage figures of a device.
// Without them the dynamic and static power of that device are zero.
func WithPowerCoefficients(device vpu.Device, pc vpu.PowerCoefficients) Option {
	return func(o *options) { o.power[device] = pc }
}

func buildOptions(opts []Option) options {
	o := options{
		cacheSize: DefaultCacheSize,
		batchSize: DefaultBatchSize,
		power:     make(map[vpu.Device]vpu.PowerCoefficients),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
