package inference

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// Runtime owns a model allocated for a fixed batch and serializes access to it.
type Runtime struct {
	mu sync.Mutex

	model       *Model
	version     ModelVersion
	batch       int
	initialized bool
}

// NewRuntime prepares model for batches of up to batch descriptors. The
// runtime is uninitialized if the model is, or if its name cannot be parsed.
func NewRuntime(model *Model, batch int) *Runtime {
	r := &Runtime{model: model, batch: batch}
	if !model.Initialized() {
		return r
	}

	version, err := ParseModelVersion(model.Name())
	if err != nil {
		klog.Warningf("model name %q has no valid version: %v", model.Name(), err)
		return r
	}
	r.version = version

	if err := model.AllocateTensors(batch); err != nil {
		klog.Warningf("allocating model tensors: %v", err)
		return r
	}
	r.initialized = true
	return r
}

func (r *Runtime) Initialized() bool     { return r.initialized }
func (r *Runtime) Version() ModelVersion { return r.version }
func (r *Runtime) BatchSize() int        { return r.batch }

// InputSize is the descriptor width the network expects.
func (r *Runtime) InputSize() int { return r.model.InputWidth() }

// OutputSize is the number of values produced per descriptor.
func (r *Runtime) OutputSize() int { return r.model.OutputWidth() }

// Predict runs up to BatchSize descriptors packed in input and returns the
// outputs of those rows only.
func (r *Runtime) Predict(input []float32) ([]float32, error) {
	if !r.initialized {
		return nil, fmt.Errorf("runtime is not initialized")
	}
	width := r.InputSize()
	if len(input) == 0 || len(input)%width != 0 {
		return nil, fmt.Errorf("input length %d is not a multiple of descriptor size %d", len(input), width)
	}
	rows := len(input) / width
	if rows > r.batch {
		return nil, fmt.Errorf("%d descriptors exceed batch size %d", rows, r.batch)
	}

	padded := input
	if rows < r.batch {
		padded = make([]float32, r.batch*width)
		copy(padded, input)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.model.SetInputs(padded); err != nil {
		return nil, err
	}
	if err := r.model.Predict(); err != nil {
		return nil, err
	}
	out := r.model.Outputs()
	if n := rows * r.OutputSize(); n <= len(out) {
		return out[:n], nil
	}
	return nil, fmt.Errorf("model produced %d values for %d descriptors of width %d", len(out), rows, r.OutputSize())
}
