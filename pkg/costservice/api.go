package costservice

import "github.com/intel/npu-nn-cost-model/pkg/vpu"

type LoadModelRequest struct {
	// Model is a path, resolved against the server model directory, or
	// "blob:<key>" to fetch it from the configured blobstore. Preloaded
	// models are addressed by their configured id.
	Model string `json:"model"`
}

type LoadModelResponse struct {
	Model       string `json:"model"`
	Initialized bool   `json:"initialized"`
	Version     string `json:"version,omitempty"`
}

// A request with an empty Model is answered by the analytical model.
type DPURequest struct {
	Model    string          `json:"model"`
	Workload vpu.DPUWorkload `json:"workload"`
}

type DMARequest struct {
	Model    string          `json:"model"`
	Workload vpu.DMAWorkload `json:"workload"`
}

type SHAVERequest struct {
	Model    string            `json:"model"`
	Workload vpu.SHAVEWorkload `json:"workload"`
}

type CostResponse struct {
	Cycles uint32 `json:"cycles"`
}
