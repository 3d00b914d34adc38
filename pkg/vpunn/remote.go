package vpunn

import (
	"context"
	"fmt"
	"time"

	"github.com/intel/npu-nn-cost-model/pkg/costservice"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"k8s.io/klog/v2"
)

const defaultPollInterval = 100 * time.Millisecond

// RemoteEngine evaluates models in a cost service.
type RemoteEngine struct {
	client *costservice.Client

	// PollInterval is how often WaitReady checks the service.
	PollInterval time.Duration
}

var _ Engine = (*RemoteEngine)(nil)

func NewRemoteEngine(client *costservice.Client) *RemoteEngine {
	return &RemoteEngine{client: client, PollInterval: defaultPollInterval}
}

// WaitReady polls the service until it reports serving or ctx is done.
func (e *RemoteEngine) WaitReady(ctx context.Context) error {
	log := klog.FromContext(ctx)

	interval := e.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		serving, err := e.client.Serving(ctx)
		if err == nil && serving {
			return nil
		}
		if err != nil {
			log.V(2).Info("cost service not reachable yet", "err", err)
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("waiting for cost service: %w (last error: %v)", ctx.Err(), err)
			}
			return fmt.Errorf("waiting for cost service: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// CreateVPUCostModel asks the service to load path, which is resolved
// against the service's model directory. If the request fails the returned
// model is not initialized and, like a local model, answers with the
// analytical estimates.
func (e *RemoteEngine) CreateVPUCostModel(ctx context.Context, path string) Model {
	m := &remoteModel{client: e.client}
	resp, err := e.client.LoadModel(ctx, path)
	if err != nil {
		klog.FromContext(ctx).Error(err, "loading remote cost model", "path", path)
		return m
	}
	m.id = resp.Model
	m.initialized = resp.Initialized
	return m
}

type remoteModel struct {
	client *costservice.Client
	// id is empty when the load failed, which selects the analytical model.
	id          string
	initialized bool
}

func (m *remoteModel) Initialized() bool { return m.initialized }

func (m *remoteModel) DMA(ctx context.Context, device vpu.Device, in, out vpu.Tensor, replication int) (uint32, error) {
	return m.DMAWithLocations(ctx, device, in, out, vpu.DRAM, vpu.CMX, replication)
}

func (m *remoteModel) DMAWithLocations(ctx context.Context, device vpu.Device, in, out vpu.Tensor, src, dst vpu.MemoryLocation, replication int) (uint32, error) {
	return m.client.DMA(ctx, m.id, vpu.DMAWorkload{
		Device:           device,
		Input:            in,
		Output:           out,
		InputLocation:    src,
		OutputLocation:   dst,
		OutputWriteTiles: replication,
	})
}

func (m *remoteModel) DPU(ctx context.Context, wl vpu.DPUWorkload) (uint32, error) {
	return m.client.DPU(ctx, m.id, wl)
}

func (m *remoteModel) SHAVE(ctx context.Context, wl vpu.SHAVEWorkload) (uint32, error) {
	return m.client.SHAVE(ctx, m.id, wl)
}
