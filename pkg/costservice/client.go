package costservice

import (
	"context"
	"fmt"

	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client is a typed wrapper around CostServiceClient.
type Client struct {
	conn   *grpc.ClientConn
	api    CostServiceClient
	health healthpb.HealthClient
}

// Dial connects to the cost service at target. Without options the
// connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server %q: %w", target, err)
	}
	return &Client{
		conn:   conn,
		api:    NewCostServiceClient(conn),
		health: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) LoadModel(ctx context.Context, model string) (*LoadModelResponse, error) {
	return c.api.LoadModel(ctx, &LoadModelRequest{Model: model})
}

func (c *Client) DPU(ctx context.Context, model string, wl vpu.DPUWorkload) (uint32, error) {
	resp, err := c.api.DPU(ctx, &DPURequest{Model: model, Workload: wl})
	if err != nil {
		return 0, err
	}
	return resp.Cycles, nil
}

func (c *Client) DMA(ctx context.Context, model string, wl vpu.DMAWorkload) (uint32, error) {
	resp, err := c.api.DMA(ctx, &DMARequest{Model: model, Workload: wl})
	if err != nil {
		return 0, err
	}
	return resp.Cycles, nil
}

func (c *Client) SHAVE(ctx context.Context, model string, wl vpu.SHAVEWorkload) (uint32, error) {
	resp, err := c.api.SHAVE(ctx, &SHAVERequest{Model: model, Workload: wl})
	if err != nil {
		return 0, err
	}
	return resp.Cycles, nil
}

// Serving asks the standard health service whether the cost service
// is ready for cost requests.
func (c *Client) Serving(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: CostService_ServiceDesc.ServiceName})
	if err != nil {
		return false, err
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
