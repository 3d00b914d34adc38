// Package costservice serves the cost model over gRPC.
package costservice

import (
	"context"
	"errors"
	"os"
	"sync/atomic"

	"github.com/intel/npu-nn-cost-model/pkg/costmodel"
	"github.com/intel/npu-nn-cost-model/pkg/vpu"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

type Server struct {
	UnimplementedCostServiceServer

	registry *Registry
	metrics  *Metrics
	health   *health.Server
	ready    atomic.Bool

	// analytical answers requests that name no model.
	analytical *costmodel.CostModel
}

var _ CostServiceServer = (*Server)(nil)

// NewServer returns a server that refuses cost requests until SetReady.
// metrics may be nil.
func NewServer(registry *Registry, metrics *Metrics) *Server {
	s := &Server{
		registry:   registry,
		metrics:    metrics,
		health:     health.NewServer(),
		analytical: costmodel.NewFromBytes(nil),
	}
	s.SetReady(false)
	return s
}

// SetReady flips the cost RPCs and the standard gRPC health status, both
// for the server as a whole and for the vpunn.CostService service.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(CostService_ServiceDesc.ServiceName, st)
}

// GRPCServer builds a grpc.Server with the service, the health service and
// the interceptor registered.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.metrics.UnaryInterceptor))
	grpcServer := grpc.NewServer(opts...)
	RegisterCostServiceServer(grpcServer, s)
	healthpb.RegisterHealthServer(grpcServer, s.health)
	return grpcServer
}

func (s *Server) checkReady() error {
	if !s.ready.Load() {
		return status.Errorf(codes.FailedPrecondition, "cost service is still loading models")
	}
	return nil
}

// model looks up a loaded model. An empty id selects the analytical model,
// which is what a client whose load failed falls back to.
func (s *Server) model(id string) (*costmodel.CostModel, error) {
	if id == "" {
		return s.analytical, nil
	}
	m, ok := s.registry.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "model %q is not loaded", id)
	}
	return m, nil
}

func costError(err error) error {
	if errors.Is(err, vpu.ErrInvalidWorkload) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (s *Server) LoadModel(ctx context.Context, req *LoadModelRequest) (*LoadModelResponse, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if req.Model == "" {
		return nil, status.Errorf(codes.InvalidArgument, "model must be set")
	}

	m, err := s.registry.Load(ctx, req.Model)
	if err != nil {
		klog.FromContext(ctx).Error(err, "loading model", "model", req.Model)
		switch {
		case errors.Is(err, ErrInvalidModelRef):
			return nil, status.Errorf(codes.InvalidArgument, "loading model %q: %v", req.Model, err)
		case errors.Is(err, ErrRegistryFull):
			return nil, status.Errorf(codes.ResourceExhausted, "loading model %q: %v", req.Model, err)
		case errors.Is(err, os.ErrNotExist):
			return nil, status.Errorf(codes.NotFound, "loading model %q: %v", req.Model, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		}
		return nil, status.Errorf(codes.Unavailable, "loading model %q: %v", req.Model, err)
	}

	resp := &LoadModelResponse{Model: req.Model, Initialized: m.Initialized()}
	if m.Initialized() {
		resp.Version = m.Version().String()
	}
	return resp, nil
}

func (s *Server) DPU(ctx context.Context, req *DPURequest) (*CostResponse, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}
	cycles, err := m.DPU(req.Workload)
	if err != nil {
		return nil, costError(err)
	}
	s.metrics.observeCycles(vpu.VPU_DPU.String(), cycles)
	return &CostResponse{Cycles: cycles}, nil
}

func (s *Server) DMA(ctx context.Context, req *DMARequest) (*CostResponse, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}
	cycles, err := m.DMAWorkload(req.Workload)
	if err != nil {
		return nil, costError(err)
	}
	s.metrics.observeCycles(vpu.VPU_DMA.String(), cycles)
	return &CostResponse{Cycles: cycles}, nil
}

func (s *Server) SHAVE(ctx context.Context, req *SHAVERequest) (*CostResponse, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	m, err := s.model(req.Model)
	if err != nil {
		return nil, err
	}
	cycles, err := m.SHAVE(req.Workload)
	if err != nil {
		return nil, costError(err)
	}
	s.metrics.observeCycles(vpu.VPU_SHV.String(), cycles)
	return &CostResponse{Cycles: cycles}, nil
}
