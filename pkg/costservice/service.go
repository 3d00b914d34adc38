package costservice

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	CostService_LoadModel_FullMethodName = "/vpunn.CostService/LoadModel"
	CostService_DPU_FullMethodName       = "/vpunn.CostService/DPU"
	CostService_DMA_FullMethodName       = "/vpunn.CostService/DMA"
	CostService_SHAVE_FullMethodName     = "/vpunn.CostService/SHAVE"
)

// CostServiceClient is the client API for the vpunn.CostService service.
type CostServiceClient interface {
	LoadModel(ctx context.Context, in *LoadModelRequest, opts ...grpc.CallOption) (*LoadModelResponse, error)
	DPU(ctx context.Context, in *DPURequest, opts ...grpc.CallOption) (*CostResponse, error)
	DMA(ctx context.Context, in *DMARequest, opts ...grpc.CallOption) (*CostResponse, error)
	SHAVE(ctx context.Context, in *SHAVERequest, opts ...grpc.CallOption) (*CostResponse, error)
}

type costServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCostServiceClient(cc grpc.ClientConnInterface) CostServiceClient {
	return &costServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *costServiceClient) LoadModel(ctx context.Context, in *LoadModelRequest, opts ...grpc.CallOption) (*LoadModelResponse, error) {
	out := new(LoadModelResponse)
	err := c.cc.Invoke(ctx, CostService_LoadModel_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *costServiceClient) DPU(ctx context.Context, in *DPURequest, opts ...grpc.CallOption) (*CostResponse, error) {
	out := new(CostResponse)
	err := c.cc.Invoke(ctx, CostService_DPU_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *costServiceClient) DMA(ctx context.Context, in *DMARequest, opts ...grpc.CallOption) (*CostResponse, error) {
	out := new(CostResponse)
	err := c.cc.Invoke(ctx, CostService_DMA_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *costServiceClient) SHAVE(ctx context.Context, in *SHAVERequest, opts ...grpc.CallOption) (*CostResponse, error) {
	out := new(CostResponse)
	err := c.cc.Invoke(ctx, CostService_SHAVE_FullMethodName, in, out, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CostServiceServer is the server API for the vpunn.CostService service.
// Implementations must embed UnimplementedCostServiceServer.
type CostServiceServer interface {
	LoadModel(context.Context, *LoadModelRequest) (*LoadModelResponse, error)
	DPU(context.Context, *DPURequest) (*CostResponse, error)
	DMA(context.Context, *DMARequest) (*CostResponse, error)
	SHAVE(context.Context, *SHAVERequest) (*CostResponse, error)
	mustEmbedUnimplementedCostServiceServer()
}

type UnimplementedCostServiceServer struct{}

func (UnimplementedCostServiceServer) LoadModel(context.Context, *LoadModelRequest) (*LoadModelResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method LoadModel not implemented")
}
func (UnimplementedCostServiceServer) DPU(context.Context, *DPURequest) (*CostResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DPU not implemented")
}
func (UnimplementedCostServiceServer) DMA(context.Context, *DMARequest) (*CostResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DMA not implemented")
}
func (UnimplementedCostServiceServer) SHAVE(context.Context, *SHAVERequest) (*CostResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SHAVE not implemented")
}
func (UnimplementedCostServiceServer) mustEmbedUnimplementedCostServiceServer() {}

func RegisterCostServiceServer(s grpc.ServiceRegistrar, srv CostServiceServer) {
	s.RegisterService(&CostService_ServiceDesc, srv)
}

func _CostService_LoadModel_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LoadModelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CostServiceServer).LoadModel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CostService_LoadModel_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CostServiceServer).LoadModel(ctx, req.(*LoadModelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CostService_DPU_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DPURequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CostServiceServer).DPU(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CostService_DPU_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CostServiceServer).DPU(ctx, req.(*DPURequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CostService_DMA_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DMARequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CostServiceServer).DMA(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CostService_DMA_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CostServiceServer).DMA(ctx, req.(*DMARequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _CostService_SHAVE_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SHAVERequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CostServiceServer).SHAVE(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CostService_SHAVE_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CostServiceServer).SHAVE(ctx, req.(*SHAVERequest))
	}
	return interceptor(ctx, in, info, handler)
}

// CostService_ServiceDesc is the grpc.ServiceDesc for the vpunn.CostService service.
var CostService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "vpunn.CostService",
	HandlerType: (*CostServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadModel", Handler: _CostService_LoadModel_Handler},
		{MethodName: "DPU", Handler: _CostService_DPU_Handler},
		{MethodName: "DMA", Handler: _CostService_DMA_Handler},
		{MethodName: "SHAVE", Handler: _CostService_SHAVE_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vpunn/cost_service",
}
