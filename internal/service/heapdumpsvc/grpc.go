package heapdumpsvc

import (
	"context"

	"google.golang.org/grpc"
)

// HeapDumpServer is the interface grpc dispatches unary calls to. Server
// implements it.
type HeapDumpServer interface {
	RetainedSize(ctx context.Context, req *RetainedSizeRequest) (*RetainedSizeResponse, error)
	Dominators(ctx context.Context, req *DominatorsRequest) (*DominatorsResponse, error)
	PathToGcRoot(ctx context.Context, req *PathToGCRootRequest) (*PathToGCRootResponse, error)
	ObjectByAddress(ctx context.Context, req *ObjectByAddressRequest) (*ObjectByAddressResponse, error)
}

func handleRetainedSize(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(RetainedSizeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeapDumpServer).RetainedSize(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/heapdump.v1.HeapDumpService/RetainedSize"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HeapDumpServer).RetainedSize(ctx, req.(*RetainedSizeRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleDominators(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(DominatorsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeapDumpServer).Dominators(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/heapdump.v1.HeapDumpService/Dominators"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HeapDumpServer).Dominators(ctx, req.(*DominatorsRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handlePathToGcRoot(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(PathToGCRootRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeapDumpServer).PathToGcRoot(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/heapdump.v1.HeapDumpService/PathToGcRoot"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HeapDumpServer).PathToGcRoot(ctx, req.(*PathToGCRootRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func handleObjectByAddress(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ObjectByAddressRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HeapDumpServer).ObjectByAddress(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/heapdump.v1.HeapDumpService/ObjectByAddress"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(HeapDumpServer).ObjectByAddress(ctx, req.(*ObjectByAddressRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// ServiceDesc is the hand-written grpc service descriptor for
// heapdump.v1.HeapDumpService. There is no protoc toolchain available in
// this environment, so it is written out directly instead of generated;
// see codec.go for the matching JSON wire codec.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: "heapdump.v1.HeapDumpService",
	HandlerType: (*HeapDumpServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RetainedSize", Handler: handleRetainedSize},
		{MethodName: "Dominators", Handler: handleDominators},
		{MethodName: "PathToGcRoot", Handler: handlePathToGcRoot},
		{MethodName: "ObjectByAddress", Handler: handleObjectByAddress},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "heapdumpsvc.proto",
}

// Register attaches srv to s under the HeapDumpService descriptor.
func Register(s *grpc.Server, srv HeapDumpServer) {
	s.RegisterService(&ServiceDesc, srv)
}
