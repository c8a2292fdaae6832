// Package apiv1 is the control API of the supervisor daemon.
//
// The service descriptor is written by hand instead of generated: every
// message is a protobuf well-known type, so no .proto compilation is needed.
package apiv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	Supervisor_ServiceName           = "oscam.supervisor.v1.Supervisor"
	Supervisor_Start_FullMethodName  = "/" + Supervisor_ServiceName + "/Start"
	Supervisor_Stop_FullMethodName   = "/" + Supervisor_ServiceName + "/Stop"
	Supervisor_Status_FullMethodName = "/" + Supervisor_ServiceName + "/Status"
	Supervisor_Watch_FullMethodName  = "/" + Supervisor_ServiceName + "/Watch"
)

// SupervisorClient is the client API for the Supervisor service.
type SupervisorClient interface {
	// Start requests a start and returns the status right after dispatching it.
	Start(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Stop requests a graceful stop and returns the status right after signalling.
	Stop(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Watch replays retained status events; with follow set it keeps streaming live ones.
	Watch(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type supervisorClient struct {
	cc grpc.ClientConnInterface
}

func NewSupervisorClient(cc grpc.ClientConnInterface) SupervisorClient {
	return &supervisorClient{cc}
}

func (c *supervisorClient) Start(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Supervisor_Start_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *supervisorClient) Stop(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Supervisor_Stop_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *supervisorClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Supervisor_Status_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *supervisorClient) Watch(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &Supervisor_ServiceDesc.Streams[0], Supervisor_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.BoolValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SupervisorServer is the server API for the Supervisor service.
type SupervisorServer interface {
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*wrapperspb.BoolValue, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedSupervisorServer()
}

// UnimplementedSupervisorServer must be embedded by implementations.
type UnimplementedSupervisorServer struct{}

func (UnimplementedSupervisorServer) Start(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Start not implemented")
}
func (UnimplementedSupervisorServer) Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Stop not implemented")
}
func (UnimplementedSupervisorServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Status not implemented")
}
func (UnimplementedSupervisorServer) Watch(*wrapperspb.BoolValue, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method Watch not implemented")
}
func (UnimplementedSupervisorServer) mustEmbedUnimplementedSupervisorServer() {}

func RegisterSupervisorServer(s grpc.ServiceRegistrar, srv SupervisorServer) {
	s.RegisterService(&Supervisor_ServiceDesc, srv)
}

func unaryHandler(method string, call func(SupervisorServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SupervisorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SupervisorServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _Supervisor_Watch_Handler(srv any, stream grpc.ServerStream) error {
	m := new(wrapperspb.BoolValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SupervisorServer).Watch(m, &grpc.GenericServerStream[wrapperspb.BoolValue, structpb.Struct]{ServerStream: stream})
}

// Supervisor_ServiceDesc is the grpc.ServiceDesc for the Supervisor service.
var Supervisor_ServiceDesc = grpc.ServiceDesc{
	ServiceName: Supervisor_ServiceName,
	HandlerType: (*SupervisorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler:    unaryHandler(Supervisor_Start_FullMethodName, SupervisorServer.Start),
		},
		{
			MethodName: "Stop",
			Handler:    unaryHandler(Supervisor_Stop_FullMethodName, SupervisorServer.Stop),
		},
		{
			MethodName: "Status",
			Handler:    unaryHandler(Supervisor_Status_FullMethodName, SupervisorServer.Status),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       _Supervisor_Watch_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "oscam/supervisor/v1",
}
