package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сервис описан вручную, сообщения: google.protobuf.Struct.

const (
	ServiceName        = "trackgen.v1.TrackingNumbers"
	GenerateFullMethod = "/" + ServiceName + "/Generate"
)

type TrackingNumbersServer interface {
	Generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackingNumbersServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trackgen/v1/tracking_numbers",
}

func RegisterTrackingNumbersServer(s grpc.ServiceRegistrar, srv TrackingNumbersServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func generateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TrackingNumbersServer).Generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GenerateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TrackingNumbersServer).Generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is the caller side of ServiceDesc.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Generate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GenerateFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
