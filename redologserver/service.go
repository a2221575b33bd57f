package redologserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "redolog.Redolog"

// Full method names.
const (
	LogMethod     = "/" + serviceName + "/Log"
	IsEmptyMethod = "/" + serviceName + "/IsEmpty"
	ExistsMethod  = "/" + serviceName + "/Exists"
	DeleteMethod  = "/" + serviceName + "/Delete"
	StatusMethod  = "/" + serviceName + "/Status"
)

// RedologServer is the server API for the redolog.Redolog service. Messages
// are protobuf well-known types; Log carries an operation envelope built by
// record.MarshalOperation.
type RedologServer interface {
	Log(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	IsEmpty(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Exists(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Delete(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc is the grpc.ServiceDesc for the redolog.Redolog service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RedologServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Log", Handler: logHandler},
		{MethodName: "IsEmpty", Handler: emptyHandler(IsEmptyMethod, RedologServer.IsEmpty)},
		{MethodName: "Exists", Handler: emptyHandler(ExistsMethod, RedologServer.Exists)},
		{MethodName: "Delete", Handler: emptyHandler(DeleteMethod, RedologServer.Delete)},
		{MethodName: "Status", Handler: emptyHandler(StatusMethod, RedologServer.Status)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redolog.proto",
}

func RegisterRedologServer(s grpc.ServiceRegistrar, srv RedologServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func logHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RedologServer).Log(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LogMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RedologServer).Log(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// emptyHandler builds the handler of a method that takes no arguments.
func emptyHandler[T any](method string, call func(RedologServer, context.Context, *emptypb.Empty) (T, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RedologServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(RedologServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}
