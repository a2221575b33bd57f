package redologserver

import (
	"context"

	"github.com/chn0318/redolog/redolog"
	"github.com/chn0318/redolog/redolog/record"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote redolog.Redolog service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Log sends op to the remote writer.
func (c *Client) Log(ctx context.Context, op redolog.Operation, payload []byte, synchronous bool, opts ...grpc.CallOption) error {
	in := wrapperspb.Bytes(record.MarshalOperation(op, payload, synchronous))
	return c.cc.Invoke(ctx, LogMethod, in, new(emptypb.Empty), opts...)
}

func (c *Client) IsEmpty(ctx context.Context, opts ...grpc.CallOption) (bool, error) {
	return c.boolCall(ctx, IsEmptyMethod, opts...)
}

func (c *Client) Exists(ctx context.Context, opts ...grpc.CallOption) (bool, error) {
	return c.boolCall(ctx, ExistsMethod, opts...)
}

func (c *Client) Delete(ctx context.Context, opts ...grpc.CallOption) (bool, error) {
	return c.boolCall(ctx, DeleteMethod, opts...)
}

func (c *Client) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StatusMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) boolCall(ctx context.Context, method string, opts ...grpc.CallOption) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, method, new(emptypb.Empty), out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
