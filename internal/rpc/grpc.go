package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dashxhq/dashx-go/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient sends operations to the gateway service as structpb envelopes.
// The request is the variables object; the reply is {data, errors}.
type GRPCClient struct {
	conn    grpc.ClientConnInterface
	headers Headers
}

func NewGRPCClient(conn grpc.ClientConnInterface, headers Headers) *GRPCClient {
	return &GRPCClient{conn: conn, headers: headers}
}

// GRPCFactory owns one connection shared by every client it builds.
type GRPCFactory struct {
	conn *grpc.ClientConn
}

// DialGateway creates a lazily connecting client connection to addr.
func DialGateway(addr string, opts ...grpc.DialOption) (*GRPCFactory, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(errorInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc client %s: %w", addr, err)
	}
	return &GRPCFactory{conn: conn}, nil
}

func (f *GRPCFactory) New(h Headers) (Executor, error) {
	return NewGRPCClient(f.conn, h), nil
}

func (f *GRPCFactory) Close() error {
	return f.conn.Close()
}

func withHeaders(ctx context.Context, h Headers) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	for k, v := range h.Map() {
		md.Set(k, v)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// errorInterceptor folds gRPC status codes into the SDK error taxonomy.
func errorInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return mapError(invoker(ctx, method, req, reply, cc, opts...))
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if common.TransportError.Has(err) {
		return err
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.TransportError.Wrap(fmt.Errorf("%w: %s", common.ErrUnauthorized, st.Message()))
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.TransportError.Wrap(fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message()))
	default:
		return common.TransportError.Wrap(fmt.Errorf("rpc error: %w", err))
	}
}

func (c *GRPCClient) Execute(ctx context.Context, op Operation, vars map[string]any) (*Response, error) {
	req, err := toStruct(vars)
	if err != nil {
		return nil, common.ValidationError.Wrap(fmt.Errorf("encode %s variables: %w", op, err))
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(withHeaders(ctx, c.headers), op.GRPCMethod(), req, reply); err != nil {
		return nil, mapError(err)
	}

	b, err := reply.MarshalJSON()
	if err != nil {
		return nil, common.TransportError.Wrap(fmt.Errorf("malformed response: %w", err))
	}
	return decodeEnvelope(b)
}

// toStruct normalises arbitrary Go values through JSON so nested typed maps
// and slices become structpb-compatible.
func toStruct(vars map[string]any) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	if len(vars) == 0 {
		return st, nil
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return nil, err
	}
	if err := st.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return st, nil
}
