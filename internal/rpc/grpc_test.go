package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeGateway struct {
	lastMethod string
	lastMD     metadata.MD
	lastReq    *structpb.Struct

	reply *structpb.Struct
	err   error
}

func (g *fakeGateway) handle(_ any, stream grpc.ServerStream) error {
	g.lastMethod, _ = grpc.MethodFromServerStream(stream)
	g.lastMD, _ = metadata.FromIncomingContext(stream.Context())

	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	g.lastReq = req

	if g.err != nil {
		return g.err
	}
	return stream.SendMsg(g.reply)
}

func startGateway(t *testing.T, g *fakeGateway) *GRPCFactory {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(g.handle))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	f, err := DialGateway("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCClient_InvokesGatewayWithHeaders(t *testing.T) {
	g := &fakeGateway{reply: mustStruct(t, map[string]any{
		"data": map[string]any{"trackEvent": map[string]any{"success": true}},
	})}
	f := startGateway(t, g)

	exec, err := f.New(Headers{PublicKey: "pk", IdentityToken: "tok"})
	require.NoError(t, err)

	resp, err := exec.Execute(context.Background(), TrackEvent, map[string]any{
		"input": map[string]any{"event": "Signed Up", "data": map[string]string{"plan": "pro"}},
	})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	require.Equal(t, "/dashx.v1.Gateway/TrackEvent", g.lastMethod)
	require.Equal(t, []string{"pk"}, g.lastMD.Get("x-public-key"))
	require.Equal(t, []string{"tok"}, g.lastMD.Get("x-identity-token"))
	require.Empty(t, g.lastMD.Get("x-target-environment"))

	input := g.lastReq.AsMap()["input"].(map[string]any)
	require.Equal(t, "Signed Up", input["event"])
	require.Equal(t, "pro", input["data"].(map[string]any)["plan"])

	var out struct{ Success bool }
	require.NoError(t, resp.Decode("trackEvent", &out))
	require.True(t, out.Success)
}

func TestGRPCClient_ApplicationErrors(t *testing.T) {
	g := &fakeGateway{reply: mustStruct(t, map[string]any{
		"errors": []any{map[string]any{"message": "nope"}},
	})}
	exec, _ := startGateway(t, g).New(Headers{PublicKey: "pk"})

	resp, err := exec.Execute(context.Background(), IdentifyAccount, nil)
	require.NoError(t, err)
	require.True(t, common.ApplicationError.Has(resp.Err()))
}

func TestGRPCClient_StatusMapping(t *testing.T) {
	cases := []struct {
		code codes.Code
		is   error
	}{
		{codes.Unauthenticated, common.ErrUnauthorized},
		{codes.PermissionDenied, common.ErrUnauthorized},
		{codes.Unavailable, common.ErrUnavailable},
		{codes.DeadlineExceeded, common.ErrUnavailable},
		{codes.Internal, nil},
	}
	for _, tc := range cases {
		g := &fakeGateway{err: status.Error(tc.code, "x")}
		exec, _ := startGateway(t, g).New(Headers{PublicKey: "pk"})

		_, err := exec.Execute(context.Background(), TrackEvent, nil)
		require.Error(t, err)
		require.True(t, common.TransportError.Has(err), tc.code.String())
		if tc.is != nil {
			require.ErrorIs(t, err, tc.is, tc.code.String())
		} else {
			require.Contains(t, err.Error(), "rpc error")
		}
	}
}

func TestMapError_Nil(t *testing.T) {
	require.NoError(t, mapError(nil))
}
