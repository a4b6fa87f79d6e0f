package devserver

import (
	"encoding/json"
	"strings"

	"github.com/dashxhq/dashx-go/internal/common"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// serveGateway answers every method of the gateway service. Requests and
// replies are structpb envelopes; there is no generated service code.
func (s *Server) serveGateway(_ any, stream grpc.ServerStream) error {
	ctx := stream.Context()

	method, _ := grpc.MethodFromServerStream(stream)
	name, ok := strings.CutPrefix(method, "/"+rpc.GatewayService+"/")
	op := rpc.Operation(name)
	if _, known := rpc.Document(op); !ok || !known {
		return status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}

	md, _ := metadata.FromIncomingContext(ctx)
	caller, err := s.backend.Authenticate(
		first(md, common.PublicKeyHeaderName),
		first(md, common.TargetEnvironmentHeaderName),
		first(md, common.IdentityTokenHeaderName),
	)
	if err != nil {
		s.logger.Warn(ctx, "rejected call", "method", method, "err", err)
		return status.Error(codes.Unauthenticated, err.Error())
	}

	req := &structpb.Struct{}
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	var env map[string]any
	result, err := s.backend.Execute(ctx, caller, op, req.AsMap())
	if err != nil {
		s.logOpError(ctx, op, err)
		env = errorEnvelope(op.Field(), err)
	} else {
		env = dataEnvelope(op.Field(), result)
	}

	reply, err := toStruct(env)
	if err != nil {
		return status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return stream.SendMsg(reply)
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// toStruct goes through JSON so typed slices and maps become structpb values.
func toStruct(v map[string]any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := st.UnmarshalJSON(b); err != nil {
		return nil, err
	}
	return st, nil
}
