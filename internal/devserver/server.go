package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dashxhq/dashx-go/internal/devserver/config"
	"github.com/dashxhq/dashx-go/internal/logging"
	"github.com/dashxhq/dashx-go/internal/rpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// Server exposes a Backend over HTTP (GraphQL and the object store) and
// gRPC.
type Server struct {
	cfg     *config.Config
	logger  logging.Logger
	tokens  *Tokens
	backend *Backend
	objects *ObjectStore
}

func New(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Server, error) {
	presign, err := NewPresigner(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.With("module", "devserver"),
		tokens: NewTokens(cfg.SecretKey, cfg.IdentityTokenValidity),
	}
	s.backend = NewBackend(cfg, s.tokens, presign, logger)
	s.objects = NewObjectStore(cfg.S3Bucket, s.backend.MarkUploaded, logger)
	return s, nil
}

func (s *Server) Backend() *Backend { return s.backend }

func (s *Server) Objects() *ObjectStore { return s.objects }

// IssueIdentityToken returns a token the server accepts as X-Identity-Token
// for uid.
func (s *Server) IssueIdentityToken(uid string) (string, error) {
	return s.tokens.Issue(uid)
}

// Handler serves POST /graphql and the object store under /{bucket}/.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", s.serveGraphQL)
	mux.Handle("/"+s.cfg.S3Bucket+"/", s.objects)
	return mux
}

// GRPCServer returns a gRPC server answering the gateway service.
func (s *Server) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnknownServiceHandler(s.serveGateway))
	return grpc.NewServer(opts...)
}

// Run listens on both addresses until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("listen grpc: %w", err)
	}

	httpSrv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	grpcSrv := s.GRPCServer()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(ctx, "serving graphql", "address", httpLis.Addr().String(), "public_url", s.cfg.PublicURL)
		if err := httpSrv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.logger.Info(ctx, "serving grpc gateway", "address", grpcLis.Addr().String(), "service", rpc.GatewayService)
		return grpcSrv.Serve(grpcLis)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping dev server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) logOpError(ctx context.Context, op rpc.Operation, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		s.logger.Debug(ctx, "operation failed", "op", op, "err", err)
		return
	}
	s.logger.Error(ctx, "operation failed", "op", op, "err", err)
}
