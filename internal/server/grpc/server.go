// Package grpc exposes the token lifecycle as the gophauth.v1.AuthService
// gRPC service.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"google.golang.org/grpc"
)

// TokenService is the engine surface the transport needs.
type TokenService interface {
	Login(ctx context.Context, login, password, sourceIP string) (*models.TokenPair, error)
	Rotate(ctx context.Context, presentedSecret, sourceIP string) (*models.TokenPair, error)
	Revoke(ctx context.Context, presentedSecret, sourceIP string) error
}

type UserRegistrar interface {
	Register(ctx context.Context, login, displayName, password string) (*models.Identity, error)
}

type AccessTokenParser interface {
	Parse(token string, now time.Time) (*auth.Claims, error)
}

type GRPCServer struct {
	address string
	tokens  TokenService
	users   UserRegistrar
	parser  AccessTokenParser
	clock   timex.Clock
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, ts TokenService, ur UserRegistrar, p AccessTokenParser, c timex.Clock) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		tokens:  ts,
		users:   ur,
		parser:  p,
		clock:   c,
	}
}

// NewServer builds a grpc.Server with the service and interceptors registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	pb.RegisterAuthServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
