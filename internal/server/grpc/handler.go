package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := pb.RegisterRequestFrom(req)

	s.logger.Info(ctx, "Registration request")

	identity, err := s.users.Register(ctx, in.Login, in.DisplayName, in.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", identity.SubjectID)
	return pb.RegisterResponse{SubjectID: identity.SubjectID}.Struct(), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := pb.LoginRequestFrom(req)

	pair, err := s.tokens.Login(ctx, in.Login, in.Password, sourceIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := pb.RefreshTokenRequestFrom(req)

	pair, err := s.tokens.Rotate(ctx, in.RefreshToken, sourceIP(ctx))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return tokenResponse(pair), nil
}

func (s *GRPCServer) Revoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := pb.RefreshTokenRequestFrom(req)

	if err := s.tokens.Revoke(ctx, in.RefreshToken, sourceIP(ctx)); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return pb.Empty(), nil
}

// WhoAmI echoes the claims of the access token checked by the interceptor.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, s.toStatus(ctx, common.ErrorUnauthorized)
	}

	resp := pb.WhoAmIResponse{SubjectID: claims.Subject, Name: claims.Name, Roles: claims.Roles}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	return resp.Struct(), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return pb.PingResponse{Status: "OK"}.Struct(), nil
}

// toStatus hides the reason of every authentication failure behind one
// message.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "too many attempts")
	case common.IsUnauthorized(err):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrStoreUnavailable):
		s.logger.Warn(ctx, "store unavailable", "error", err)
		return status.Error(codes.Unavailable, "service unavailable")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func tokenResponse(p *models.TokenPair) *structpb.Struct {
	return pb.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		ExpiresInSeconds: int64(p.ExpiresIn / time.Second),
	}.Struct()
}

// sourceIP is the host part of the peer address, or the whole address when
// it has no port.
func sourceIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return common.UnknownIP
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
