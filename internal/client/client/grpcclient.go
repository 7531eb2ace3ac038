package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// authService is the subset of pb.AuthServiceClient the client calls.
type authService interface {
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Revoke(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	WhoAmI(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// protectedMethods need an access token and are retried once after a
// refresh when the server rejects it.
var protectedMethods = map[string]struct{}{
	pb.MethodWhoAmI: {},
}

// Identity is what the server knows about the caller's access token.
type Identity struct {
	SubjectID string
	Name      string
	Roles     []string
	ExpiresAt string
}

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	client      authService
	now         func() time.Time

	mu        sync.Mutex
	tokens    Tokens
	onRefresh func(Tokens)

	// refreshMu serialises rotations: a refresh token is single use, so two
	// concurrent rotations of the same token would look like a replay.
	refreshMu sync.Mutex
}

type Option func(*GRPCClient)

// WithTokens seeds the client with a previously stored token pair.
func WithTokens(t Tokens) Option {
	return func(c *GRPCClient) { c.tokens = t }
}

// WithRefreshListener registers fn to be called with every pair obtained by
// an automatic refresh, so it can be persisted.
func WithRefreshListener(fn func(Tokens)) Option {
	return func(c *GRPCClient) { c.onRefresh = fn }
}

// WithDialOptions appends extra options to the connection.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Tokens returns the current token pair.
func (s *GRPCClient) Tokens() Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) setTokens(t Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, common.BearerPrefix+token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if _, ok := protectedMethods[method]; !ok {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	used := s.Tokens()
	err := invoker(withAccessToken(ctx, used.AccessToken), method, req, reply, cc, opts...)
	if status.Code(err) != codes.Unauthenticated || used.RefreshToken == "" {
		return err
	}

	fresh, rerr := s.refreshFrom(ctx, used.RefreshToken)
	if rerr != nil {
		return err
	}

	// tokens refreshed, retrying with the new access token
	return invoker(withAccessToken(ctx, fresh.AccessToken), method, req, reply, cc, opts...)
}

// refreshFrom rotates stale unless another call already did.
func (s *GRPCClient) refreshFrom(ctx context.Context, stale string) (Tokens, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if current := s.Tokens(); current.RefreshToken != stale {
		return current, nil
	}

	resp, err := s.client.Refresh(ctx, pb.RefreshTokenRequest{RefreshToken: stale}.Struct())
	if err != nil {
		return Tokens{}, err
	}

	t := s.tokensFrom(pb.TokenResponseFrom(resp))
	s.setTokens(t)
	if s.onRefresh != nil {
		s.onRefresh(t)
	}
	return t, nil
}

func (s *GRPCClient) tokensFrom(r pb.TokenResponse) Tokens {
	return Tokens{
		AccessToken:     r.AccessToken,
		RefreshToken:    r.RefreshToken,
		AccessExpiresAt: s.now().Add(time.Duration(r.ExpiresInSeconds) * time.Second),
	}
}

// Register creates an account and returns its subject id.
func (s *GRPCClient) Register(ctx context.Context, login, displayName, password string) (string, error) {
	req := pb.RegisterRequest{Login: login, DisplayName: displayName, Password: password}

	resp, err := s.client.Register(ctx, req.Struct())
	if err != nil {
		return "", s.mapError(err)
	}
	return pb.RegisterResponseFrom(resp).SubjectID, nil
}

func (s *GRPCClient) Login(ctx context.Context, login, password string) (Tokens, error) {
	req := pb.LoginRequest{Login: login, Password: password}

	resp, err := s.client.Login(ctx, req.Struct())
	if err != nil {
		return Tokens{}, s.mapError(err)
	}

	t := s.tokensFrom(pb.TokenResponseFrom(resp))
	s.setTokens(t)
	return t, nil
}

// Refresh rotates the held refresh token.
func (s *GRPCClient) Refresh(ctx context.Context) (Tokens, error) {
	current := s.Tokens()
	if current.RefreshToken == "" {
		return Tokens{}, ErrNotLoggedIn
	}

	t, err := s.refreshFrom(ctx, current.RefreshToken)
	if err != nil {
		return Tokens{}, s.mapError(err)
	}
	return t, nil
}

// Revoke revokes the held refresh token and forgets both tokens. The access
// token stays valid on the server until it expires.
func (s *GRPCClient) Revoke(ctx context.Context) error {
	current := s.Tokens()
	if current.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	_, err := s.client.Revoke(ctx, pb.RefreshTokenRequest{RefreshToken: current.RefreshToken}.Struct())
	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(Tokens{})
	return nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*Identity, error) {
	if s.Tokens().Empty() {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.WhoAmI(ctx, pb.Empty())
	if err != nil {
		return nil, s.mapError(err)
	}

	w := pb.WhoAmIResponseFrom(resp)
	return &Identity{SubjectID: w.SubjectID, Name: w.Name, Roles: w.Roles, ExpiresAt: w.ExpiresAt}, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, pb.Empty())
	if err != nil {
		return s.mapError(err)
	}

	if pb.PingResponseFrom(resp).Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.ResourceExhausted:
		return ErrRateLimited
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.AlreadyExists:
		return ErrAlreadyExists
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
