package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// protectedMethods require a valid access token.
var protectedMethods = map[string]bool{
	pb.MethodWhoAmI: true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if protectedMethods[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = strings.TrimSpace(strings.TrimPrefix(values[0], common.BearerPrefix))
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := s.parser.Parse(accessToken, s.clock.Now())
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		ctx = context.WithValue(ctx, claimsKey, claims)

	}

	return handler(ctx, req)
}

// ClaimsFromContext returns the access-token claims stored by the interceptor.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}
