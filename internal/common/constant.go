package common

const (
	// AccessTokenHeaderName is the gRPC metadata / HTTP header carrying the
	// bearer access token.
	AccessTokenHeaderName = "authorization"

	// AccessTokenCookieName is where browser clients conventionally keep the
	// access token.
	AccessTokenCookieName = "access_token"

	BearerPrefix = "Bearer "

	// DefaultRole is granted to every newly registered account.
	DefaultRole = "User"

	// UnknownIP is recorded when the transport cannot tell the peer address.
	UnknownIP = "unknown"
)
