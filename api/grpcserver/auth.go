package grpcserver

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"simpledex/api/dexrpc"
)

type callerKey struct{}

// CallerFrom returns the authenticated caller, or the zero address.
func CallerFrom(ctx context.Context) common.Address {
	addr, _ := ctx.Value(callerKey{}).(common.Address)
	return addr
}

func withCaller(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, callerKey{}, addr)
}

// Queries need no caller; every other exchange method does.
var queries = map[string]bool{
	dexrpc.FullMethod(dexrpc.MethodPool):      true,
	dexrpc.FullMethod(dexrpc.MethodPrice):     true,
	dexrpc.FullMethod(dexrpc.MethodQuote):     true,
	dexrpc.FullMethod(dexrpc.MethodBalance):   true,
	dexrpc.FullMethod(dexrpc.MethodAllowance): true,
}

/*
Authenticator resolves the caller of each exchange call.

  - secret set:   "authorization: Bearer <JWT>", HS256, sub = caller address
  - secret empty: "x-caller: <address>" is trusted as is (development only)
*/
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

func (a *Authenticator) Unary() grpc.UnaryServerInterceptor {
	prefix := "/" + dexrpc.ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		caller, err := a.resolve(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		if caller == (common.Address{}) && !queries[info.FullMethod] {
			return nil, status.Error(codes.Unauthenticated, "caller identity required")
		}
		return handler(withCaller(ctx, caller), req)
	}
}

func (a *Authenticator) resolve(ctx context.Context) (common.Address, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	if !a.Enabled() {
		vals := md.Get(dexrpc.HeaderCaller)
		if len(vals) == 0 {
			return common.Address{}, nil
		}
		if !common.IsHexAddress(vals[0]) {
			return common.Address{}, errors.Newf("invalid %s %q", dexrpc.HeaderCaller, vals[0])
		}
		return common.HexToAddress(vals[0]), nil
	}

	vals := md.Get(dexrpc.HeaderAuthorization)
	if len(vals) == 0 {
		return common.Address{}, nil
	}
	raw, ok := strings.CutPrefix(vals[0], "Bearer ")
	if !ok {
		return common.Address{}, errors.New("authorization must be a bearer token")
	}
	return a.verify(raw)
}

func (a *Authenticator) verify(raw string) (common.Address, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "invalid token")
	}
	if !common.IsHexAddress(claims.Subject) {
		return common.Address{}, errors.Newf("token subject %q is not an address", claims.Subject)
	}
	return common.HexToAddress(claims.Subject), nil
}

// IssueToken signs a token naming caller. A zero ttl means no expiry.
func IssueToken(secret string, caller common.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  caller.Hex(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
