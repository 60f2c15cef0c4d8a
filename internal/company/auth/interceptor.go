package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryGuard requires a valid token in the "authorization" metadata for
// the given full method names. Other methods pass through untouched.
func UnaryGuard(v *Verifier, methods ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		guarded[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := guarded[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		var header string
		if vals := metadata.ValueFromIncomingContext(ctx, "authorization"); len(vals) > 0 {
			header = vals[0]
		}
		authed, err := v.Authenticate(ctx, header)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(authed, req)
	}
}
