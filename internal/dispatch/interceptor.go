// ABOUTME: gRPC interceptors binding dispatch to metadata-carried bearer tokens.
// ABOUTME: Unary and stream variants share the authenticate → resolve flow.

package dispatch

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor authenticates unary RPCs. The full method name is the
// operation used for route lookup.
func (d *Dispatcher) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		credential := tokenFromMetadata(ctx)
		identity, downstream, ok := d.establish(ctx, credential, info.FullMethod)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, ErrAuthenticationFailed.Error())
		}
		return handler(WithIdentityAndToken(ctx, identity, downstream), req)
	}
}

// StreamInterceptor authenticates streaming RPCs.
func (d *Dispatcher) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		credential := tokenFromMetadata(ctx)
		identity, downstream, ok := d.establish(ctx, credential, info.FullMethod)
		if !ok {
			return status.Error(codes.Unauthenticated, ErrAuthenticationFailed.Error())
		}
		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          WithIdentityAndToken(ctx, identity, downstream),
		}
		return handler(srv, wrapped)
	}
}

// tokenFromMetadata extracts a bearer token from the "authorization"
// metadata key. Returns "" when absent or malformed.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	parts := strings.SplitN(values[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// wrappedServerStream overrides the stream context with the authenticated one.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
