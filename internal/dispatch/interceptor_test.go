// ABOUTME: Tests for the gRPC unary and stream interceptors.
// ABOUTME: Drives interceptors directly with fabricated metadata contexts.

package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/2389/authgate/internal/auth"
)

func metadataContext(token string) context.Context {
	if token == "" {
		return context.Background()
	}
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestUnaryInterceptorSuccess(t *testing.T) {
	res := &stubResolver{tokens: map[string]string{"github": "gh-tok"}}
	d := newTestDispatcher(t, Config{
		Resolver: res,
		Routes:   map[string]string{"/mcp.Gateway/Call": "github"},
	})

	interceptor := d.UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/mcp.Gateway/Call"}

	var handlerCtx context.Context
	resp, err := interceptor(metadataContext("good-token"), "request", info,
		func(ctx context.Context, req any) (any, error) {
			handlerCtx = ctx
			return "response", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "response", resp)

	identity := auth.FromContext(handlerCtx)
	require.NotNil(t, identity)
	assert.Equal(t, "user-1", identity.UserID)

	tok, ok := DownstreamTokenFromContext(handlerCtx)
	require.True(t, ok)
	assert.Equal(t, "gh-tok", tok)
}

func TestUnaryInterceptorRejection(t *testing.T) {
	d := newTestDispatcher(t, Config{})
	interceptor := d.UnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/mcp.Gateway/Call"}

	tests := []struct {
		name  string
		token string
	}{
		{"missing metadata", ""},
		{"invalid token", "bad-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interceptor(metadataContext(tt.token), "request", info,
				func(context.Context, any) (any, error) {
					t.Fatal("handler must not run")
					return nil, nil
				})
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.Unauthenticated, st.Code())
			assert.Equal(t, "authentication failed", st.Message())
		})
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptorSuccess(t *testing.T) {
	d := newTestDispatcher(t, Config{})
	interceptor := d.StreamInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/mcp.Gateway/Stream"}

	stream := &fakeServerStream{ctx: metadataContext("good-token")}
	err := interceptor("server", stream, info, func(srv any, ss grpc.ServerStream) error {
		identity := auth.FromContext(ss.Context())
		require.NotNil(t, identity)
		assert.Equal(t, "user-1", identity.UserID)
		return nil
	})
	require.NoError(t, err)
}

func TestStreamInterceptorRejection(t *testing.T) {
	d := newTestDispatcher(t, Config{})
	interceptor := d.StreamInterceptor()
	info := &grpc.StreamServerInfo{FullMethod: "/mcp.Gateway/Stream"}

	stream := &fakeServerStream{ctx: metadataContext("bad-token")}
	err := interceptor("server", stream, info, func(any, grpc.ServerStream) error {
		t.Fatal("handler must not run")
		return nil
	})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Unauthenticated, st.Code())
}
