package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	createMethod = "/company.v1.CompanyService/CreateCompany"
	listMethod   = "/company.v1.CompanyService/ListCompanies"
)

func TestUnaryGuard(t *testing.T) {
	const secret = "grpc-secret"
	valid, err := GenerateToken("svc", secret, time.Hour)
	require.NoError(t, err)
	forged, err := GenerateToken("svc", "not-the-secret", time.Hour)
	require.NoError(t, err)

	guard := UnaryGuard(NewVerifier(secret), createMethod)

	tests := []struct {
		name     string
		method   string
		md       metadata.MD
		wantCode codes.Code
		wantSub  string
	}{
		{name: "guarded with token", method: createMethod, md: metadata.Pairs("authorization", "Bearer "+valid), wantSub: "svc"},
		{name: "guarded without metadata", method: createMethod, wantCode: codes.Unauthenticated},
		{name: "guarded with forged token", method: createMethod, md: metadata.Pairs("authorization", "Bearer "+forged), wantCode: codes.Unauthenticated},
		{name: "guarded with basic scheme", method: createMethod, md: metadata.Pairs("authorization", "Basic xyz"), wantCode: codes.Unauthenticated},
		{name: "open method", method: listMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}

			var called bool
			var sub string
			handler := func(ctx context.Context, req any) (any, error) {
				called = true
				sub = Subject(ctx)
				return req, nil
			}

			resp, err := guard(ctx, "req", &grpc.UnaryServerInfo{FullMethod: tt.method}, handler)
			if tt.wantCode != codes.OK {
				assert.Equal(t, tt.wantCode, status.Code(err))
				assert.False(t, called)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "req", resp)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}
