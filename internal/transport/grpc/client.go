package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client — клиент hrm.auth.v1.AuthService с JSON-кодеком.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithAccessToken добавляет "authorization: Bearer <token>" в исходящий контекст.
func WithAccessToken(ctx context.Context, access string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+access)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*Member, error) {
	return invoke[Member](ctx, c.cc, "Register", in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Login", in, opts)
}

func (c *Client) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Refresh", in, opts)
}

func (c *Client) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*SuccessResponse, error) {
	return invoke[SuccessResponse](ctx, c.cc, "Logout", in, opts)
}

func (c *Client) LogoutAll(ctx context.Context, opts ...grpc.CallOption) (*SuccessResponse, error) {
	return invoke[SuccessResponse](ctx, c.cc, "LogoutAll", &Empty{}, opts)
}

func (c *Client) ActiveSessions(ctx context.Context, opts ...grpc.CallOption) (*SessionsResponse, error) {
	return invoke[SessionsResponse](ctx, c.cc, "ActiveSessions", &Empty{}, opts)
}

func (c *Client) RevokeSession(ctx context.Context, in *RevokeSessionRequest, opts ...grpc.CallOption) (*SuccessResponse, error) {
	return invoke[SuccessResponse](ctx, c.cc, "RevokeSession", in, opts)
}

func (c *Client) VerifyToken(ctx context.Context, in *VerifyTokenRequest, opts ...grpc.CallOption) (*VerifyTokenResponse, error) {
	return invoke[VerifyTokenResponse](ctx, c.cc, "VerifyToken", in, opts)
}
