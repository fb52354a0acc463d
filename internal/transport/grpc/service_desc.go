package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName — полное имя gRPC-сервиса.
const ServiceName = "hrm.auth.v1.AuthService"

// AuthServiceServer — серверная сторона hrm.auth.v1.AuthService.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*Member, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Refresh(context.Context, *RefreshRequest) (*AuthResponse, error)
	Logout(context.Context, *LogoutRequest) (*SuccessResponse, error)
	LogoutAll(context.Context, *Empty) (*SuccessResponse, error)
	ActiveSessions(context.Context, *Empty) (*SessionsResponse, error)
	RevokeSession(context.Context, *RevokeSessionRequest) (*SuccessResponse, error)
	VerifyToken(context.Context, *VerifyTokenRequest) (*VerifyTokenResponse, error)
}

// FullMethod возвращает "/hrm.auth.v1.AuthService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServiceDesc описывает сервис для grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", AuthServiceServer.Register),
		unary("Login", AuthServiceServer.Login),
		unary("Refresh", AuthServiceServer.Refresh),
		unary("Logout", AuthServiceServer.Logout),
		unary("LogoutAll", AuthServiceServer.LogoutAll),
		unary("ActiveSessions", AuthServiceServer.ActiveSessions),
		unary("RevokeSession", AuthServiceServer.RevokeSession),
		unary("VerifyToken", AuthServiceServer.VerifyToken),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hrm/auth/v1/auth",
}

// RegisterAuthServiceServer регистрирует реализацию на сервере.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unary строит MethodDesc: декодирует запрос и прогоняет вызов через цепочку интерсепторов.
func unary[Req, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			impl := srv.(AuthServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}

			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(*Req))
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}
