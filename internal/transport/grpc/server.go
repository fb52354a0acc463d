// grpc содержит gRPC-транспорт hrm.auth.v1.AuthService.
// Здесь выполняется только маппинг данных и ошибок сервисного слоя в gRPC;
// валидация и бизнес-логика находятся в пакете service.
//
// Ошибки:
//   - *service.Error -> код gRPC по HTTP-статусу ошибки, сообщение "CODE: message",
//     сам код дублируется в trailer "x-error-code";
//   - отмена и дедлайн -> Canceled / DeadlineExceeded;
//   - прочее -> Internal с единым безопасным сообщением.
//
// LogoutAll, ActiveSessions и RevokeSession требуют "authorization: Bearer <access>"
// во входящих metadata.
package grpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// TrailerErrorCode — trailer с машинно-читаемым кодом бизнес-ошибки.
const TrailerErrorCode = "x-error-code"

// AuthService — операции сервиса, которые использует gRPC-транспорт.
type AuthService interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.Member, error)
	Login(ctx context.Context, email, password string, meta models.ClientMeta) (*models.AuthResult, error)
	Refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error)
	Logout(ctx context.Context, raw string)
	LogoutAll(ctx context.Context, memberID uuid.UUID) error
	ActiveSessions(ctx context.Context, memberID uuid.UUID) ([]models.Session, error)
	RevokeSession(ctx context.Context, memberID uuid.UUID, sessionID int64) error
	VerifyAccessToken(ctx context.Context, raw string) (*token.Claims, error)
}

// AuthServer реализует AuthServiceServer поверх сервисного слоя.
type AuthServer struct {
	service AuthService
}

var _ AuthServiceServer = (*AuthServer)(nil)

// NewAuthServer создаёт gRPC-сервер авторизации поверх сервисного слоя.
func NewAuthServer(svc AuthService) *AuthServer {
	return &AuthServer{service: svc}
}

func (s *AuthServer) Register(ctx context.Context, req *RegisterRequest) (*Member, error) {
	m, err := s.service.Register(ctx, models.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out := memberFromModel(m)
	return &out, nil
}

func (s *AuthServer) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	res, err := s.service.Login(ctx, req.Email, req.Password, clientMeta(ctx))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return authFromModel(res), nil
}

func (s *AuthServer) Refresh(ctx context.Context, req *RefreshRequest) (*AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	res, err := s.service.Refresh(ctx, req.RefreshToken, clientMeta(ctx))
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return authFromModel(res), nil
}

// Logout всегда успешен.
func (s *AuthServer) Logout(ctx context.Context, req *LogoutRequest) (*SuccessResponse, error) {
	s.service.Logout(ctx, req.RefreshToken)
	return &SuccessResponse{Success: true}, nil
}

func (s *AuthServer) LogoutAll(ctx context.Context, _ *Empty) (*SuccessResponse, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.service.LogoutAll(ctx, claims.Member()); err != nil {
		return nil, toStatus(ctx, err)
	}

	return &SuccessResponse{Success: true}, nil
}

func (s *AuthServer) ActiveSessions(ctx context.Context, _ *Empty) (*SessionsResponse, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	sessions, err := s.service.ActiveSessions(ctx, claims.Member())
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	out := &SessionsResponse{Sessions: make([]Session, 0, len(sessions))}
	for _, ss := range sessions {
		out.Sessions = append(out.Sessions, Session{
			ID:          ss.ID,
			UserAgent:   ss.UserAgent,
			IPAddress:   ss.IPAddress,
			IssuedAt:    ss.IssuedAt,
			ExpiresAt:   ss.ExpiresAt,
			TokenFamily: ss.TokenFamily,
		})
	}

	return out, nil
}

func (s *AuthServer) RevokeSession(ctx context.Context, req *RevokeSessionRequest) (*SuccessResponse, error) {
	claims, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if req.SessionID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "session_id must be positive")
	}

	if err := s.service.RevokeSession(ctx, claims.Member(), req.SessionID); err != nil {
		return nil, toStatus(ctx, err)
	}

	return &SuccessResponse{Success: true}, nil
}

// VerifyToken при невалидном токене не возвращает RPC-ошибку, а отдаёт {valid:false}.
func (s *AuthServer) VerifyToken(ctx context.Context, req *VerifyTokenRequest) (*VerifyTokenResponse, error) {
	claims, err := s.service.VerifyAccessToken(ctx, req.AccessToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return &VerifyTokenResponse{Valid: false}, nil
		}
		return nil, toStatus(ctx, err)
	}

	out := &VerifyTokenResponse{
		Valid:       true,
		MemberID:    claims.MemberID,
		Email:       claims.Email,
		TokenFamily: claims.TokenFamily,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}

	return out, nil
}

// authenticate проверяет access-токен из metadata "authorization".
func (s *AuthServer) authenticate(ctx context.Context) (*token.Claims, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	var raw string
	for _, v := range md.Get("authorization") {
		scheme, cred, ok := strings.Cut(v, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			raw = strings.TrimSpace(cred)
			break
		}
	}
	if raw == "" {
		return nil, toStatus(ctx, service.ErrInvalidToken)
	}

	claims, err := s.service.VerifyAccessToken(ctx, raw)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return claims, nil
}

// toStatus транслирует ошибку сервиса в gRPC-статус.
func toStatus(ctx context.Context, err error) error {
	var svcErr *service.Error

	switch {
	case errors.As(err, &svcErr):
		_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerErrorCode, svcErr.Code))
		return status.Error(codeFromHTTP(svcErr.Status), svcErr.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

func codeFromHTTP(httpStatus int) codes.Code {
	switch httpStatus {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// clientMeta берёт User-Agent из metadata и адрес клиента из peer.
func clientMeta(ctx context.Context) models.ClientMeta {
	var meta models.ClientMeta

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get("user-agent"); len(v) > 0 {
			meta.UserAgent = v[0]
		}
	}

	if p, ok := peer.FromContext(ctx); ok && p != nil && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		meta.IPAddress = addr
	}

	return meta
}

func memberFromModel(m *models.Member) Member {
	if m == nil {
		return Member{}
	}

	return Member{
		ID:          m.ID.String(),
		Email:       m.Email,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Role:        m.Role,
		IsActive:    m.IsActive,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
	}
}

func authFromModel(res *models.AuthResult) *AuthResponse {
	return &AuthResponse{
		Member:           memberFromModel(res.Member),
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		TokenFamily:      res.TokenFamily,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}
