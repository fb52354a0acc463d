package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/apierrors"
)

// AccessVerifier проверяет access-токен.
type AccessVerifier interface {
	VerifyAccessToken(ctx context.Context, raw string) (*token.Claims, error)
}

type claimsKey struct{}

// RequireAuth пропускает запрос только с валидным "Authorization: Bearer <access>".
// Claims кладутся в контекст (см. ClaimsFrom), member_id — в логгер запроса.
func RequireAuth(v AccessVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			claims, err := v.VerifyAccessToken(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx, _ = log.With(ctx, slog.String("member_id", claims.MemberID))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные RequireAuth.
func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*token.Claims)
	return c, ok && c != nil
}

// BearerToken извлекает токен из заголовка Authorization.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
