// handlers — HTTP-обработчики auth API. Здесь только разбор запроса,
// вызов сервиса и сборка ответа; бизнес-логика живёт в пакете service.
package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/token"
)

// AuthService — операции сервиса, которые использует HTTP API.
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

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc AuthService
}

func New(svc AuthService) *Handlers {
	return &Handlers{svc: svc}
}

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 16

// dataResponse — успешный ответ.
type dataResponse struct {
	Data any `json:"data"`
}

// writeJSON пишет {"data": value} с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataResponse{Data: value})
}

// decodeStrict — строгий JSON-декодер: неизвестные поля запрещены.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// clientMeta собирает User-Agent и IP клиента. RemoteAddr к этому моменту
// уже переписан chi/middleware.RealIP, если запрос пришёл через прокси.
func clientMeta(r *http.Request) models.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return models.ClientMeta{UserAgent: r.UserAgent(), IPAddress: ip}
}
