package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/middleware"
)

// Обработчики ниже монтируются за middleware.RequireAuth.

func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	if err := h.svc.LogoutAll(r.Context(), claims.Member()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	sessions, err := h.svc.ActiveSessions(r.Context(), claims.Member())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionsFromModel(sessions, claims))
}

func (h *Handlers) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.WriteError(w, r, apierrors.BadRequest("invalid session id"))
		return
	}

	if err := h.svc.RevokeSession(r.Context(), claims.Member(), id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// sessionsFromModel помечает сессию, к которой относится текущий access-токен.
func sessionsFromModel(in []models.Session, claims *token.Claims) []sessionResponse {
	out := make([]sessionResponse, 0, len(in))
	for _, s := range in {
		out = append(out, sessionResponse{
			ID:          s.ID,
			UserAgent:   s.UserAgent,
			IPAddress:   s.IPAddress,
			IssuedAt:    s.IssuedAt,
			ExpiresAt:   s.ExpiresAt,
			TokenFamily: s.TokenFamily,
			Current:     s.TokenFamily == claims.TokenFamily,
		})
	}

	return out
}
