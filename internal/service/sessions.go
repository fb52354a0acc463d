package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"github.com/pribylovaa/hrm-auth/internal/pkg/redact"
	"github.com/pribylovaa/hrm-auth/internal/token"
)

// Logout отзывает refresh-токен, если он известен хранилищу.
// Ошибок не возвращает: выход с мусорным или уже отозванным токеном тоже успешен.
func (s *Service) Logout(ctx context.Context, raw string) {
	lg := log.From(ctx)

	if raw == "" {
		s.metrics.Logout("single")
		return
	}

	ctx, cancel := s.detached(ctx)
	defer cancel()

	revoked, err := s.storage.RevokeRefreshTokenByHash(ctx, token.HashOpaque(raw))
	if err != nil {
		lg.Warn("logout_revoke_failed",
			slog.String("token", redact.Token(raw)),
			slog.String("err", err.Error()),
		)
	} else {
		lg.Info("logout", slog.String("token", redact.Token(raw)), slog.Bool("revoked", revoked))
	}

	s.metrics.Logout("single")
}

// LogoutAll отзывает все refresh-токены участника во всех семействах.
func (s *Service) LogoutAll(ctx context.Context, memberID uuid.UUID) error {
	const op = "service.sessions.LogoutAll"

	ctx, cancel := s.detached(ctx)
	defer cancel()

	n, err := s.storage.RevokeAllForMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Logout("all")
	log.From(ctx).Info("logout_all",
		slog.String("member_id", memberID.String()),
		slog.Int64("revoked", n),
	)

	return nil
}

// ActiveSessions возвращает неотозванные и непросроченные сессии участника,
// новые первыми.
func (s *Service) ActiveSessions(ctx context.Context, memberID uuid.UUID) ([]models.Session, error) {
	const op = "service.sessions.ActiveSessions"

	tokens, err := s.storage.ActiveRefreshTokens(ctx, memberID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions := make([]models.Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, models.SessionFromToken(t))
	}

	return sessions, nil
}

// RevokeSession отзывает одну сессию участника по её идентификатору.
// Чужая или уже отозванная сессия даёт ErrSessionNotFound.
func (s *Service) RevokeSession(ctx context.Context, memberID uuid.UUID, sessionID int64) error {
	const op = "service.sessions.RevokeSession"

	ok, err := s.storage.RevokeMemberRefreshToken(ctx, memberID, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}

	s.metrics.Logout("session")
	log.From(ctx).Info("session_revoked",
		slog.String("member_id", memberID.String()),
		slog.Int64("session_id", sessionID),
	)

	return nil
}

// CleanupExpired удаляет refresh-токены с истёкшим сроком. Вызывается janitor'ом.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	const op = "service.sessions.CleanupExpired"

	n, err := s.storage.DeleteExpiredTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.ExpiredDeleted(n)

	return n, nil
}

// SetMemberActive блокирует или разблокирует участника. При блокировке
// все его сессии отзываются.
func (s *Service) SetMemberActive(ctx context.Context, memberID uuid.UUID, active bool) error {
	const op = "service.sessions.SetMemberActive"

	if err := s.storage.SetMemberActive(ctx, memberID, active); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !active {
		if _, err := s.storage.RevokeAllForMember(ctx, memberID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}
