package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/hrm-auth/internal/events"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"github.com/pribylovaa/hrm-auth/internal/storage"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Refresh обменивает refresh-токен на новую пару токенов того же семейства.
//
// Предъявленный токен погашается ровно один раз: ротация в хранилище
// отзывает старую запись и создаёт новую в одной транзакции. Повторное
// предъявление погашенного токена при живом семействе считается кражей:
// всё семейство отзывается, возвращается ErrTokenReuseDetected.
func (s *Service) Refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error) {
	const op = "service.refresh.Refresh"

	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	res, err := s.refresh(ctx, raw, meta)
	s.metrics.Refresh(ResultCode(err))
	if err != nil {
		span.SetStatus(codes.Error, ResultCode(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	span.SetAttributes(attribute.String("auth.token_family", res.TokenFamily))

	return res, nil
}

func (s *Service) refresh(ctx context.Context, raw string, meta models.ClientMeta) (*models.AuthResult, error) {
	claims, err := s.codec.Verify(raw, token.TypeRefresh)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}

		return nil, ErrInvalidToken
	}

	memberID := claims.Member()
	family := claims.TokenFamily

	ctx, lg := log.With(ctx,
		slog.String("member_id", memberID.String()),
		slog.String("token_family", family),
	)

	if s.families != nil {
		revoked, err := s.families.IsRevoked(ctx, family)
		if err != nil {
			// Кэш не источник истины: при сбое Redis решает хранилище.
			lg.Warn("family_cache_lookup_failed", slog.String("err", err.Error()))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	hash := token.HashOpaque(raw)

	rec, err := s.storage.RefreshTokenByMemberAndHash(ctx, memberID, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		return nil, s.handleMissing(ctx, memberID.String(), claims, hash, meta)
	}

	now := s.now().UTC()
	if !now.Before(rec.ExpiresAt) {
		if _, err := s.storage.RevokeRefreshToken(ctx, rec.ID); err != nil {
			lg.Warn("expired_refresh_revoke_failed", slog.String("err", err.Error()))
		}

		return nil, ErrTokenExpired
	}

	member, err := s.storage.MemberByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidMember
		}

		return nil, err
	}
	if !member.IsActive {
		lg.Info("refresh_inactive_member")
		return nil, ErrInvalidMember
	}

	res, err := s.issue(ctx, member, family, meta)
	if err != nil {
		return nil, err
	}

	next := s.newRecord(member.ID, res, meta)

	// Ротация доводится до конца даже если клиент оборвал запрос.
	rotCtx, cancel := s.detached(ctx)
	defer cancel()

	if _, err := s.storage.RotateRefreshToken(rotCtx, rec.ID, next); err != nil {
		if errors.Is(err, storage.ErrRevoked) {
			// Конкурентный запрос погасил этот токен раньше нас.
			return nil, s.reuseDetected(ctx, memberID.String(), claims, meta)
		}

		lg.Error("refresh_rotate_failed", slog.String("err", err.Error()))
		return nil, err
	}

	lg.Info("refresh_rotated")

	return res, nil
}

// handleMissing разбирает случай, когда подписанный токен не найден среди
// активных записей: повторное использование, отозванный или чужой токен.
func (s *Service) handleMissing(ctx context.Context, memberID string, claims *token.Claims, hash string, meta models.ClientMeta) error {
	alive, err := s.storage.HasActiveFamily(ctx, claims.Member(), claims.TokenFamily)
	if err != nil {
		// Без ответа хранилища нельзя отличить кражу от выхода: отказываем, не отзывая.
		log.From(ctx).Error("active_family_lookup_failed", slog.String("err", err.Error()))
		return err
	}

	if alive {
		return s.reuseDetected(ctx, memberID, claims, meta)
	}

	rec, err := s.storage.RefreshTokenByHash(ctx, hash)
	switch {
	case err == nil && rec.MemberID == claims.Member() && rec.IsRevoked:
		// Живых записей в семействе нет (reuse, logout-all, logout последнего токена):
		// отозванный токен участника даёт TOKEN_REVOKED, а не INVALID_TOKEN.
		return ErrTokenRevoked
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return err
	}

	return ErrInvalidToken
}

// reuseDetected отзывает всё семейство и сообщает о компрометации.
func (s *Service) reuseDetected(ctx context.Context, memberID string, claims *token.Claims, meta models.ClientMeta) error {
	lg := log.From(ctx)

	revCtx, cancel := s.detached(ctx)
	defer cancel()

	n, err := s.storage.RevokeFamily(revCtx, claims.Member(), claims.TokenFamily)
	if err != nil {
		lg.Error("revoke_family_failed", slog.String("err", err.Error()))
		return err
	}

	if s.families != nil {
		if err := s.families.MarkRevoked(revCtx, claims.TokenFamily, s.codec.RefreshTTL()); err != nil {
			lg.Warn("family_cache_mark_failed", slog.String("err", err.Error()))
		}
	}

	s.metrics.ReuseDetected()

	ev := events.SecurityEvent{
		Type:        events.TypeTokenReuseDetected,
		MemberID:    memberID,
		TokenFamily: claims.TokenFamily,
		Revoked:     n,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.Publish(revCtx, ev); err != nil {
		lg.Warn("security_event_publish_failed", slog.String("err", err.Error()))
	}

	lg.Warn("refresh_token_reuse_detected",
		slog.Int64("revoked", n),
		slog.String("ip", meta.IPAddress),
	)

	return ErrTokenReuseDetected
}
