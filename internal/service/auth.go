package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/models"
	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
	"github.com/pribylovaa/hrm-auth/internal/pkg/redact"
	"github.com/pribylovaa/hrm-auth/internal/storage"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"go.opentelemetry.io/otel/codes"
)

// DefaultRole — роль, которая назначается при регистрации без явной роли.
const DefaultRole = "member"

// Register регистрирует нового участника и возвращает его без хэша пароля.
func (s *Service) Register(ctx context.Context, in models.RegisterInput) (*models.Member, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	email, err := validateEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	firstName, lastName := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if err := validateName("first name", firstName); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := validateName("last name", lastName); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.MemberByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailExists)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = DefaultRole
	}

	now := s.now().UTC()
	member := &models.Member{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveMember(ctx, member); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("member_registered",
		slog.String("member_id", member.ID.String()),
		slog.String("email", redact.Email(email)),
	)

	return member.Sanitized(), nil
}

// Login выполняет вход по email и паролю и открывает новое семейство токенов.
func (s *Service) Login(ctx context.Context, email, password string, meta models.ClientMeta) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	res, err := s.login(ctx, email, password, meta)
	s.metrics.Login(ResultCode(err))
	if err != nil {
		span.SetStatus(codes.Error, ResultCode(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) login(ctx context.Context, rawEmail, password string, meta models.ClientMeta) (*models.AuthResult, error) {
	lg := log.From(ctx)

	email := normalizeEmail(rawEmail)
	if email == "" {
		return nil, ErrInvalidCredentials
	}

	member, err := s.storage.MemberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Info("login_unknown_email", slog.String("email", redact.Email(email)))
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if !member.IsActive {
		lg.Info("login_inactive_member", slog.String("member_id", member.ID.String()))
		return nil, ErrAccountInactive
	}

	if !s.hasher.Verify(ctx, password, member.PasswordHash) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lg.Info("login_wrong_password", slog.String("member_id", member.ID.String()))
		return nil, ErrInvalidCredentials
	}

	family := token.NewTokenFamily()

	res, err := s.issue(ctx, member, family, meta)
	if err != nil {
		return nil, err
	}

	rec, err := s.saveRefresh(ctx, member.ID, res, meta)
	if err != nil {
		return nil, err
	}

	// Время входа не участвует в проверках: ошибку только логируем.
	if err := s.storage.UpdateLastLogin(ctx, member.ID, rec.IssuedAt); err != nil {
		lg.Warn("update_last_login_failed",
			slog.String("member_id", member.ID.String()),
			slog.String("err", err.Error()),
		)
	} else {
		at := rec.IssuedAt
		res.Member.LastLoginAt = &at
	}

	lg.Info("login_succeeded",
		slog.String("member_id", member.ID.String()),
		slog.String("token_family", family),
	)

	return res, nil
}

// issue подписывает пару токенов в семействе family.
func (s *Service) issue(ctx context.Context, member *models.Member, family string, meta models.ClientMeta) (*models.AuthResult, error) {
	access, accessExp, err := s.codec.SignAccessToken(member.ID, member.Email, family)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed", slog.String("err", err.Error()))
		return nil, err
	}

	refresh, refreshExp, err := s.codec.SignRefreshToken(member.ID, family)
	if err != nil {
		log.From(ctx).Error("refresh_token_sign_failed", slog.String("err", err.Error()))
		return nil, err
	}

	return &models.AuthResult{
		Member:           member.Sanitized(),
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenFamily:      family,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// newRecord строит запись для выпущенного refresh-токена. Сам токен не сохраняется.
func (s *Service) newRecord(memberID uuid.UUID, res *models.AuthResult, meta models.ClientMeta) *models.RefreshToken {
	return &models.RefreshToken{
		MemberID:    memberID,
		TokenHash:   token.HashOpaque(res.RefreshToken),
		TokenFamily: res.TokenFamily,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		IssuedAt:    s.now().UTC(),
		ExpiresAt:   res.RefreshExpiresAt,
	}
}

func (s *Service) saveRefresh(ctx context.Context, memberID uuid.UUID, res *models.AuthResult, meta models.ClientMeta) (*models.RefreshToken, error) {
	rec := s.newRecord(memberID, res, meta)

	if _, err := s.storage.SaveRefreshToken(ctx, rec); err != nil {
		log.From(ctx).Error("save_refresh_token_failed",
			slog.String("member_id", memberID.String()),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	return rec, nil
}

// VerifyAccessToken проверяет access-токен. Любая ошибка, включая истечение
// срока, даёт INVALID_TOKEN: клиент в любом случае идёт за новым токеном в refresh.
func (s *Service) VerifyAccessToken(ctx context.Context, raw string) (*token.Claims, error) {
	const op = "service.auth.VerifyAccessToken"

	claims, err := s.codec.Verify(raw, token.TypeAccess)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}
