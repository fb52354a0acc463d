// token выпускает и проверяет access/refresh JWT.
//
// Access и refresh подписываются HS256 разными ключами. Ошибки проверки
// сводятся к двум видам: ErrExpired (истёк только срок) и ErrInvalid
// (всё остальное), чтобы сервис ветвился по типу ошибки, а не по ошибкам
// JWT-библиотеки.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/config"
)

// Type — назначение токена.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	// ErrExpired — подпись и прочие проверки пройдены, но срок действия истёк.
	ErrExpired = errors.New("token expired")
	// ErrInvalid — подпись, формат, тип, issuer или audience не прошли проверку.
	ErrInvalid = errors.New("invalid token")
)

// Claims — полезная нагрузка токенов. Email заполняется только в access.
type Claims struct {
	MemberID    string `json:"memberId"`
	Email       string `json:"email,omitempty"`
	TokenFamily string `json:"tokenFamily"`
	Type        Type   `json:"type"`
	jwt.RegisteredClaims
}

// Member возвращает идентификатор участника из claims.
func (c *Claims) Member() uuid.UUID {
	id, _ := uuid.Parse(c.MemberID)
	return id
}

// Codec подписывает и проверяет токены. Безопасен для конкурентного использования.
type Codec struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   []string
	leeway     time.Duration
	now        func() time.Time
}

// NewCodec создаёт Codec по конфигурации.
func NewCodec(cfg config.AuthConfig) (*Codec, error) {
	const op = "token.token.NewCodec"

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Codec{
		accessKey:  []byte(cfg.AccessSecret),
		refreshKey: []byte(cfg.RefreshSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		leeway:     cfg.Leeway,
		now:        time.Now,
	}, nil
}

// WithClock подменяет источник времени (для тестов).
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

// RefreshTTL — время жизни refresh-токена; используется для expires_at записи.
func (c *Codec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// SignAccessToken выпускает access-токен и возвращает момент его истечения.
func (c *Codec) SignAccessToken(memberID uuid.UUID, email, family string) (string, time.Time, error) {
	const op = "token.token.SignAccessToken"

	signed, exp, err := c.sign(Claims{
		MemberID:    memberID.String(),
		Email:       email,
		TokenFamily: family,
		Type:        TypeAccess,
	}, c.accessKey, c.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// SignRefreshToken выпускает refresh-токен и возвращает момент его истечения.
func (c *Codec) SignRefreshToken(memberID uuid.UUID, family string) (string, time.Time, error) {
	const op = "token.token.SignRefreshToken"

	signed, exp, err := c.sign(Claims{
		MemberID:    memberID.String(),
		TokenFamily: family,
		Type:        TypeRefresh,
	}, c.refreshKey, c.refreshTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

func (c *Codec) sign(claims Claims, key []byte, ttl time.Duration) (string, time.Time, error) {
	now := c.now().UTC()
	exp := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   claims.MemberID,
		Issuer:    c.issuer,
		Audience:  jwt.ClaimStrings(c.audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, exp, nil
}

// Verify проверяет подпись, срок, issuer, audience и тип токена.
func (c *Codec) Verify(raw string, expected Type) (*Claims, error) {
	const op = "token.token.Verify"

	key := c.accessKey
	if expected == TypeRefresh {
		key = c.refreshKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if len(c.audience) > 0 {
		opts = append(opts, jwt.WithAudience(c.audience...))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	if err != nil {
		// Библиотека возвращает ErrTokenExpired только после успешной проверки подписи.
		if errors.Is(err, jwt.ErrTokenExpired) && onlyExpired(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	if !tok.Valid || claims.Type != expected || claims.TokenFamily == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	if _, err := uuid.Parse(claims.MemberID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return &claims, nil
}

// onlyExpired сообщает, что среди ошибок валидации claims нет ничего, кроме истечения срока.
func onlyExpired(err error) bool {
	for _, other := range []error{
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}

	return true
}

// HashOpaque возвращает SHA-256 от строки токена в виде 64 hex-символов.
// Используется как ключ поиска refresh-токена: сам токен не хранится.
func HashOpaque(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewTokenFamily возвращает новый идентификатор семейства (UUIDv4).
func NewTokenFamily() string {
	return uuid.NewString()
}
