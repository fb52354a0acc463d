package token

import (
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Issuer:          "hrm-auth",
		Audience:        []string{"hrm-api"},
		Leeway:          5 * time.Second,
	}
}

func newCodec(t *testing.T, mutate func(*config.AuthConfig)) *Codec {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := NewCodec(cfg)
	require.NoError(t, err)

	return c
}

func TestNewCodec_RejectsSharedKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RefreshSecret = cfg.AccessSecret

	_, err := NewCodec(cfg)
	require.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	memberID := uuid.New()
	family := NewTokenFamily()

	raw, exp, err := c.SignAccessToken(memberID, "a@x.com", family)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	claims, err := c.Verify(raw, TypeAccess)
	require.NoError(t, err)
	require.Equal(t, memberID, claims.Member())
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, family, claims.TokenFamily)
	require.Equal(t, TypeAccess, claims.Type)
	require.Equal(t, "hrm-auth", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"hrm-api"}, claims.Audience)
	require.NotEmpty(t, claims.ID)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	memberID := uuid.New()
	family := NewTokenFamily()

	raw, exp, err := c.SignRefreshToken(memberID, family)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, 2*time.Second)

	claims, err := c.Verify(raw, TypeRefresh)
	require.NoError(t, err)
	require.Equal(t, memberID, claims.Member())
	require.Empty(t, claims.Email)
	require.Equal(t, family, claims.TokenFamily)
	require.Equal(t, TypeRefresh, claims.Type)
}

func TestVerify_WrongTypeOrKey(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	memberID := uuid.New()

	access, _, err := c.SignAccessToken(memberID, "a@x.com", "fam")
	require.NoError(t, err)
	refresh, _, err := c.SignRefreshToken(memberID, "fam")
	require.NoError(t, err)

	_, err = c.Verify(access, TypeRefresh)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = c.Verify(refresh, TypeAccess)
	require.ErrorIs(t, err, ErrInvalid)

	// Подпись верная, но type не совпадает с ожидаемым.
	forged := Claims{
		MemberID:    memberID.String(),
		TokenFamily: "fam",
		Type:        TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "hrm-auth",
			Audience:  jwt.ClaimStrings{"hrm-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte("refresh-secret"))
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeRefresh)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	past := newCodec(t, nil).WithClock(func() time.Time {
		return time.Now().Add(-8 * 24 * time.Hour)
	})
	c := newCodec(t, nil)

	access, _, err := past.SignAccessToken(uuid.New(), "a@x.com", "fam")
	require.NoError(t, err)
	refresh, _, err := past.SignRefreshToken(uuid.New(), "fam")
	require.NoError(t, err)

	_, err = c.Verify(access, TypeAccess)
	require.ErrorIs(t, err, ErrExpired)

	_, err = c.Verify(refresh, TypeRefresh)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_ExpiredWithForeignIssuer_IsInvalid(t *testing.T) {
	t.Parallel()

	past := newCodec(t, func(cfg *config.AuthConfig) { cfg.Issuer = "someone-else" }).
		WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	c := newCodec(t, nil)

	raw, _, err := past.SignAccessToken(uuid.New(), "a@x.com", "fam")
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeAccess)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_LeewayAcceptsJustExpired(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	past := c.WithClock(func() time.Time {
		return time.Now().Add(-15*time.Minute - 2*time.Second)
	})

	raw, _, err := past.SignAccessToken(uuid.New(), "a@x.com", "fam")
	require.NoError(t, err)

	_, err = c.Verify(raw, TypeAccess)
	require.NoError(t, err)
}

func TestVerify_IssuerAudienceMismatch(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	otherIssuer := newCodec(t, func(cfg *config.AuthConfig) { cfg.Issuer = "other" })
	otherAudience := newCodec(t, func(cfg *config.AuthConfig) { cfg.Audience = []string{"billing"} })

	raw, _, err := otherIssuer.SignAccessToken(uuid.New(), "a@x.com", "fam")
	require.NoError(t, err)
	_, err = c.Verify(raw, TypeAccess)
	require.ErrorIs(t, err, ErrInvalid)

	raw, _, err = otherAudience.SignAccessToken(uuid.New(), "a@x.com", "fam")
	require.NoError(t, err)
	_, err = c.Verify(raw, TypeAccess)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)

	for _, raw := range []string{"", "garbage", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		_, err := c.Verify(raw, TypeAccess)
		require.ErrorIs(t, err, ErrInvalid, raw)
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	c := newCodec(t, nil)
	raw, _, err := c.SignRefreshToken(uuid.New(), "fam")
	require.NoError(t, err)

	tampered := raw[:len(raw)-2] + "xx"
	if tampered == raw {
		tampered = raw[:len(raw)-2] + "yy"
	}

	_, err = c.Verify(tampered, TypeRefresh)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestSameSecondTokensDiffer(t *testing.T) {
	t.Parallel()

	fixed := time.Now()
	c := newCodec(t, nil).WithClock(func() time.Time { return fixed })
	memberID := uuid.New()

	a, _, err := c.SignRefreshToken(memberID, "fam")
	require.NoError(t, err)
	b, _, err := c.SignRefreshToken(memberID, "fam")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.NotEqual(t, HashOpaque(a), HashOpaque(b))
}

func TestHashOpaque(t *testing.T) {
	t.Parallel()

	hexRe := regexp.MustCompile(`^[0-9a-f]{64}$`)

	h1 := HashOpaque("token-1")
	require.Regexp(t, hexRe, h1)
	require.Equal(t, h1, HashOpaque("token-1"))
	require.NotEqual(t, h1, HashOpaque("token-2"))
	require.Regexp(t, hexRe, HashOpaque(""))
}

func TestNewTokenFamily(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		f := NewTokenFamily()
		id, err := uuid.Parse(f)
		require.NoError(t, err)
		require.Equal(t, uuid.Version(4), id.Version())

		_, dup := seen[f]
		require.False(t, dup)
		seen[f] = struct{}{}
	}
}
