package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/pribylovaa/hrm-auth/internal/password"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/storage/memory"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

// Сквозные тесты HTTP API поверх настоящего сервиса и memory.Storage.

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenFamily  string `json:"token_family"`
	Member       struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"member"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	codec, err := token.NewCodec(config.AuthConfig{
		AccessSecret:    "http-access",
		RefreshSecret:   "http-refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "hrm-auth",
		Audience:        []string{"hrm-api"},
	})
	require.NoError(t, err)

	hasher, err := password.New(config.PasswordConfig{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4})
	require.NoError(t, err)

	svc := service.New(memory.New(), hasher, codec)

	reg := prometheus.NewRegistry()
	h := NewRouter(svc, Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: 5 * time.Second,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, bearer string, body any) (int, envelope) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "router-test")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func registerAndLogin(t *testing.T, srv *httptest.Server) tokens {
	t.Helper()

	code, env := do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "P@ss1234", "first_name": "Anna",
	})
	require.Equal(t, http.StatusCreated, code)
	require.Nil(t, env.Error)
	require.NotContains(t, string(env.Data), "password")

	code, env = do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "P@ss1234",
	})
	require.Equal(t, http.StatusOK, code)

	var tk tokens
	require.NoError(t, json.Unmarshal(env.Data, &tk))
	require.NotEmpty(t, tk.AccessToken)
	require.NotEmpty(t, tk.RefreshToken)
	return tk
}

func TestRouter_RegisterLoginRefreshReuse(t *testing.T) {
	srv := newTestServer(t)
	first := registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	var second tokens
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.Equal(t, first.TokenFamily, second.TokenFamily)

	code, env = do(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": first.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeTokenReuseDetected, env.Error.Code)
	require.NotEmpty(t, env.Error.RequestID)

	code, env = do(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": second.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeTokenRevoked, env.Error.Code)
}

func TestRouter_RegisterErrors(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "A@x.com", "password": "P@ss1234"})
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, service.CodeEmailExists, env.Error.Code)

	code, env = do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "b@x.com", "password": "weak"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, service.CodeValidationFailed, env.Error.Code)

	code, env = do(t, srv, http.MethodPost, "/auth/register", "", map[string]string{"email": "b@x.com", "role": "admin"})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, service.CodeValidationFailed, env.Error.Code)
}

func TestRouter_LoginInvalidCredentials(t *testing.T) {
	srv := newTestServer(t)
	registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "Wr0ng!pass"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeInvalidCredentials, env.Error.Code)
}

func TestRouter_SessionsAndLogoutAll(t *testing.T) {
	srv := newTestServer(t)
	tk := registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodGet, "/auth/sessions", "", nil)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeInvalidToken, env.Error.Code)

	code, env = do(t, srv, http.MethodGet, "/auth/sessions", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	var sessions []struct {
		ID        int64  `json:"id"`
		UserAgent string `json:"user_agent"`
		IPAddress string `json:"ip_address"`
		Current   bool   `json:"current"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].Current)
	require.Equal(t, "router-test", sessions[0].UserAgent)
	require.Equal(t, "127.0.0.1", sessions[0].IPAddress)

	code, _ = do(t, srv, http.MethodPost, "/auth/logout-all", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, srv, http.MethodGet, "/auth/sessions", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(env.Data))
}

func TestRouter_RevokeSession(t *testing.T) {
	srv := newTestServer(t)
	tk := registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodGet, "/auth/sessions", tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var sessions []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions, 1)
	id := strconv.FormatInt(sessions[0].ID, 10)

	code, env = do(t, srv, http.MethodDelete, "/auth/sessions/abc", tk.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, service.CodeValidationFailed, env.Error.Code)

	code, _ = do(t, srv, http.MethodDelete, "/auth/sessions/"+id, tk.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, srv, http.MethodDelete, "/auth/sessions/"+id, tk.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, service.CodeSessionNotFound, env.Error.Code)
}

func TestRouter_LogoutAlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t)
	tk := registerAndLogin(t, srv)

	for _, body := range []any{
		map[string]string{"refresh_token": tk.RefreshToken},
		map[string]string{"refresh_token": tk.RefreshToken},
		map[string]string{"refresh_token": "garbage"},
		map[string]int{"unexpected": 1},
	} {
		code, env := do(t, srv, http.MethodPost, "/auth/logout", "", body)
		require.Equal(t, http.StatusOK, code)
		require.JSONEq(t, `{"success":true}`, string(env.Data))
	}

	code, env := do(t, srv, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": tk.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeTokenRevoked, env.Error.Code)
}

func TestRouter_Verify(t *testing.T) {
	srv := newTestServer(t)
	tk := registerAndLogin(t, srv)

	code, env := do(t, srv, http.MethodPost, "/auth/verify", "", map[string]string{"access_token": tk.AccessToken})
	require.Equal(t, http.StatusOK, code)

	var out struct {
		Valid       bool   `json:"valid"`
		MemberID    string `json:"member_id"`
		Email       string `json:"email"`
		TokenFamily string `json:"token_family"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.True(t, out.Valid)
	require.Equal(t, tk.Member.ID, out.MemberID)
	require.Equal(t, "a@x.com", out.Email)
	require.Equal(t, tk.TokenFamily, out.TokenFamily)

	code, env = do(t, srv, http.MethodPost, "/auth/verify", "", map[string]string{"access_token": tk.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, service.CodeInvalidToken, env.Error.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newTestServer(t)

	code, env := do(t, srv, http.MethodGet, "/auth/nope", "", nil)
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestRouter_Probes(t *testing.T) {
	ready := false
	h := NewRouter(nil, Options{Ready: func() bool { return ready }})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
