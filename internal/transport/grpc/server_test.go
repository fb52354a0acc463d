package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/pribylovaa/hrm-auth/internal/interceptors"
	"github.com/pribylovaa/hrm-auth/internal/password"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/storage/memory"
	"github.com/pribylovaa/hrm-auth/internal/token"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// Сквозные тесты gRPC-транспорта: настоящий сервис, memory.Storage,
// цепочка интерсепторов и JSON-кодек поверх bufconn.

const bufSize = 1 << 20

func newTestClient(t *testing.T) *Client {
	t.Helper()

	codec, err := token.NewCodec(config.AuthConfig{
		AccessSecret:    "grpc-access",
		RefreshSecret:   "grpc-refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "hrm-auth",
		Audience:        []string{"hrm-api"},
	})
	require.NoError(t, err)

	hasher, err := password.New(config.PasswordConfig{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4})
	require.NoError(t, err)

	svc := service.New(memory.New(), hasher, codec)
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.Recover(lg),
		interceptors.Logging(lg),
		interceptors.WithTimeout(5*time.Second),
	))
	RegisterAuthServiceServer(srv, NewAuthServer(svc))

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return NewClient(conn)
}

func register(t *testing.T, c *Client, email string) {
	t.Helper()

	_, err := c.Register(context.Background(), &RegisterRequest{Email: email, Password: "P@ss1234"})
	require.NoError(t, err)
}

func login(t *testing.T, c *Client, email string) *AuthResponse {
	t.Helper()

	res, err := c.Login(context.Background(), &LoginRequest{Email: email, Password: "P@ss1234"})
	require.NoError(t, err)
	return res
}

// requireCode проверяет gRPC-код и код бизнес-ошибки из trailer.
func requireCode(t *testing.T, err error, trailer metadata.MD, want codes.Code, errCode string) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, want, status.Code(err), err.Error())
	if errCode != "" {
		require.Equal(t, []string{errCode}, trailer.Get(TrailerErrorCode))
	}
}

func TestRegister_AndDuplicate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	m, err := c.Register(ctx, &RegisterRequest{Email: "Ann@Example.com", Password: "P@ss1234", FirstName: "Ann"})
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", m.Email)
	require.Equal(t, service.DefaultRole, m.Role)
	require.True(t, m.IsActive)
	require.NotEmpty(t, m.ID)

	var tr metadata.MD
	_, err = c.Register(ctx, &RegisterRequest{Email: "ann@example.com", Password: "P@ss1234"}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.AlreadyExists, service.CodeEmailExists)
}

func TestRegister_Validation(t *testing.T) {
	c := newTestClient(t)

	var tr metadata.MD
	_, err := c.Register(context.Background(), &RegisterRequest{Email: "bad", Password: "weak"}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.InvalidArgument, service.CodeValidationFailed)
}

func TestLogin_Errors(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "bob@example.com")

	var tr metadata.MD
	_, err := c.Login(context.Background(), &LoginRequest{Email: "bob@example.com", Password: "wrong"}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeInvalidCredentials)

	tr = nil
	_, err = c.Login(context.Background(), &LoginRequest{Email: "nobody@example.com", Password: "P@ss1234"}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeInvalidCredentials)
}

func TestRefresh_RotationAndReuse(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	register(t, c, "carl@example.com")
	first := login(t, c, "carl@example.com")

	second, err := c.Refresh(ctx, &RefreshRequest{RefreshToken: first.RefreshToken})
	require.NoError(t, err)
	require.Equal(t, first.TokenFamily, second.TokenFamily)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	var tr metadata.MD
	_, err = c.Refresh(ctx, &RefreshRequest{RefreshToken: first.RefreshToken}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeTokenReuseDetected)

	// Семейство отозвано целиком: свежий токен тоже не работает.
	tr = nil
	_, err = c.Refresh(ctx, &RefreshRequest{RefreshToken: second.RefreshToken}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeTokenRevoked)
}

func TestRefresh_EmptyToken(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Refresh(context.Background(), &RefreshRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "dina@example.com")
	first := login(t, c, "dina@example.com")

	const n = 8
	var wg sync.WaitGroup
	results := make([]codes.Code, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Refresh(context.Background(), &RefreshRequest{RefreshToken: first.RefreshToken})
			results[i] = status.Code(err)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, code := range results {
		switch code {
		case codes.OK:
			won++
		default:
			require.Equal(t, codes.Unauthenticated, code)
		}
	}
	require.Equal(t, 1, won)
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	register(t, c, "eve@example.com")
	res := login(t, c, "eve@example.com")

	for _, raw := range []string{res.RefreshToken, res.RefreshToken, "", "garbage"} {
		out, err := c.Logout(ctx, &LogoutRequest{RefreshToken: raw})
		require.NoError(t, err)
		require.True(t, out.Success)
	}

	var tr metadata.MD
	_, err := c.Refresh(ctx, &RefreshRequest{RefreshToken: res.RefreshToken}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeTokenRevoked)
}

func TestSessions_RequireAccessToken(t *testing.T) {
	c := newTestClient(t)

	var tr metadata.MD
	_, err := c.ActiveSessions(context.Background(), grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.Unauthenticated, service.CodeInvalidToken)

	_, err = c.LogoutAll(WithAccessToken(context.Background(), "not-a-jwt"))
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSessions_ListRevokeAndLogoutAll(t *testing.T) {
	c := newTestClient(t)
	register(t, c, "finn@example.com")
	a := login(t, c, "finn@example.com")
	b := login(t, c, "finn@example.com")

	ctx := WithAccessToken(context.Background(), a.AccessToken)

	list, err := c.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)

	var target int64
	for _, s := range list.Sessions {
		if s.TokenFamily == b.TokenFamily {
			target = s.ID
		}
	}
	require.NotZero(t, target)

	_, err = c.RevokeSession(ctx, &RevokeSessionRequest{SessionID: target})
	require.NoError(t, err)

	var tr metadata.MD
	_, err = c.RevokeSession(ctx, &RevokeSessionRequest{SessionID: target}, grpc.Trailer(&tr))
	requireCode(t, err, tr, codes.NotFound, service.CodeSessionNotFound)

	_, err = c.RevokeSession(ctx, &RevokeSessionRequest{SessionID: 0})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	out, err := c.LogoutAll(ctx)
	require.NoError(t, err)
	require.True(t, out.Success)

	list, err = c.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Empty(t, list.Sessions)
}

func TestVerifyToken(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	register(t, c, "gail@example.com")
	res := login(t, c, "gail@example.com")

	ok, err := c.VerifyToken(ctx, &VerifyTokenRequest{AccessToken: res.AccessToken})
	require.NoError(t, err)
	require.True(t, ok.Valid)
	require.Equal(t, res.Member.ID, ok.MemberID)
	require.Equal(t, "gail@example.com", ok.Email)
	require.Equal(t, res.TokenFamily, ok.TokenFamily)
	require.WithinDuration(t, res.AccessExpiresAt, ok.ExpiresAt, time.Second)

	// refresh-токен не принимается как access.
	bad, err := c.VerifyToken(ctx, &VerifyTokenRequest{AccessToken: res.RefreshToken})
	require.NoError(t, err)
	require.False(t, bad.Valid)
	require.Empty(t, bad.MemberID)
}

func TestRequestIDEchoedInHeader(t *testing.T) {
	c := newTestClient(t)

	ctx := metadata.AppendToOutgoingContext(context.Background(), interceptors.MetadataRequestID, "rid-42")
	var hdr metadata.MD
	_, err := c.VerifyToken(ctx, &VerifyTokenRequest{AccessToken: "x"}, grpc.Header(&hdr))
	require.NoError(t, err)
	require.Equal(t, []string{"rid-42"}, hdr.Get(interceptors.MetadataRequestID))
}

func TestToStatus_UnknownErrorIsInternal(t *testing.T) {
	err := toStatus(context.Background(), io.ErrUnexpectedEOF)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "internal server error", status.Convert(err).Message())

	require.Equal(t, codes.Canceled, status.Code(toStatus(context.Background(), context.Canceled)))
	require.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.Background(), context.DeadlineExceeded)))
}

func TestJSONCodec_NameAndEmptyPayload(t *testing.T) {
	c := jsonCodec{}
	require.Equal(t, "hrm-json", c.Name())
	require.NotEqual(t, "json", CodecName)

	var req LoginRequest
	require.NoError(t, c.Unmarshal(nil, &req))
	require.Empty(t, req.Email)

	b, err := c.Marshal(&LoginRequest{Email: "a@x.com"})
	require.NoError(t, err)
	require.NoError(t, c.Unmarshal(b, &req))
	require.Equal(t, "a@x.com", req.Email)
}
