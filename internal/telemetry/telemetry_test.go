package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestInit_NoEndpoint_Noop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{ServiceName: "hrm-auth"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_WithEndpoint(t *testing.T) {
	// Экспортёр создаётся лениво: соединение не нужно до первой отправки.
	shutdown, err := Init(context.Background(), config.TracingConfig{
		OTLPEndpoint: "http://127.0.0.1:4318",
		ServiceName:  "hrm-auth",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		endpoint string
		wantErr  bool
		wantLen  int
	}{
		{endpoint: "collector:4318", wantLen: 2},
		{endpoint: "http://collector:4318", wantLen: 2},
		{endpoint: "http://collector:4318/custom/v1/traces", wantLen: 3},
		{endpoint: "https://collector", wantLen: 1},
		{endpoint: "http://", wantErr: true},
	}

	for _, tc := range cases {
		opts, err := exporterOptions(tc.endpoint)
		if tc.wantErr {
			require.Error(t, err, tc.endpoint)
			continue
		}
		require.NoError(t, err, tc.endpoint)
		require.Len(t, opts, tc.wantLen, tc.endpoint)
	}
}

func TestMiddleware_PassesThrough(t *testing.T) {
	t.Parallel()

	h := Middleware("hrm-auth")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/sessions", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
