package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/hrm-auth/internal/pkg/log"
)

// Logging кладёт в контекст логгер с request_id, методом и путём
// и пишет одну запись на запрос. 5xx пишутся уровнем Error.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := log.Into(r.Context(), l)
			ctx, reqLogger := log.With(ctx,
				slog.String("request_id", RequestIDFrom(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			lvl := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				lvl = slog.LevelError
			}

			reqLogger.LogAttrs(ctx, lvl, "http_request",
				slog.Int("status", sw.status),
				slog.Int("bytes", sw.count),
				slog.String("remote", r.RemoteAddr),
				slog.Duration("dur", time.Since(start)),
			)
		})
	}
}
