// http собирает HTTP API auth-сервиса на chi.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/apierrors"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/hrm-auth/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	// Ready сообщает готовность для /healthz; nil — всегда готов.
	Ready func() bool
	// Metrics отдаётся на /metrics, если задан.
	Metrics http.Handler
	// TrustProxy включает разбор X-Forwarded-For/X-Real-IP.
	TrustProxy bool
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, opts Options) http.Handler {
	root := chi.NewRouter()
	root.NotFound(apierrors.NotFound)
	root.MethodNotAllowed(apierrors.MethodNotAllowed)

	registerProbes(root, opts)

	api := chi.NewRouter()
	api.NotFound(apierrors.NotFound)
	api.MethodNotAllowed(apierrors.MethodNotAllowed)

	if opts.TrustProxy {
		api.Use(chimw.RealIP)
	}
	// Внешний -> внутренний: request id нужен логгеру, паника логируется с request id.
	api.Use(
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
		middleware.Recover(),
		middleware.Timeout(opts.Timeout),
	)

	registerRoutes(api, handlers.New(svc), svc)

	if opts.BasePath != "" {
		root.Mount(opts.BasePath, api)
	} else {
		root.Mount("/", api)
	}

	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, v middleware.AccessVerifier) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/verify", h.Verify)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(v))
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.Sessions)
			r.Delete("/sessions/{id}", h.RevokeSession)
		})
	})
}

// registerProbes добавляет /livez, /healthz и /metrics вне API-мидлваров.
func registerProbes(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if opts.Ready == nil || opts.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
}
