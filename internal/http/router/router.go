// Package router arma el árbol de rutas del credential service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/recargas/internal/app"
	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/http/handlers"
	mw "github.com/dropDatabas3/recargas/internal/http/middlewares"
)

// New construye el router completo. El gate de abuso y el limiter de la
// clase "auth" cubren register/login/admin-login/resend; la clase
// "sensitive" cubre logout/refresh. El resto va sin gates.
func New(c *app.Container) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithRecover())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, apperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteError(w, apperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := c.Accounts.Ping(req.Context()); err != nil {
			apperrors.WriteError(w, apperrors.ErrServiceUnavailable.WithCause(err))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		// Rutas que mutan credenciales: gate de abuso + limiter "auth".
		r.Group(func(r chi.Router) {
			r.Use(mw.WithAbuseGate(c.Gate))
			r.Use(mw.WithRateLimit(c.AuthLimiter, mw.ClassAuth))

			r.Post("/register", handlers.NewRegisterHandler(c))
			r.Post("/login", handlers.NewLoginHandler(c))
			r.Post("/admin/login", handlers.NewAdminLoginHandler(c))
			r.Post("/resend-verification", handlers.NewResendVerificationHandler(c))
		})

		// Logout y refresh: limiter "sensitive", sin gate de abuso.
		r.Group(func(r chi.Router) {
			r.Use(mw.WithRateLimit(c.SensitiveLimiter, mw.ClassSensitive))

			r.Post("/refresh", handlers.NewRefreshHandler(c))
			r.Post("/logout", handlers.NewLogoutHandler(c))
		})

		// Consumo de tokens single-use y perfil.
		r.Get("/verify-email", handlers.NewVerifyEmailHandler(c))
		r.Post("/verify-email", handlers.NewVerifyEmailHandler(c))
		r.Post("/forgot", handlers.NewForgotPasswordHandler(c))
		r.Post("/reset", handlers.NewResetPasswordHandler(c))
		r.Get("/me", handlers.NewMeHandler(c))
	})

	return r
}
