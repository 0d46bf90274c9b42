package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/recargas/internal/app"
	"github.com/dropDatabas3/recargas/internal/audit"
	"github.com/dropDatabas3/recargas/internal/domain/repository"
	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/http/helpers"
	"github.com/dropDatabas3/recargas/internal/metrics"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
	"github.com/dropDatabas3/recargas/internal/security/password"
	"github.com/dropDatabas3/recargas/internal/util"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Account repository.PublicProfile `json:"account"`
}

// NewLoginHandler autentica y emite el par de tokens como cookies.
// Todos los caminos de fallo devuelven el mismo INVALID_CREDENTIALS:
// cuenta inexistente, password incorrecto, cuenta sin verificar (según
// config) y, en el login de admin, rol insuficiente. Nada distingue
// los casos hacia afuera.
func NewLoginHandler(c *app.Container) http.HandlerFunc {
	return newLoginHandler(c, false)
}

// NewAdminLoginHandler es login más exigencia de rol admin.
func NewAdminLoginHandler(c *app.Container) http.HandlerFunc {
	return newLoginHandler(c, true)
}

func newLoginHandler(c *app.Container, requireAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := helpers.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}

		ctx := r.Context()
		log := logger.From(ctx).With(logger.Op("login"))

		acc, err := c.Accounts.GetByEmail(ctx, req.Email)
		if err != nil {
			if !repository.IsNotFound(err) {
				log.Error("lookup de cuenta falló", logger.Err(err))
			}
			rejectLogin(ctx, w, req.Email, "account_not_found")
			return
		}
		if !password.Verify(req.Password, acc.PasswordHash) {
			rejectLogin(ctx, w, req.Email, "password_mismatch")
			return
		}
		if !acc.EmailVerified && !c.Cfg.Auth.AllowUnverified {
			rejectLogin(ctx, w, req.Email, "not_verified")
			return
		}
		if requireAdmin && acc.Role != repository.RoleAdmin {
			rejectLogin(ctx, w, req.Email, "role_mismatch")
			return
		}

		if err := issueTokenPair(w, c, acc); err != nil {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		metrics.LoginsTotal.WithLabelValues("ok").Inc()
		audit.Log(ctx, audit.EventLogin, logger.AccountID(acc.ID), logger.Role(acc.Role))
		helpers.WriteJSON(w, http.StatusOK, loginResponse{Account: acc.Public()})
	}
}

// rejectLogin responde el 401 genérico. El motivo real queda solo en el
// rastro de auditoría, con el email enmascarado.
func rejectLogin(ctx context.Context, w http.ResponseWriter, email, reason string) {
	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
	audit.Log(ctx, audit.EventLoginRejected,
		logger.Email(util.MaskEmail(email)),
		logger.Outcome(reason),
	)
	apperrors.WriteError(w, apperrors.ErrInvalidCredentials)
}

// issueTokenPair firma sesión y renewal y los setea como cookies HttpOnly.
// Los tokens nunca van en el body.
func issueTokenPair(w http.ResponseWriter, c *app.Container, acc *repository.Account) error {
	session, _, err := c.Codec.IssueSession(acc.ID, acc.Role)
	if err != nil {
		return err
	}
	renewal, _, err := c.Codec.IssueRenewal(acc.ID, acc.TokenVersion)
	if err != nil {
		return err
	}

	ck := c.Cfg.Auth.Cookie
	http.SetCookie(w, helpers.BuildSessionCookie(
		ck.SessionName, session, ck.Domain, ck.SameSite, ck.Secure, c.Cfg.JWT.SessionTTL))
	http.SetCookie(w, helpers.BuildSessionCookie(
		ck.RenewalName, renewal, ck.Domain, ck.SameSite, ck.Secure, c.Cfg.JWT.RenewalTTL))
	return nil
}
