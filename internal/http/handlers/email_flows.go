package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/recargas/internal/app"
	"github.com/dropDatabas3/recargas/internal/audit"
	"github.com/dropDatabas3/recargas/internal/domain/repository"
	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/http/helpers"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
	"github.com/dropDatabas3/recargas/internal/security/password"
	tokens "github.com/dropDatabas3/recargas/internal/security/token"
)

// --- Verificación de email ---

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// NewVerifyEmailHandler consume el token de verificación. El consumo es
// atómico en el store: de dos requests concurrentes con el mismo token,
// exactamente uno ve éxito y el otro TOKEN_NOT_FOUND_OR_EXPIRED.
func NewVerifyEmailHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(w, r)
		if token == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}

		acc, err := c.Accounts.ConsumeVerifyToken(r.Context(), tokens.SHA256Base64URL(token))
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrTokenNotFoundOrExpired)
			return
		}

		audit.Log(r.Context(), audit.EventVerifyEmail, logger.AccountID(acc.ID))
		helpers.WriteJSON(w, http.StatusOK, map[string]any{"verified": true})
	}
}

// --- Reenvío de verificación ---

type emailOnlyRequest struct {
	Email string `json:"email"`
}

// NewResendVerificationHandler regenera el token de verificación.
// Contrato anti-enumeración: la respuesta es el mismo 204 exista o no
// la cuenta, esté o no verificada. El motivo real queda solo en logs.
func NewResendVerificationHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailOnlyRequest
		if err := helpers.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}

		ctx := r.Context()
		log := logger.From(ctx).With(logger.Op("resend_verification"))

		acc, err := c.Accounts.GetByEmail(ctx, email)
		switch {
		case err != nil:
			log.Debug("cuenta inexistente, respuesta idéntica")
		case acc.EmailVerified:
			log.Debug("cuenta ya verificada, respuesta idéntica", logger.AccountID(acc.ID))
		default:
			startVerification(ctx, c, acc)
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// --- Olvido de contraseña ---

// NewForgotPasswordHandler genera el token de reset y manda el link.
// Mismo contrato anti-enumeración que el reenvío de verificación.
func NewForgotPasswordHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailOnlyRequest
		if err := helpers.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}

		ctx := r.Context()
		log := logger.From(ctx).With(logger.Op("forgot_password"))

		if acc, err := c.Accounts.GetByEmail(ctx, email); err == nil {
			startReset(ctx, c, acc)
		} else {
			log.Debug("cuenta inexistente, respuesta idéntica")
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func startReset(ctx context.Context, c *app.Container, acc *repository.Account) {
	log := logger.From(ctx).With(logger.Op("start_reset"), logger.AccountID(acc.ID))

	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("no se pudo generar token de reset", logger.Err(err))
		return
	}
	expires := time.Now().UTC().Add(c.Cfg.Auth.ResetTTL)
	if err := c.Accounts.SetResetToken(ctx, acc.ID, tokens.SHA256Base64URL(raw), expires); err != nil {
		log.Error("no se pudo guardar token de reset", logger.Err(err))
		return
	}
	if err := c.Mailer.SendPasswordReset(acc.Email, raw); err != nil {
		log.Warn("no se pudo enviar email de reset", logger.Err(err))
	}
}

// --- Reset de contraseña ---

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// NewResetPasswordHandler consume el token de reset, reemplaza el hash
// del password e invalida todos los renewal tokens vigentes (el store
// incrementa TokenVersion en la misma operación atómica).
func NewResetPasswordHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := helpers.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		if req.Token == "" || req.NewPassword == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}
		if ok, reasons := c.Policy.Validate(req.NewPassword); !ok {
			apperrors.WriteError(w, apperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, ",")))
			return
		}

		phc, err := password.Hash(c.Hasher, req.NewPassword)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		acc, err := c.Accounts.ConsumeResetToken(r.Context(), tokens.SHA256Base64URL(req.Token), phc)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrTokenNotFoundOrExpired)
			return
		}

		audit.Log(r.Context(), audit.EventPasswordReset, logger.AccountID(acc.ID))
		helpers.WriteJSON(w, http.StatusOK, map[string]any{"reset": true})
	}
}

// tokenFromRequest admite el token por query (?token=, viene del link del
// email) o por body JSON {"token": ...}.
func tokenFromRequest(w http.ResponseWriter, r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	if r.Body == nil {
		return ""
	}
	var req verifyEmailRequest
	if err := helpers.DecodeJSON(w, r, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Token)
}
