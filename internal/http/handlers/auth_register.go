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
	"github.com/dropDatabas3/recargas/internal/metrics"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
	"github.com/dropDatabas3/recargas/internal/security/password"
	tokens "github.com/dropDatabas3/recargas/internal/security/token"
	"github.com/dropDatabas3/recargas/internal/util"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	Account repository.PublicProfile `json:"account"`
	// El cliente debe pasar por verificación de email antes de loguearse.
	VerificationSent bool `json:"verification_sent"`
}

// NewRegisterHandler crea la cuenta sin verificar, genera el token de
// verificación y dispara el email. No emite sesión: el registro no loguea.
func NewRegisterHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := helpers.DecodeJSON(w, r, &req); err != nil {
			apperrors.WriteError(w, err)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			apperrors.WriteError(w, apperrors.ErrMissingFields)
			return
		}
		if !strings.Contains(req.Email, "@") {
			apperrors.WriteError(w, apperrors.ErrInvalidFormat.WithDetail("email"))
			return
		}
		if ok, reasons := c.Policy.Validate(req.Password); !ok {
			metrics.RegistersTotal.WithLabelValues("weak_password").Inc()
			apperrors.WriteError(w, apperrors.ErrPasswordTooWeak.WithDetail(strings.Join(reasons, ",")))
			return
		}

		ctx := r.Context()

		phc, err := password.Hash(c.Hasher, req.Password)
		if err != nil {
			metrics.RegistersTotal.WithLabelValues("error").Inc()
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		acc, err := c.Accounts.Create(ctx, repository.CreateAccountInput{
			Email:        req.Email,
			PasswordHash: phc,
			Role:         repository.RoleUser,
		})
		if err != nil {
			if repository.IsConflict(err) {
				metrics.RegistersTotal.WithLabelValues("conflict").Inc()
				apperrors.WriteError(w, apperrors.ErrEmailAlreadyInUse)
				return
			}
			metrics.RegistersTotal.WithLabelValues("error").Inc()
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		sent := startVerification(ctx, c, acc)
		metrics.RegistersTotal.WithLabelValues("ok").Inc()
		audit.Log(ctx, audit.EventRegister,
			logger.AccountID(acc.ID),
			logger.Email(util.MaskEmail(acc.Email)),
			logger.Bool("verification_sent", sent),
		)

		helpers.WriteJSON(w, http.StatusCreated, registerResponse{
			Account:          acc.Public(),
			VerificationSent: sent,
		})
	}
}

// startVerification genera el token single-use, lo guarda hasheado y
// dispara el email. El fallo del email no aborta la operación: se loguea
// y el usuario puede pedir reenvío.
func startVerification(ctx context.Context, c *app.Container, acc *repository.Account) bool {
	log := logger.From(ctx).With(logger.Op("start_verification"), logger.AccountID(acc.ID))

	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		log.Error("no se pudo generar token de verificación", logger.Err(err))
		return false
	}
	expires := time.Now().UTC().Add(c.Cfg.Auth.VerifyTTL)
	if err := c.Accounts.SetVerifyToken(ctx, acc.ID, tokens.SHA256Base64URL(raw), expires); err != nil {
		log.Error("no se pudo guardar token de verificación", logger.Err(err))
		return false
	}
	if err := c.Mailer.SendVerification(acc.Email, raw); err != nil {
		log.Warn("no se pudo enviar email de verificación", logger.Err(err))
		return false
	}
	return true
}
