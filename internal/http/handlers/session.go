package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/recargas/internal/app"
	"github.com/dropDatabas3/recargas/internal/audit"
	"github.com/dropDatabas3/recargas/internal/domain/repository"
	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/http/helpers"
	"github.com/dropDatabas3/recargas/internal/jwt"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

// NewRefreshHandler renueva la sesión a partir del renewal token.
// Verifica tipo y firma, compara el claim "tv" contra TokenVersion del
// store (un reset de password lo incrementa y mata todos los renewals
// emitidos) y rota ambos tokens.
func NewRefreshHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(c.Cfg.Auth.Cookie.RenewalName)
		if err != nil || ck.Value == "" {
			apperrors.WriteError(w, apperrors.ErrTokenInvalid)
			return
		}

		claims, err := c.Codec.Verify(ck.Value, jwt.TypeRenewal)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrTokenInvalid)
			return
		}

		ctx := r.Context()
		acc, err := c.Accounts.GetByID(ctx, claims.AccountID)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrTokenInvalid)
			return
		}
		if acc.TokenVersion != claims.TokenVersion {
			// renewal emitido antes de un reset de password
			apperrors.WriteError(w, apperrors.ErrTokenInvalid)
			return
		}

		if err := issueTokenPair(w, c, acc); err != nil {
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		audit.Log(ctx, audit.EventRefresh, logger.AccountID(acc.ID))
		helpers.WriteJSON(w, http.StatusOK, loginResponse{Account: acc.Public()})
	}
}

// NewLogoutHandler borra ambas cookies. Idempotente: responde 204 haya
// o no sesión; no toca estado persistido.
func NewLogoutHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck := c.Cfg.Auth.Cookie
		http.SetCookie(w, helpers.BuildDeletionCookie(ck.SessionName, ck.Domain, ck.SameSite, ck.Secure))
		http.SetCookie(w, helpers.BuildDeletionCookie(ck.RenewalName, ck.Domain, ck.SameSite, ck.Secure))
		w.WriteHeader(http.StatusNoContent)
	}
}

type meResponse struct {
	User repository.PublicProfile `json:"user"`
}

// NewMeHandler devuelve el perfil público de la sesión con un ETag débil
// del body. Cache-Control: no-store obliga a revalidar siempre; el gate
// de borde usa If-None-Match para la vía rápida 304.
func NewMeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie(c.Cfg.Auth.Cookie.SessionName)
		if err != nil || ck.Value == "" {
			apperrors.WriteError(w, apperrors.ErrUnauthorized)
			return
		}

		claims, err := c.Codec.Verify(ck.Value, jwt.TypeSession)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrUnauthorized)
			return
		}

		acc, err := c.Accounts.GetByID(r.Context(), claims.AccountID)
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrUnauthorized)
			return
		}

		body, err := json.Marshal(meResponse{User: acc.Public()})
		if err != nil {
			apperrors.WriteError(w, apperrors.ErrInternalServerError.WithCause(err))
			return
		}

		sum := sha256.Sum256(body)
		etag := `W/"` + base64.RawURLEncoding.EncodeToString(sum[:]) + `"`

		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("ETag", etag)

		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
