package middlewares

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dropDatabas3/recargas/internal/abuse"
	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/metrics"
)

// challengeToken busca el token de desafío: primero el header
// X-Challenge-Token, después el campo "challenge_token" del body JSON.
// Espía hasta max bytes y repone el body completo para el handler: lo
// leído se encadena con lo que quede sin leer, así un body más grande
// que la ventana llega entero aguas abajo (solo se omite la extracción).
func challengeToken(r *http.Request, max int64) string {
	if t := strings.TrimSpace(r.Header.Get("X-Challenge-Token")); t != "" {
		return t
	}
	if r.Method != http.MethodPost ||
		!strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	var buf bytes.Buffer
	_, _ = io.CopyN(&buf, r.Body, max+1)
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf.Bytes()), r.Body))

	if int64(buf.Len()) > max {
		// body más grande que la ventana: no se intenta parsear
		return ""
	}
	var tmp map[string]any
	if err := json.Unmarshal(buf.Bytes(), &tmp); err == nil {
		if v, ok := tmp["challenge_token"].(string); ok {
			return v
		}
	}
	return ""
}

// WithAbuseGate intercepta las rutas que mutan credenciales y consulta
// el gate. No muta estado persistido: rechaza o deja seguir.
func WithAbuseGate(gate *abuse.Gate) Middleware {
	if gate == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := challengeToken(r, 1<<16)
			d := gate.Check(r.Context(), token, ClientIP(r))
			if d.Allow {
				next.ServeHTTP(w, r)
				return
			}

			metrics.AbuseRejectionsTotal.WithLabelValues(d.Reason).Inc()
			switch d.Reason {
			case abuse.ReasonNoToken:
				apperrors.WriteError(w, apperrors.ErrChallengeRequired)
			case abuse.ReasonVerifierDown:
				apperrors.WriteError(w, apperrors.ErrVerificationUnavailable)
			default:
				// rechazo explícito, acción distinta o score bajo
				apperrors.WriteError(w, apperrors.ErrChallengeFailed)
			}
		})
	}
}
