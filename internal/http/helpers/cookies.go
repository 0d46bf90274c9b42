package helpers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

// parseSameSite convierte el string de config a http.SameSite.
// Acepta: "", "lax", "strict", "none" (case-insensitive). Default: Lax.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		// SameSite=None requiere Secure en navegadores modernos. No lo
		// forzamos acá para no romper http://localhost en dev.
		return http.SameSiteNoneMode
	default:
		logger.L().Warn("cookie: SameSite desconocido, usando Lax", logger.String("same_site", s))
		return http.SameSiteLaxMode
	}
}

// BuildSessionCookie construye una cookie de token con flags de seguridad:
// HttpOnly siempre, Secure según config, Expires y Max-Age según ttl.
func BuildSessionCookie(name, value, domain, sameSite string, secure bool, ttl time.Duration) *http.Cookie {
	ss := parseSameSite(sameSite)
	if ss == http.SameSiteNoneMode && !secure {
		logger.L().Warn("cookie: SameSite=None sin Secure; el navegador puede rechazarla",
			logger.String("cookie", name))
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().UTC().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: ss,
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}

// BuildDeletionCookie devuelve una cookie que borra la original en el
// browser. Mismo nombre/domain/samesite para que el user-agent la pise.
func BuildDeletionCookie(name, domain, sameSite string, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   secure,
		HttpOnly: true,
		SameSite: parseSameSite(sameSite),
	}
	if domain != "" {
		c.Domain = domain
	}
	return c
}
