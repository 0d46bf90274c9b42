package middlewares

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/dropDatabas3/recargas/internal/http/errors"
	"github.com/dropDatabas3/recargas/internal/metrics"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
	"github.com/dropDatabas3/recargas/internal/rate"
)

// Clases de ruta para el rate limiting. Las rutas que mutan credenciales
// van en "auth"; logout y refresh en "sensitive".
const (
	ClassAuth      = "auth"
	ClassSensitive = "sensitive"
)

// WithRateLimit limita por "<ip>|<clase>". Si el limiter es nil el
// middleware es un passthrough. Un error del backend del limiter deja
// pasar el request: preferimos degradar a bloquear tráfico legítimo.
func WithRateLimit(limiter rate.Limiter, class string) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r) + "|" + class

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter no disponible",
					logger.RouteClass(class), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			if !res.Allowed {
				metrics.RateLimitedTotal.WithLabelValues(class).Inc()
				if res.RetryAfter > 0 {
					secs := int(res.RetryAfter.Seconds())
					if secs < 1 {
						secs = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(secs))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				apperrors.WriteError(w, apperrors.ErrRateLimitExceeded)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			next.ServeHTTP(w, r)
		})
	}
}
