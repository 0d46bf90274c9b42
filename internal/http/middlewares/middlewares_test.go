package middlewares

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/recargas/internal/abuse"
	"github.com/dropDatabas3/recargas/internal/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChain_Order(t *testing.T) {
	var trace []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mk("a"), mk("b"), mk("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	// propaga el del cliente
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "rid-cliente")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "rid-cliente", seen)
	assert.Equal(t, "rid-cliente", w.Header().Get("X-Request-ID"))

	// o genera uno
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("algo explotó")
	}), WithRecover())

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestWithRateLimit_BlocksAndSetsHeaders(t *testing.T) {
	lim := rate.NewMemoryLimiter(2, time.Minute)
	h := Chain(okHandler(), WithRateLimit(lim, ClassAuth))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.1.1.1:1000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "RATE_LIMIT_EXCEEDED")

	// otra IP no comparte contador
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.2.2.2:1000"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithRateLimit_NilLimiterPassthrough(t *testing.T) {
	h := Chain(okHandler(), WithRateLimit(nil, ClassSensitive))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func scoreOf(f float64) *float64 { return &f }

type allowAllVerifier struct{ verdict abuse.Verdict }

func (v allowAllVerifier) Verify(ctx context.Context, token, remoteIP string) (abuse.Verdict, error) {
	return v.verdict, nil
}

func TestWithAbuseGate_Strict(t *testing.T) {
	gate := abuse.NewGate(abuse.ModeStrict, allowAllVerifier{abuse.Verdict{Success: true, Score: scoreOf(0.9)}}, 0.5, "", true)
	h := Chain(okHandler(), WithAbuseGate(gate))

	// sin token: CHALLENGE_REQUIRED
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "CHALLENGE_REQUIRED")

	// con token por header: pasa
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Challenge-Token", "tok")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithAbuseGate_LowScore(t *testing.T) {
	gate := abuse.NewGate(abuse.ModeStrict, allowAllVerifier{abuse.Verdict{Success: true, Score: scoreOf(0.3)}}, 0.5, "", true)
	h := Chain(okHandler(), WithAbuseGate(gate))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Challenge-Token", "tok")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "CHALLENGE_FAILED")
}

func TestWithAbuseGate_TokenFromBodyPreservesBody(t *testing.T) {
	gate := abuse.NewGate(abuse.ModeStrict, allowAllVerifier{abuse.Verdict{Success: true, Score: scoreOf(0.9)}}, 0.5, "", true)

	var bodySeen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 1024)
		n, _ := r.Body.Read(b)
		bodySeen = string(b[:n])
		w.WriteHeader(http.StatusOK)
	}), WithAbuseGate(gate))

	payload := `{"email":"a@b.com","challenge_token":"tok-body"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	// el handler ve el body completo aunque el gate ya lo leyó
	assert.JSONEq(t, payload, bodySeen)
}

func TestWithAbuseGate_LargeBodyPassesThroughIntact(t *testing.T) {
	// modo permisivo: sin token deja pasar, y el body más grande que la
	// ventana de espía debe llegar entero al handler, no truncado
	gate := abuse.NewGate(abuse.ModePermissive, allowAllVerifier{abuse.Verdict{Success: true}}, 0.5, "", true)

	var seen int
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = len(b)
		w.WriteHeader(http.StatusOK)
	}), WithAbuseGate(gate))

	payload := `{"pad":"` + strings.Repeat("x", 1<<17) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, len(payload), seen)
}
