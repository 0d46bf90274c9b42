package edge

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/recargas/internal/config"
)

func newTestGate(t *testing.T, backendURL, upstreamURL string) *Gate {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.Cookie.SessionName = "rc_session"
	cfg.Edge.BackendURL = backendURL
	cfg.Edge.UpstreamURL = upstreamURL
	cfg.Edge.LoginPath = "/admin/login"
	cfg.Edge.HomePath = "/"
	cfg.Edge.ProtectedPrefixes = []string{"/admin"}
	cfg.Edge.Timeout = 2 * time.Second

	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream:" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doGet(g *Gate, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func sessionCookie() *http.Cookie {
	return &http.Cookie{Name: "rc_session", Value: "alguna-sesion"}
}

func locationOf(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestGate_LoginPageAlwaysPasses(t *testing.T) {
	up := newUpstream(t)
	// backend apagado a propósito: el login no debe disparar verificación
	g := newTestGate(t, "http://127.0.0.1:1", up.URL)

	w := doGet(g, "/admin/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "upstream:/admin/login")
}

func TestGate_UnprotectedPathPasses(t *testing.T) {
	up := newUpstream(t)
	g := newTestGate(t, "http://127.0.0.1:1", up.URL)

	w := doGet(g, "/catalogo")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGate_NoCookieFastDeny(t *testing.T) {
	var backendHits int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits++
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	w := doGet(g, "/admin/pedidos?page=2")
	assert.Equal(t, http.StatusSeeOther, w.Code)

	loc := locationOf(t, w)
	assert.Equal(t, "/admin/login", loc.Path)
	assert.Equal(t, "/admin/pedidos?page=2", loc.Query().Get("from"))

	// deny rápido: sin cookie no hay llamada de red
	assert.Equal(t, 0, backendHits)
}

func TestGate_RenewalCookieAloneIsNotASession(t *testing.T) {
	var backendHits int
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendHits++
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	// el edge solo mira la cookie de sesión; la de renovación no alcanza
	w := doGet(g, "/admin/pedidos", &http.Cookie{Name: "rc_refresh", Value: "alguna-renovacion"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login", locationOf(t, w).Path)
	assert.Equal(t, 0, backendHits)
}

func TestGate_BackendRejectRedirectsLogin(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	w := doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login", locationOf(t, w).Path)
}

func TestGate_UserRoleRedirectsHome(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"u1","role":"user"}}`))
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	// cuenta válida pero sin privilegio: home, no login
	w := doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestGate_AdminAllowed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.Header.Get("Cookie"), "la cookie original se reenvía")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"a1","role":"admin"}}`))
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	w := doGet(g, "/admin/pedidos", sessionCookie())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "upstream:/admin/pedidos")
}

func TestGate_BackendDownFailsClosed(t *testing.T) {
	up := newUpstream(t)
	g := newTestGate(t, "http://127.0.0.1:1", up.URL)

	w := doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login", locationOf(t, w).Path)
}

func TestGate_BackendTimeoutFailsClosed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)
	g.client.Timeout = 50 * time.Millisecond

	w := doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login", locationOf(t, w).Path)
}

func TestGate_GarbageBodyFailsClosed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("esto no es json"))
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	w := doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestGate_NotModifiedFastPath(t *testing.T) {
	const etag = `W/"abc123"`
	var sawIfNoneMatch bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			sawIfNoneMatch = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"a1","role":"admin"}}`))
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	// primera pasada: 200 con ETag, queda memoizado
	w := doGet(g, "/admin", sessionCookie())
	require.Equal(t, http.StatusOK, w.Code)

	// segunda pasada: manda If-None-Match y el 304 alcanza para autorizar
	w = doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sawIfNoneMatch)
}

func TestGate_RevokedAfterMemoRejects(t *testing.T) {
	const etag = `W/"v1"`
	authorized := true
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"a1","role":"admin"}}`))
	}))
	defer backend.Close()
	up := newUpstream(t)
	g := newTestGate(t, backend.URL, up.URL)

	w := doGet(g, "/admin", sessionCookie())
	require.Equal(t, http.StatusOK, w.Code)

	// el memo no sirve de bypass: la revocación del backend manda
	authorized = false
	w = doGet(g, "/admin", sessionCookie())
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login", locationOf(t, w).Path)
}
