// edge — gate de autorización delante del back-office.
//
// Este tier no valida tokens ni conoce el secreto de firma: delega la
// confianza al credential service vía su endpoint de perfil y toma una
// decisión binaria permitir/redirigir. Siempre revalida (el memo local
// solo aporta el If-None-Match de la vía rápida 304) y ante cualquier
// error de red falla cerrado hacia el login.
package edge

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/recargas/internal/config"
	"github.com/dropDatabas3/recargas/internal/metrics"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

const adminRole = "admin"

// memoEntry guarda el último par etag/rol visto para una cookie.
// No evita la llamada de verificación: solo habilita el 304.
type memoEntry struct {
	ETag string
	Role string
}

// verdict es el resultado de una verificación contra el backend.
type verdict struct {
	OK   bool
	Role string
}

type Gate struct {
	backendURL  string
	loginPath   string
	homePath    string
	protected   []string
	sessionName string

	client *http.Client
	proxy  *httputil.ReverseProxy
	memo   *gocache.Cache
	sf     singleflight.Group
}

// New arma el gate. backendURL debe apuntar al endpoint de perfil del
// credential service; upstream es el sitio admin al que se hace proxy.
func New(cfg *config.Config) (*Gate, error) {
	upstream, err := url.Parse(cfg.Edge.UpstreamURL)
	if err != nil {
		return nil, err
	}

	g := &Gate{
		backendURL:  strings.TrimRight(cfg.Edge.BackendURL, "/"),
		loginPath:   cfg.Edge.LoginPath,
		homePath:    cfg.Edge.HomePath,
		protected:   cfg.Edge.ProtectedPrefixes,
		sessionName: cfg.Auth.Cookie.SessionName,
		client:      &http.Client{Timeout: cfg.Edge.Timeout},
		proxy:       httputil.NewSingleHostReverseProxy(upstream),
		memo:        gocache.New(time.Minute, 5*time.Minute),
	}

	g.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.L().Error("proxy al upstream falló", logger.Component("edge"), logger.Err(err))
		w.WriteHeader(http.StatusBadGateway)
	}
	return g, nil
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// la página de login pasa siempre: romper acá crearía un loop de redirects
	if path == g.loginPath || strings.HasPrefix(path, g.loginPath+"/") {
		g.proxy.ServeHTTP(w, r)
		return
	}

	if !g.isProtected(path) {
		g.proxy.ServeHTTP(w, r)
		return
	}

	ck, err := r.Cookie(g.sessionName)
	if err != nil || ck.Value == "" {
		// sin cookie no hay nada que verificar: deny rápido sin llamada de red
		g.redirectLogin(w, r)
		return
	}

	v, ok := g.verify(r)
	if !ok {
		metrics.EdgeDecisionsTotal.WithLabelValues("backend_error").Inc()
		g.redirectLogin(w, r)
		return
	}
	if !v.OK {
		metrics.EdgeDecisionsTotal.WithLabelValues("login_redirect").Inc()
		g.redirectLogin(w, r)
		return
	}
	if v.Role != adminRole {
		// sesión válida pero sin privilegio: a la home pública, no al login
		metrics.EdgeDecisionsTotal.WithLabelValues("home_redirect").Inc()
		http.Redirect(w, r, g.homePath, http.StatusSeeOther)
		return
	}

	metrics.EdgeDecisionsTotal.WithLabelValues("allow").Inc()
	g.proxy.ServeHTTP(w, r)
}

func (g *Gate) isProtected(path string) bool {
	for _, p := range g.protected {
		if path == p || strings.HasPrefix(path, strings.TrimRight(p, "/")+"/") {
			return true
		}
	}
	return false
}

// redirectLogin manda al login conservando el destino original en ?from=.
func (g *Gate) redirectLogin(w http.ResponseWriter, r *http.Request) {
	target := g.loginPath + "?from=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// verify llama al endpoint de perfil del backend reenviando la cookie.
// Requests concurrentes con la misma cookie colapsan en una sola llamada.
// El segundo bool es false ante error de red, timeout o parseo (fail closed).
func (g *Gate) verify(r *http.Request) (verdict, bool) {
	key := cookieKey(r)

	res, err, _ := g.sf.Do(key, func() (interface{}, error) {
		return g.verifyOnce(r, key)
	})
	if err != nil {
		logger.L().Warn("verificación contra backend falló",
			logger.Component("edge"), logger.Err(err))
		return verdict{}, false
	}
	return res.(verdict), true
}

func (g *Gate) verifyOnce(r *http.Request, key string) (verdict, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, g.backendURL, nil)
	if err != nil {
		return verdict{}, err
	}
	if c := r.Header.Get("Cookie"); c != "" {
		req.Header.Set("Cookie", c)
	}
	req.Header.Set("Cache-Control", "no-cache")

	var cached memoEntry
	if v, ok := g.memo.Get(key); ok {
		cached = v.(memoEntry)
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return verdict{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		// representación sin cambios: autorizado con el rol memoizado
		return verdict{OK: true, Role: cached.Role}, nil

	case resp.StatusCode == http.StatusOK:
		var body struct {
			User struct {
				Role string `json:"role"`
			} `json:"user"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return verdict{}, err
		}
		if etag := resp.Header.Get("ETag"); etag != "" {
			g.memo.Set(key, memoEntry{ETag: etag, Role: body.User.Role}, gocache.DefaultExpiration)
		}
		return verdict{OK: true, Role: body.User.Role}, nil

	default:
		// cualquier no-2xx del backend es rechazo de autorización
		g.memo.Delete(key)
		return verdict{OK: false}, nil
	}
}

// cookieKey identifica la sesión sin retener el token en claro.
func cookieKey(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.Header.Get("Cookie")))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
