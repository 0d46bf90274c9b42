package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
// Se carga desde YAML y se puede pisar con variables de entorno (ver ApplyEnv).
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
		// Nivel de log: debug | info | warn | error
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Secreto HMAC para firmar tokens. Obligatorio fuera de dev.
		Secret     string        `yaml:"secret"`
		SessionTTL time.Duration `yaml:"session_ttl"`
		RenewalTTL time.Duration `yaml:"renewal_ttl"`
	} `yaml:"jwt"`

	Auth struct {
		// AllowUnverified: si true, login acepta cuentas sin email verificado.
		// El default (false) exige verificación previa.
		AllowUnverified bool `yaml:"allow_unverified_login"`
		Cookie          struct {
			SessionName string `yaml:"session_name"`
			RenewalName string `yaml:"renewal_name"`
			Domain      string `yaml:"domain"`
			SameSite    string `yaml:"samesite"`
			Secure      bool   `yaml:"secure"`
		} `yaml:"cookie"`
		VerifyTTL time.Duration `yaml:"verify_ttl"`
		ResetTTL  time.Duration `yaml:"reset_ttl"`
		Password  struct {
			MinLength    int  `yaml:"min_length"`
			RequireDigit bool `yaml:"require_digit"`
		} `yaml:"password"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// redis | memory
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Auth struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"auth"`
		Sensitive struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"sensitive"`
	} `yaml:"rate"`

	Challenge struct {
		// Secret del verificador externo. Vacío = gate deshabilitado (pass-through).
		Secret    string  `yaml:"secret"`
		VerifyURL string  `yaml:"verify_url"`
		MinScore  float64 `yaml:"min_score"`
		// Action esperada (opcional). Si el verificador devuelve otra, se rechaza.
		ExpectedAction string        `yaml:"expected_action"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"challenge"`

	SMTP SMTPConfig `yaml:"smtp"`

	Email struct {
		// BaseURL para armar los links de verificación/reset.
		BaseURL string `yaml:"base_url"`
		// Enabled: si false se usa el sender noop (dev sin SMTP).
		Enabled bool `yaml:"enabled"`
	} `yaml:"email"`

	Edge struct {
		Addr string `yaml:"addr"`
		// BackendURL es la URL del credential service (endpoint /v1/auth/me).
		BackendURL string `yaml:"backend_url"`
		// UpstreamURL es el sitio admin al que se hace proxy si la decisión es allow.
		UpstreamURL       string        `yaml:"upstream_url"`
		LoginPath         string        `yaml:"login_path"`
		HomePath          string        `yaml:"home_path"`
		ProtectedPrefixes []string      `yaml:"protected_prefixes"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"edge"`
}

// SMTPConfig agrupa los parámetros del sender SMTP.
type SMTPConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	From               string `yaml:"from"`
	TLSMode            string `yaml:"tls"` // auto | starttls | ssl | none
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// Load lee el YAML del path dado y aplica defaults + overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv()
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ApplyEnv pisa valores con variables de entorno (prefijo RECARGAS_).
// Solo se contemplan las que tiene sentido cambiar por deploy.
func (c *Config) ApplyEnv() {
	setStr(&c.App.Env, "RECARGAS_ENV")
	setStr(&c.App.LogLevel, "RECARGAS_LOG_LEVEL")
	setStr(&c.Server.Addr, "RECARGAS_ADDR")
	setStr(&c.Storage.Driver, "RECARGAS_STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "RECARGAS_DSN")
	setStr(&c.JWT.Secret, "RECARGAS_JWT_SECRET")
	setStr(&c.Challenge.Secret, "RECARGAS_CHALLENGE_SECRET")
	setStr(&c.Rate.Redis.Addr, "RECARGAS_REDIS_ADDR")
	setStr(&c.SMTP.Host, "RECARGAS_SMTP_HOST")
	setStr(&c.SMTP.Username, "RECARGAS_SMTP_USER")
	setStr(&c.SMTP.Password, "RECARGAS_SMTP_PASS")
	setStr(&c.Edge.BackendURL, "RECARGAS_EDGE_BACKEND_URL")
	setStr(&c.Edge.UpstreamURL, "RECARGAS_EDGE_UPSTREAM_URL")
	if v := os.Getenv("RECARGAS_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "recargas"
	}
	if c.JWT.SessionTTL == 0 {
		c.JWT.SessionTTL = 15 * time.Minute
	}
	if c.JWT.RenewalTTL == 0 {
		c.JWT.RenewalTTL = 720 * time.Hour // 30d
	}
	if c.Auth.Cookie.SessionName == "" {
		c.Auth.Cookie.SessionName = "rc_session"
	}
	if c.Auth.Cookie.RenewalName == "" {
		c.Auth.Cookie.RenewalName = "rc_refresh"
	}
	if c.Auth.VerifyTTL == 0 {
		c.Auth.VerifyTTL = 15 * time.Minute
	}
	if c.Auth.ResetTTL == 0 {
		c.Auth.ResetTTL = 15 * time.Minute
	}
	if c.Auth.Password.MinLength == 0 {
		c.Auth.Password.MinLength = 8
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "rl:"
	}
	if c.Rate.Auth.Limit == 0 {
		c.Rate.Auth.Limit = 10
	}
	if c.Rate.Auth.Window == 0 {
		c.Rate.Auth.Window = time.Minute
	}
	if c.Rate.Sensitive.Limit == 0 {
		c.Rate.Sensitive.Limit = 30
	}
	if c.Rate.Sensitive.Window == 0 {
		c.Rate.Sensitive.Window = time.Minute
	}
	if c.Challenge.VerifyURL == "" {
		c.Challenge.VerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	}
	if c.Challenge.MinScore == 0 {
		c.Challenge.MinScore = 0.5
	}
	if c.Challenge.Timeout == 0 {
		c.Challenge.Timeout = 5 * time.Second
	}
	if c.Email.BaseURL == "" {
		c.Email.BaseURL = "http://localhost:8080"
	}
	if c.Edge.Addr == "" {
		c.Edge.Addr = ":8081"
	}
	if c.Edge.LoginPath == "" {
		c.Edge.LoginPath = "/admin/login"
	}
	if c.Edge.HomePath == "" {
		c.Edge.HomePath = "/"
	}
	if len(c.Edge.ProtectedPrefixes) == 0 {
		c.Edge.ProtectedPrefixes = []string{"/admin"}
	}
	if c.Edge.Timeout == 0 {
		c.Edge.Timeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	if c.IsProd() && c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret es obligatorio en prod")
	}
	if c.JWT.Secret == "" {
		// dev: secreto fijo para no romper el arranque local
		c.JWT.Secret = "dev-secret-no-usar-en-prod"
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.dsn es obligatorio con driver postgres")
	}
	return nil
}

// IsProd indica si corre en modo producción (gates fail-closed).
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
