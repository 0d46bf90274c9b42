package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/recargas/internal/abuse"
	"github.com/dropDatabas3/recargas/internal/app"
	"github.com/dropDatabas3/recargas/internal/config"
	"github.com/dropDatabas3/recargas/internal/domain/repository"
	"github.com/dropDatabas3/recargas/internal/edge"
	"github.com/dropDatabas3/recargas/internal/email"
	"github.com/dropDatabas3/recargas/internal/http/router"
	"github.com/dropDatabas3/recargas/internal/http/server"
	"github.com/dropDatabas3/recargas/internal/jwt"
	"github.com/dropDatabas3/recargas/internal/metrics"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
	"github.com/dropDatabas3/recargas/internal/rate"
	"github.com/dropDatabas3/recargas/internal/security/password"
	tokens "github.com/dropDatabas3/recargas/internal/security/token"
	"github.com/dropDatabas3/recargas/internal/store/memory"
	"github.com/dropDatabas3/recargas/internal/store/pg"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "recargas",
		Short: "Servicio de cuentas del storefront de recargas",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", os.Getenv("RECARGAS_CONFIG"), "ruta del YAML de configuración")

	root.AddCommand(
		serveCmd(&cfgPath),
		edgeCmd(&cfgPath),
		seedCmd(&cfgPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	return cfg, nil
}

// signalContext cancela ante SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func buildAccounts(ctx context.Context, cfg *config.Config) (repository.AccountRepository, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := pg.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg.NewAccountRepo(pool), pool.Close, nil
	default:
		logger.L().Warn("storage en memoria: los datos no sobreviven al proceso")
		return memory.NewAccountRepo(), func() {}, nil
	}
}

func buildLimiters(cfg *config.Config) (auth, sensitive rate.Limiter) {
	if !cfg.Rate.Enabled {
		return nil, nil
	}
	if cfg.Rate.Backend == "redis" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
		auth = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window)
		sensitive = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Sensitive.Limit, cfg.Rate.Sensitive.Window)
		return auth, sensitive
	}
	return rate.NewMemoryLimiter(cfg.Rate.Auth.Limit, cfg.Rate.Auth.Window),
		rate.NewMemoryLimiter(cfg.Rate.Sensitive.Limit, cfg.Rate.Sensitive.Window)
}

func buildContainer(ctx context.Context, cfg *config.Config) (*app.Container, func(), error) {
	accounts, closeStore, err := buildAccounts(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var sender email.Sender = email.NoopSender{}
	if cfg.Email.Enabled {
		sender = email.NewSMTPSender(cfg.SMTP)
	}

	mode := abuse.ModePermissive
	if cfg.IsProd() {
		mode = abuse.ModeStrict
	}
	var verifier abuse.Verifier
	if cfg.Challenge.Secret != "" {
		verifier = abuse.NewSiteVerifier(cfg.Challenge.Secret, cfg.Challenge.VerifyURL, cfg.Challenge.Timeout)
	}

	authLim, sensLim := buildLimiters(cfg)

	c := &app.Container{
		Cfg:      cfg,
		Accounts: accounts,
		Codec:    jwt.NewCodec(cfg.JWT.Issuer, cfg.JWT.Secret, cfg.JWT.SessionTTL, cfg.JWT.RenewalTTL),
		Policy: password.Policy{
			MinLength:    cfg.Auth.Password.MinLength,
			RequireDigit: cfg.Auth.Password.RequireDigit,
		},
		Hasher:           password.Default,
		Mailer:           email.NewMailer(sender, cfg.Email.BaseURL, cfg.Auth.VerifyTTL, cfg.Auth.ResetTTL),
		Gate:             abuse.NewGate(mode, verifier, cfg.Challenge.MinScore, cfg.Challenge.ExpectedAction, cfg.Challenge.Secret != ""),
		AuthLimiter:      authLim,
		SensitiveLimiter: sensLim,
	}
	return c, closeStore, nil
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el credential service HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signalContext()
			defer stop()

			c, closeStore, err := buildContainer(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := metrics.Register(nil); err != nil {
				return err
			}

			logger.L().Info("arrancando credential service",
				logger.String("env", cfg.App.Env),
				logger.String("storage", cfg.Storage.Driver),
				logger.Bool("rate_enabled", cfg.Rate.Enabled),
				logger.Bool("challenge_enabled", cfg.Challenge.Secret != ""),
			)
			return server.New(cfg.Server.Addr, router.New(c)).Run(ctx)
		},
	}
}

func edgeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "edge",
		Short: "Levanta el gate de autorización delante del back-office",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if cfg.Edge.BackendURL == "" || cfg.Edge.UpstreamURL == "" {
				return fmt.Errorf("edge: backend_url y upstream_url son obligatorios")
			}

			ctx, stop := signalContext()
			defer stop()

			g, err := edge.New(cfg)
			if err != nil {
				return err
			}
			if err := metrics.Register(nil); err != nil {
				return err
			}

			logger.L().Info("arrancando edge gate",
				logger.String("backend", cfg.Edge.BackendURL),
				logger.String("upstream", cfg.Edge.UpstreamURL),
			)
			return server.New(cfg.Edge.Addr, g).Run(ctx)
		},
	}
}

func seedCmd(cfgPath *string) *cobra.Command {
	var adminEmail, adminPass string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea una cuenta admin verificada (bootstrap de back-office)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if adminEmail == "" || adminPass == "" {
				return fmt.Errorf("seed: --email y --password son obligatorios")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			accounts, closeStore, err := buildAccounts(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			phc, err := password.Hash(password.Default, adminPass)
			if err != nil {
				return err
			}
			acc, err := accounts.Create(ctx, repository.CreateAccountInput{
				Email:        adminEmail,
				PasswordHash: phc,
				Role:         repository.RoleAdmin,
			})
			if err != nil {
				return err
			}
			// la cuenta seed entra directo verificada: consumimos la vía normal
			// de verificación con un token efímero para no tocar el contrato
			raw := "seed"
			if err := accounts.SetVerifyToken(ctx, acc.ID, hashSeed(raw), time.Now().Add(time.Minute)); err != nil {
				return err
			}
			if _, err := accounts.ConsumeVerifyToken(ctx, hashSeed(raw)); err != nil {
				return err
			}

			logger.L().Info("admin creado", logger.AccountID(acc.ID), logger.Email(acc.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "email", "", "email del admin")
	cmd.Flags().StringVar(&adminPass, "password", "", "password del admin")
	return cmd
}

func hashSeed(raw string) string {
	return tokens.SHA256Base64URL(raw)
}
