// Command authd runs the authentication service: the engine plus its HTTP
// boundary, backed by Redis for ephemeral state and PostgreSQL for
// accounts and refresh tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	advancedauth "github.com/DevDad-Main/advanced-auth"
	"github.com/DevDad-Main/advanced-auth/httpapi"
	"github.com/DevDad-Main/advanced-auth/logging"
	"github.com/DevDad-Main/advanced-auth/mail"
	"github.com/DevDad-Main/advanced-auth/pgstore"
)

type serviceConfig struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DatabaseDSN string `env:"DATABASE_DSN,required"`

	JWTSecret  []byte        `env:"JWT_SECRET,required"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"advanced-auth"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	SMTPAddr     string `env:"SMTP_ADDR,required"`
	SMTPFrom     string `env:"SMTP_FROM,required"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"true"`
	CookieDomain string `env:"COOKIE_DOMAIN"`
	TrustProxy   bool   `env:"TRUST_PROXY" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var svcCfg serviceConfig
	if err := env.Parse(&svcCfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: svcCfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	pool, err := pgxpool.New(ctx, svcCfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	defer pool.Close()

	mailer, err := mail.NewSMTP(mail.SMTPConfig{
		Addr:     svcCfg.SMTPAddr,
		From:     svcCfg.SMTPFrom,
		Username: svcCfg.SMTPUsername,
		Password: svcCfg.SMTPPassword,
	})
	if err != nil {
		return fmt.Errorf("smtp mailer: %w", err)
	}

	cfg := advancedauth.DefaultConfig()
	cfg.JWT.PrivateKey = svcCfg.JWTSecret
	cfg.JWT.Issuer = svcCfg.JWTIssuer
	cfg.JWT.AccessTTL = svcCfg.AccessTTL
	cfg.Refresh.TTL = svcCfg.RefreshTTL

	engine, err := advancedauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger).
		WithUserDirectory(pgstore.NewUserDirectory(pool)).
		WithRefreshTokenStore(pgstore.NewRefreshTokenStore(pool)).
		WithMailer(mailer).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	scheduler := advancedauth.NewScheduler(engine)
	go scheduler.Run(ctx)

	handler := httpapi.New(engine, logger, httpapi.Config{
		CookieSecure: svcCfg.CookieSecure,
		CookieDomain: svcCfg.CookieDomain,
		TrustProxy:   svcCfg.TrustProxy,
		AccessTTL:    cfg.JWT.AccessTTL,
		RefreshTTL:   cfg.Refresh.TTL,
	})

	server := &http.Server{
		Addr:              svcCfg.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening", "addr", svcCfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
