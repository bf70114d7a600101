// Command server runs the youth council portal REST API.
//
// @title                       Youth Council Portal API
// @version                     1.0
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/youthcouncil/portal/internal/api"
	"github.com/youthcouncil/portal/internal/api/handler"
	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
	"github.com/youthcouncil/portal/internal/core/service"
	"github.com/youthcouncil/portal/internal/infrastructure/config"
	mongostore "github.com/youthcouncil/portal/internal/infrastructure/db/mongo"
	pgstore "github.com/youthcouncil/portal/internal/infrastructure/db/postgres"
	redisstore "github.com/youthcouncil/portal/internal/infrastructure/db/redis"
	"github.com/youthcouncil/portal/internal/infrastructure/mail"
	"github.com/youthcouncil/portal/internal/infrastructure/queue"
	s3store "github.com/youthcouncil/portal/internal/infrastructure/storage/s3"
	"github.com/youthcouncil/portal/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "portal-api",
	})
	log := logger.Component("server")

	// --- Redis: one-time tokens and revocation list ---
	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		URL:      cfg.Redis.URL,
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	tokenStore := redisstore.NewTokenStore(rdb)

	checks := map[string]handler.Check{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// --- User repository ---
	repo, closeRepo, err := openRepository(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeRepo()

	// --- Attachments ---
	var attachments ports.AttachmentStore
	if cfg.S3.Bucket != "" {
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return err
		}
		attachments = store
	} else {
		log.Warn().Msg("S3_BUCKET not set, signup attachments disabled")
	}

	// --- Mail ---
	var mailer ports.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn().Msg("SMTP_HOST not set, emails will be logged only")
		mailer = mail.NewLogMailer(logger.Component("mail"))
	}

	mailCtx, stopMail := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, mailer, logger.Component("mail"))
	dispatcher.Start(mailCtx)

	// --- Services ---
	if cfg.ExposeResetToken && !cfg.AllowResetTokenEcho() {
		log.Warn().Msg("EXPOSE_RESET_TOKEN ignored in production")
	}
	policy := domain.PasswordPolicy{MinLength: cfg.PasswordMinLength}
	issuer := service.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, tokenStore)
	authService := service.NewAuthService(repo, issuer, tokenStore, dispatcher, attachments, service.AuthConfig{
		Policy:                 policy,
		FrontendURL:            cfg.FrontendURL,
		ExposeResetToken:       cfg.AllowResetTokenEcho(),
		BootstrapSuperOfficial: cfg.BootstrapSuperOfficial,
	}, logger.Component("auth"))
	if err := authService.BootstrapSuperOfficial(ctx); err != nil {
		stopMail()
		dispatcher.Wait()
		return err
	}

	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Tokens:    issuer,
		Checks:    checks,
		Policy:    policy,
		APIPrefix: cfg.APIPrefix,
		Log:       logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("db_driver", cfg.DBDriver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopMail()
		dispatcher.Wait()
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Requests are done; flush queued mail.
	stopMail()
	dispatcher.Wait()

	log.Info().Msg("server stopped")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, checks map[string]handler.Check) (ports.UserRepository, func(), error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := pgstore.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := pgstore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		return pgstore.NewUserRepository(db), func() { _ = db.Close() }, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "portal-api",
		})
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	}
}
