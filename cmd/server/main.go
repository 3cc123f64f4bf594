// @title           VideoTube Account Service API
// @version         1.0
// @description     Registration, sessions and channel profiles for VideoTube.
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api"
	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/core/service"
	"github.com/videotube/account-service/internal/infrastructure/db/mongo"
	"github.com/videotube/account-service/internal/infrastructure/db/redis"
	"github.com/videotube/account-service/internal/infrastructure/queue"
	"github.com/videotube/account-service/internal/infrastructure/storage/s3"
	"github.com/videotube/account-service/internal/pkg/config"
	"github.com/videotube/account-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction(), Service: "account-service"})

	// db
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("ensure indexes")
	}

	// Redis only serialises refreshes; the conditional slot update still holds without it.
	var locker ports.RefreshLocker
	var rdb *goredis.Client
	if client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without refresh lock")
	} else {
		rdb = client
		locker = redis.NewRefreshLock(rdb, cfg.Auth.RefreshLockTTL)
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("close redis")
			}
		}()
	}

	media, err := s3.New(ctx, s3.Config{
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init media store")
	}

	cleaner := queue.NewMediaCleaner(cfg.Storage.CleanupWorkers, media, logger.Component("media-cleaner"))
	cleaner.Start(ctx)

	// Repository
	userRepo := mongo.NewUserRepository(db)
	profileRepo := mongo.NewProfileRepository(db)

	// Services
	tokens := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	creds := service.NewCredentialStore(userRepo, media, cleaner, logger.Component("credentials"))
	sessions := service.NewSessionService(creds, tokens, locker, logger.Component("sessions"))
	guard := service.NewSessionGuard(tokens, creds)
	profiles := service.NewProfileAggregator(profileRepo, logger.Component("profiles"))

	checks := map[string]handler.DependencyCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	e := api.NewRouter(api.RouterConfig{
		CORSOrigin:     cfg.CORSOrigin,
		CookieSecure:   cfg.Auth.CookieSecure,
		AccessTTL:      cfg.Auth.AccessTokenTTL,
		RefreshTTL:     cfg.Auth.RefreshTokenTTL,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		EnableMetrics:  true,
	}, api.Dependencies{
		Accounts: creds,
		Sessions: sessions,
		Guard:    guard,
		Profiles: profiles,
		Checks:   checks,
	}, logger.Component("http"))

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown")
	}
}
