// Command server runs the accounts HTTP API.
//
// @title                       Accounts API
// @version                     1.0
// @description                 User registration, login and profile management with avatar uploads.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/99minutos/accounts-api/docs"
	"github.com/99minutos/accounts-api/internal/api"
	"github.com/99minutos/accounts-api/internal/api/handler"
	"github.com/99minutos/accounts-api/internal/api/metrics"
	"github.com/99minutos/accounts-api/internal/core/ports"
	"github.com/99minutos/accounts-api/internal/core/service"
	"github.com/99minutos/accounts-api/internal/infrastructure/config"
	mongostore "github.com/99minutos/accounts-api/internal/infrastructure/db/mongo"
	"github.com/99minutos/accounts-api/internal/infrastructure/db/postgres"
	rediscache "github.com/99minutos/accounts-api/internal/infrastructure/db/redis"
	"github.com/99minutos/accounts-api/internal/infrastructure/storage/s3"
	"github.com/99minutos/accounts-api/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.Init(logger.Options{Service: "accounts-api"})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || !cfg.IsProduction(),
		Service: "accounts-api",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	health := map[string]handler.Pinger{}

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	health["store"] = repo

	gateway, err := s3.New(ctx, s3.Config{
		Endpoint:    cfg.Storage.Endpoint,
		Region:      cfg.Storage.Region,
		AccessKey:   cfg.Storage.AccessKey,
		SecretKey:   cfg.Storage.SecretKey,
		Bucket:      cfg.Storage.Bucket,
		PublicURL:   cfg.Storage.PublicURL,
		Timeout:     cfg.Storage.Timeout,
		MaxAttempts: cfg.Storage.MaxAttempts,
	})
	if err != nil {
		return err
	}
	storage := metrics.InstrumentStorage(gateway)
	health["storage"] = storage

	var opts []service.AccountOption
	if cfg.Redis.Enabled {
		client, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()

		cache := rediscache.NewUserCache(client, cfg.Redis.CacheTTL)
		opts = append(opts, service.WithUserCache(cache))
		health["cache"] = cache
	}

	credentials := service.NewCredentialStore(repo, cfg.BcryptCost, log.With().Str("component", "credential_store").Logger())
	uploads := service.NewUploadPipeline(storage, cfg.Storage.Folder, cfg.Storage.MaxBytes, log.With().Str("component", "uploads").Logger())
	tokens := service.NewJWTIssuer(cfg.JWTSecret, cfg.TokenTTL)
	accounts := service.NewAccountService(credentials, uploads, storage, tokens, log.With().Str("component", "accounts").Logger(), opts...)

	e := api.NewRouter(api.Dependencies{
		Accounts:     accounts,
		Users:        credentials,
		Uploads:      uploads,
		Health:       health,
		Log:          log,
		JWTSecret:    cfg.JWTSecret,
		APIPrefix:    cfg.APIPrefix,
		Location:     cfg.Location(),
		ExposeErrors: cfg.ExposeErrors,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreDriver).
			Bool("cache", cfg.Redis.Enabled).
			Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore connects the persistence selected by STORE_DRIVER. The returned
// func releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (ports.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "accounts-api",
		})
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = mongostore.Disconnect(client, shutdownTimeout)
			return nil, nil, err
		}
		return repo, func() { _ = mongostore.Disconnect(client, shutdownTimeout) }, nil
	default:
		db, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), func() { _ = db.Close() }, nil
	}
}
