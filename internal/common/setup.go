package common

import (
	"context"
	"log"
	"strings"

	"portfolio-sync-go/internal/credentials"
	"portfolio-sync-go/internal/database"
	"portfolio-sync-go/internal/models"
	"portfolio-sync-go/internal/triggers"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	DbService   *database.Service
	TokenCache  *credentials.RedisTokenCache
	Registry    *triggers.Registry
	QueueClient *asynq.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// RedisOpt translates our Redis settings into asynq's connection option.
func RedisOpt(cfg models.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// InitializeServices wires the full worker dependency set: database, token
// cache, trigger registry and queue client. The registry is populated here,
// before any task can run, and never mutated afterwards.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	tokenCache := credentials.NewRedisTokenCache(cfg.Redis)
	resolver := credentials.NewResolver(tokenCache)

	httpClient, err := triggers.NewHttpClient()
	if err != nil {
		dbService.Close()
		tokenCache.Close()
		return nil, err
	}

	registry := triggers.NewRegistry()
	registry.Register("zerodha", triggers.NewZerodhaFactory(resolver, cfg.Brokers.ZerodhaBaseURL, httpClient))
	registry.Register("coinswitch", triggers.NewCoinSwitchFactory(cfg.Brokers.CoinSwitchBaseURL, httpClient))
	zap.L().Info("Trigger registry initialized", zap.Strings("brokers", registry.Codes()))

	queueClient := asynq.NewClient(RedisOpt(cfg.Redis))

	return &Services{
		DbService:   dbService,
		TokenCache:  tokenCache,
		Registry:    registry,
		QueueClient: queueClient,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for the local admin tools that never talk to brokers or the queue.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

func (cs *Services) Close() {
	if cs.QueueClient != nil {
		if err := cs.QueueClient.Close(); err != nil {
			zap.L().Warn("Failed to close queue client", zap.Error(err))
		}
	}
	if cs.TokenCache != nil {
		cs.TokenCache.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
