package api

import (
	"context"

	"github.com/capsulenet/govern/app/api/types"
	govstore "github.com/capsulenet/govern/pkg/db/postgres/governance"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/capsulenet/govern/pkg/logging"
	"github.com/capsulenet/govern/pkg/redis"
	"github.com/capsulenet/govern/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, storeErr := govstore.New(ctx, logger, "api")
	if storeErr != nil {
		logger.Fatal("Unable to initialize governance database", zap.Error(storeErr))
	}

	// Initialize Redis client for real-time WebSocket events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - event publishing will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for governance events")
		}
	} else {
		logger.Info("Redis disabled - governance events will not be published")
	}

	engine := governance.NewEngine(store, logger)
	if redisClient != nil {
		engine.Events = redisClient
	}

	app := &types.App{
		Store:       store,
		Engine:      engine,
		RedisClient: redisClient,
		Logger:      logger,
	}

	return app
}
