package types

import (
	"context"
	"net/http"
	"time"

	govstore "github.com/capsulenet/govern/pkg/db/postgres/governance"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/capsulenet/govern/pkg/redis"
	"go.uber.org/zap"
)

type App struct {
	Store  *govstore.DB
	Engine governance.Service
	// RedisClient is optional; nil disables event publishing and the
	// WebSocket stream.
	RedisClient *redis.Client
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
