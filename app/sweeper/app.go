package sweeper

import (
	"context"
	"net/http"
	"time"

	govstore "github.com/capsulenet/govern/pkg/db/postgres/governance"
	"github.com/capsulenet/govern/pkg/governance"
	"github.com/capsulenet/govern/pkg/logging"
	"github.com/capsulenet/govern/pkg/redis"
	"github.com/capsulenet/govern/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App watches for ACTIVE proposals whose voting deadline has passed and
// drives each through outcome evaluation, every Cron tick.
type App struct {
	Store  *govstore.DB
	Engine governance.Service

	// Cron is the scheduler that triggers sweep cycles at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// RedisClient is optional; nil disables event publishing.
	RedisClient *redis.Client

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server is the HTTP server that serves the health probes.
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, storeErr := govstore.New(ctx, logger, "sweeper")
	if storeErr != nil {
		logger.Fatal("Unable to initialize governance database", zap.Error(storeErr))
	}

	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - closure events will not be published",
				zap.Error(err))
			redisClient = nil
		}
	}

	engine := governance.NewEngine(store, logger)
	engine.SweepBatchLimit = utils.EnvInt("SWEEP_BATCH_LIMIT", 256)
	engine.SweepWorkers = utils.EnvInt("SWEEP_WORKERS", 8)
	if redisClient != nil {
		engine.Events = redisClient
	}

	app := &App{
		Store:       store,
		Engine:      engine,
		Cron:        nil,
		CronSpec:    utils.Env("SWEEP_CRON", "*/15 * * * * *"),
		RedisClient: redisClient,
		Logger:      logger,
	}

	scheduleErr := app.SetupScheduler(ctx, cron.DefaultLogger, app.CronSpec)
	if scheduleErr != nil {
		return nil, scheduleErr
	}

	return app, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3002")

	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Ready(r.Context()) {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r}
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))

	runTimeout := utils.EnvDuration("SWEEP_RUN_TIMEOUT", 25*time.Second)

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		if _, err := a.Engine.Sweep(rctx); err != nil {
			logger.Info("[sweeper] sweep error", "error", err)
		}
	})
	if err != nil {
		return err
	}

	return nil
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[sweeper] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// SweepOnce is a convenience wrapper for a single sweep cycle.
func (a *App) SweepOnce(ctx context.Context) {
	_, _ = a.Engine.Sweep(ctx)
}

// Ready indicates whether the application is ready to handle operations, returning true if ready.
func (a *App) Ready(ctx context.Context) bool {
	return a.Store.Pool.Ping(ctx) == nil
}

// Alive indicates whether the application is alive, returning true if alive.
func (a *App) Alive() bool { return true }

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[sweeper] shutting down…")
	a.StopCron()

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.RedisClient != nil {
		_ = a.RedisClient.Close()
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
