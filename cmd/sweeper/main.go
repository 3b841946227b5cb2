package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/capsulenet/govern/app/sweeper"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := sweeper.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron
	app.SweepOnce(ctx)

	// Start cron scheduler
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
