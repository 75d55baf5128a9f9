package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	if app != nil {
		app.logger.Sync() //nolint:errcheck
	}

	if err != nil {
		stop()
		os.Exit(1)
	}
}
