package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clipmetrics/syncengine/internal/app"
	"github.com/clipmetrics/syncengine/internal/config"
)

func main() {
	mode := flag.String("mode", "", "run mode: api or worker (overrides SYNCENGINE_MODE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flag overrides env var.
	if *mode != "" {
		cfg.Mode = *mode
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handlers, cleanup, err := app.Run(ctx, cfg)
	defer cleanup()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	// This binary has no built-in HTTP transport (routing, admin auth, CORS,
	// and health checks are left to whatever process embeds this module); it
	// runs the background cron scheduler and exits once the process signals
	// shutdown. handlers is kept alive so a future in-process router has a
	// live reference to mount.
	_ = handlers
	<-ctx.Done()
	slog.Info("shutting down")
}
