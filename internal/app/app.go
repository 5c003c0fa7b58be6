// Package app wires every component into a running process: the
// Postgres/Redis connections, the token-refresh/user/video cron jobs, and
// the external-interface handlers — this module never serves HTTP itself;
// it hands Handlers back for an external router to mount.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clipmetrics/syncengine/internal/config"
	"github.com/clipmetrics/syncengine/internal/crypto"
	"github.com/clipmetrics/syncengine/internal/oauthflow"
	"github.com/clipmetrics/syncengine/internal/orchestrator"
	"github.com/clipmetrics/syncengine/internal/platform"
	"github.com/clipmetrics/syncengine/internal/platformapi"
	"github.com/clipmetrics/syncengine/internal/resync"
	"github.com/clipmetrics/syncengine/internal/snapshot"
	"github.com/clipmetrics/syncengine/internal/synclock"
	"github.com/clipmetrics/syncengine/internal/synclog"
	"github.com/clipmetrics/syncengine/internal/telemetry"
	"github.com/clipmetrics/syncengine/internal/tokenstore"
)

// Handlers bundles the §6 external-interface surface: plain http.HandlerFunc
// methods for /connect/initiate, /auth/url, /auth/callback, and
// /admin/sync/run|status|logs. An external process mounts these on its own
// router, applies its own auth/CORS/logging middleware, and serves them —
// this package only constructs and returns them.
type Handlers struct {
	OAuth *oauthflow.HTTPHandler
	Admin *orchestrator.AdminHandler
}

// Run wires the full dependency graph, starts the background cron scheduler
// (if cfg.SyncEnabled), and returns the external handler surface plus a
// cleanup func the caller must invoke once ctx is done, after it has stopped
// serving Handlers.
func Run(ctx context.Context, cfg *config.Config) (*Handlers, func(), error) {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.DBPoolSize, cfg.DBPoolMin)
	if err != nil {
		return nil, cleanup, fmt.Errorf("connecting to database: %w", err)
	}
	closers = append(closers, pool.Close)

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, cleanup, fmt.Errorf("running migrations: %w", err)
	}

	vault, err := crypto.NewVault(cfg.TokenEncKey)
	if err != nil {
		return nil, cleanup, fmt.Errorf("initializing crypto vault: %w", err)
	}

	metrics := telemetry.NewMetrics()
	registry := telemetry.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return nil, cleanup, fmt.Errorf("registering metrics: %w", err)
	}

	pacer := resync.NewPacer(cfg.RateLimitRequestsPerSecond)

	pendingStore := oauthflow.NewPgPendingStateStore(pool)
	oauthHandler := oauthflow.NewHandler(oauthflow.Config{
		ClientKey:    cfg.PlatformClientKey,
		ClientSecret: cfg.PlatformClientSecret,
		RedirectURI:  cfg.PlatformRedirectURI,
		AuthURL:      cfg.PlatformAuthURL,
		TokenURL:     cfg.PlatformTokenURL,
		Scope:        cfg.PlatformScope,
		StateSecret:  cfg.StateSecret,
	}, pendingStore, &http.Client{Timeout: 30 * time.Second}, pacer, logger)

	accountStore := tokenstore.NewPgAccountStore(pool)
	tokens := tokenstore.NewService(accountStore, vault, oauthHandler, logger)
	oauthHTTP := oauthflow.NewHTTPHandler(oauthHandler, tokens)

	platformClient := platformapi.NewClient(cfg.PlatformAPIBaseURL, 30*time.Second)

	locks := synclock.NewRegistry(pool)

	logWriter := synclog.NewWriter(pool, logger)
	logWriter.Start(ctx)
	closers = append(closers, logWriter.Close)

	snapshotWriter := snapshot.NewWriter(pool)

	refreshHorizon, err := time.ParseDuration(cfg.SyncRefreshHorizon)
	if err != nil {
		refreshHorizon = 24 * time.Hour
	}

	orch := orchestrator.NewOrchestrator(tokens, platformClient, locks, logWriter, snapshotWriter, pacer, logger, orchestrator.Config{
		UserConcurrency:    cfg.SyncUserConcurrency,
		VideoConcurrency:   cfg.SyncVideoConcurrency,
		RefreshConcurrency: cfg.SyncRefreshConcurrency,
		RefreshHorizon:     refreshHorizon,
	})
	orch.WithMetrics(metrics)

	if redisClient, redisErr := platform.NewRedisClient(ctx, cfg.RedisURL); redisErr != nil {
		logger.Warn("redis unavailable, progress cache disabled", "error", redisErr)
	} else {
		closers = append(closers, func() { _ = redisClient.Close() })
		orch.WithProgressCache(orchestrator.NewRedisProgressCache(redisClient))
	}

	if cfg.SyncEnabled {
		scheduler, err := orchestrator.NewScheduler(orch, orchestrator.ScheduleConfig{
			RefreshCron: cfg.CronRefresh,
			UserCron:    cfg.CronUserStats,
			VideoCron:   cfg.CronVideoStats,
			Timezone:    cfg.SyncTimezone,
		}, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("scheduling sync jobs: %w", err)
		}
		orch.WithScheduler(scheduler)
		scheduler.Start()
		closers = append(closers, func() { scheduler.Stop() })
	}

	adminHandler := orchestrator.NewAdminHandler(orch, logWriter)

	logger.Info("syncengine started", "mode", cfg.Mode, "sync_enabled", cfg.SyncEnabled)
	return &Handlers{OAuth: oauthHTTP, Admin: adminHandler}, cleanup, nil
}
