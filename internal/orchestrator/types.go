// Package orchestrator drives the three scheduled sync jobs (token refresh,
// user stats, video stats), fanning out across connected stores with bounded
// concurrency, per-store locking, and per-store error isolation.
package orchestrator

import (
	"context"
	"time"

	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/platformapi"
)

// JobName identifies one of the three sync jobs, or "all" to run them
// sequentially (refresh, then user, then video) against a single store.
type JobName string

const (
	JobAll           JobName = "all"
	JobUser          JobName = "user"
	JobVideo         JobName = "video"
	JobRefreshTokens JobName = "refresh_tokens"
)

// TokenService is the narrow seam orchestrator needs from internal/tokenstore.
type TokenService interface {
	GetValidAccessToken(ctx context.Context, storeID string) (string, error)
	UpdateLastSync(ctx context.Context, storeID string) error
	ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error)
}

// PlatformClient is the narrow seam orchestrator needs from internal/platformapi.
type PlatformClient interface {
	GetUserInfo(ctx context.Context, accessToken string) (platformapi.UserStats, error)
	FetchAllVideos(ctx context.Context, accessToken string, maxVideos int, onProgress platformapi.OnProgress) ([]platformapi.VideoStats, error)
}

// LockRegistry is the narrow seam orchestrator needs from internal/synclock.
type LockRegistry interface {
	Acquire(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockKey string) error
}

// SnapshotWriter is the narrow seam orchestrator needs from internal/snapshot.
type SnapshotWriter interface {
	UpsertUserDaily(ctx context.Context, row model.UserDailySnapshot) error
	UpsertVideoDailyBatch(ctx context.Context, rows []model.VideoDailySnapshot) error
}

// LogWriter is the narrow seam orchestrator needs from internal/synclog.
type LogWriter interface {
	Log(entry model.SyncLogEntry)
}

// Config bounds orchestrator behavior. Zero values are replaced with spec
// defaults by NewOrchestrator.
type Config struct {
	UserConcurrency    int
	VideoConcurrency   int
	RefreshConcurrency int
	RefreshHorizon     time.Duration
	MaxVideosPerStore  int

	UserSyncLockTTL  time.Duration
	VideoSyncLockTTL time.Duration
	RefreshLockTTL   time.Duration

	UserSyncTimeout  time.Duration
	VideoSyncTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserConcurrency <= 0 {
		c.UserConcurrency = 30
	}
	if c.VideoConcurrency <= 0 {
		c.VideoConcurrency = 20
	}
	if c.RefreshConcurrency <= 0 {
		c.RefreshConcurrency = 10
	}
	if c.RefreshHorizon <= 0 {
		c.RefreshHorizon = 24 * time.Hour
	}
	if c.MaxVideosPerStore <= 0 {
		c.MaxVideosPerStore = 1000
	}
	if c.UserSyncLockTTL <= 0 {
		c.UserSyncLockTTL = 600 * time.Second
	}
	if c.VideoSyncLockTTL <= 0 {
		c.VideoSyncLockTTL = 600 * time.Second
	}
	if c.RefreshLockTTL <= 0 {
		c.RefreshLockTTL = 120 * time.Second
	}
	if c.UserSyncTimeout <= 0 {
		c.UserSyncTimeout = 2 * time.Minute
	}
	if c.VideoSyncTimeout <= 0 {
		c.VideoSyncTimeout = 10 * time.Minute
	}
	return c
}

// RunSummary is the aggregate outcome of one job run, returned by RunJob and
// published for /admin/sync/status.
type RunSummary struct {
	JobName   JobName
	StartedAt time.Time
	EndedAt   time.Time
	Total     int
	Succeeded int
	Skipped   int
	Failed    int
	Cancelled bool
}
