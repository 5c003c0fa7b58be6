package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/platformapi"
	"github.com/clipmetrics/syncengine/internal/resync"
	"github.com/clipmetrics/syncengine/internal/snapshot"
	"github.com/clipmetrics/syncengine/internal/telemetry"
)

// Orchestrator runs the three sync jobs across every connected store.
type Orchestrator struct {
	tokens    TokenService
	platform  PlatformClient
	locks     LockRegistry
	logs      LogWriter
	snapshots SnapshotWriter
	pacer     *resync.Pacer
	logger    *slog.Logger
	cfg       Config

	mu        sync.Mutex
	lastRun   map[JobName]RunSummary
	running   map[JobName]bool
	progress  ProgressCache      // optional; nil disables the best-effort cache
	metrics   *telemetry.Metrics // optional; nil disables metric recording
	scheduler *Scheduler         // optional; nil means sync.enabled=false, no schedule to report
}

// NewOrchestrator wires the orchestrator's dependencies.
func NewOrchestrator(tokens TokenService, platform PlatformClient, locks LockRegistry, logs LogWriter,
	snapshots SnapshotWriter, pacer *resync.Pacer, logger *slog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		tokens:    tokens,
		platform:  platform,
		locks:     locks,
		logs:      logs,
		snapshots: snapshots,
		pacer:     pacer,
		logger:    logger,
		cfg:       cfg.withDefaults(),
		lastRun:   make(map[JobName]RunSummary),
		running:   make(map[JobName]bool),
	}
}

// WithProgressCache attaches an optional progress cache (e.g. Redis). Never
// load-bearing for any invariant: SetProgress failures are only logged.
func (o *Orchestrator) WithProgressCache(cache ProgressCache) *Orchestrator {
	o.progress = cache
	return o
}

// WithMetrics attaches Prometheus collectors. Nil disables recording.
func (o *Orchestrator) WithMetrics(m *telemetry.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithScheduler attaches the cron scheduler driving this orchestrator, so
// HandleStatus can report schedule/timezone/next-run alongside run history.
// Leave unset when sync.enabled=false.
func (o *Orchestrator) WithScheduler(s *Scheduler) *Orchestrator {
	o.scheduler = s
	return o
}

// RunJob runs job across every eligible connected store, or only storeID
// when non-empty. job=all runs refresh_tokens, then user, then video
// sequentially against storeID (single-store scoping only, per the manual
// trigger contract).
func (o *Orchestrator) RunJob(ctx context.Context, job JobName, storeID string) (RunSummary, error) {
	if job == JobAll {
		if storeID == "" {
			return RunSummary{}, fmt.Errorf("job=all requires a single store_id")
		}
		for _, j := range []JobName{JobRefreshTokens, JobUser, JobVideo} {
			if _, err := o.runOne(ctx, j, storeID); err != nil {
				return RunSummary{}, err
			}
		}
		return o.lastSummary(JobVideo), nil
	}
	return o.runOne(ctx, job, storeID)
}

func (o *Orchestrator) lastSummary(job JobName) RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastRun[job]
}

func (o *Orchestrator) setRunning(job JobName, running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running[job] = running
}

func (o *Orchestrator) isRunning(job JobName) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[job]
}

func (o *Orchestrator) runOne(ctx context.Context, job JobName, storeID string) (RunSummary, error) {
	runLogID := uuid.NewString()
	startedAt := time.Now()
	o.logs.Log(model.SyncLogEntry{ID: runLogID, JobName: string(job), Status: model.LogRunning, StartedAt: startedAt})

	o.setRunning(job, true)
	defer o.setRunning(job, false)

	stores, err := o.candidateStores(ctx, job, storeID)
	if err != nil {
		o.finishRunLog(runLogID, string(job), startedAt, model.LogFailed, fmt.Sprintf("listing candidate stores: %v", err), "")
		return RunSummary{}, err
	}

	summary := RunSummary{JobName: job, StartedAt: startedAt, Total: len(stores)}

	if len(stores) == 0 {
		summary.EndedAt = time.Now()
		o.finishRunLog(runLogID, string(job), startedAt, model.LogSuccess, "no eligible stores", "")
		o.recordSummary(job, summary)
		return summary, nil
	}

	concurrency := o.concurrencyFor(job)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var succeeded, skipped, failed, processed int64
	cadence := progressCadence(len(stores))

	for _, acct := range stores {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(acct *model.StoreAccount) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := o.runStore(ctx, job, acct)
			switch outcome {
			case storeOutcomeSuccess:
				atomic.AddInt64(&succeeded, 1)
			case storeOutcomeSkipped:
				atomic.AddInt64(&skipped, 1)
			case storeOutcomeFailed:
				atomic.AddInt64(&failed, 1)
			}
			if o.metrics != nil {
				o.metrics.StoreSyncsTotal.WithLabelValues(string(job), outcome.String()).Inc()
			}

			done := atomic.AddInt64(&processed, 1)
			if done%int64(cadence) == 0 || int(done) == len(stores) {
				o.logger.Info("sync progress", "job", job, "processed", done, "total", len(stores),
					"percent", int(done*100/int64(len(stores))))
				if o.progress != nil {
					if err := o.progress.SetProgress(context.Background(), job, int(done), len(stores)); err != nil {
						o.logger.Warn("publishing progress cache", "job", job, "error", err)
					}
				}
			}
		}(acct)
	}
	wg.Wait()

	summary.Succeeded = int(succeeded)
	summary.Skipped = int(skipped)
	summary.Failed = int(failed)
	summary.EndedAt = time.Now()

	runStatus := model.LogSuccess
	if ctx.Err() != nil {
		summary.Cancelled = true
		runStatus = model.LogSkipped
		o.finishRunLog(runLogID, string(job), startedAt, model.LogSkipped, "cancelled", "")
	} else {
		o.finishRunLog(runLogID, string(job), startedAt, model.LogSuccess,
			fmt.Sprintf("succeeded=%d skipped=%d failed=%d", summary.Succeeded, summary.Skipped, summary.Failed), "")
	}
	if o.metrics != nil {
		o.metrics.SyncRunsTotal.WithLabelValues(string(job), string(runStatus)).Inc()
		o.metrics.SyncRunDuration.WithLabelValues(string(job)).Observe(summary.EndedAt.Sub(startedAt).Seconds())
	}
	o.recordSummary(job, summary)
	return summary, nil
}

func (o *Orchestrator) recordSummary(job JobName, s RunSummary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastRun[job] = s
}

func (o *Orchestrator) finishRunLog(id, jobName string, startedAt time.Time, status model.SyncLogStatus, message, errDetails string) {
	now := time.Now()
	o.logs.Log(model.SyncLogEntry{
		ID: id, JobName: jobName, Status: status, Message: message, ErrorDetails: errDetails,
		DurationMS: now.Sub(startedAt).Milliseconds(), StartedAt: startedAt, CompletedAt: &now,
	})
}

func (o *Orchestrator) concurrencyFor(job JobName) int {
	switch job {
	case JobUser:
		return o.cfg.UserConcurrency
	case JobVideo:
		return o.cfg.VideoConcurrency
	default:
		return o.cfg.RefreshConcurrency
	}
}

func (o *Orchestrator) candidateStores(ctx context.Context, job JobName, storeID string) ([]*model.StoreAccount, error) {
	if storeID != "" {
		// Single-store manual trigger: bypass the CONNECTED-status filter so a
		// NEED_RECONNECT store still produces an informative SKIPPED log entry
		// instead of silently matching zero rows.
		accounts, err := o.tokens.ListConnected(ctx, time.Time{})
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			if a.StoreID == storeID {
				return []*model.StoreAccount{a}, nil
			}
		}
		return []*model.StoreAccount{{StoreID: storeID, Status: model.StatusError}}, nil
	}

	if job == JobRefreshTokens {
		return o.tokens.ListConnected(ctx, time.Now().Add(o.cfg.RefreshHorizon))
	}
	return o.tokens.ListConnected(ctx, time.Time{})
}

type storeOutcome int

const (
	storeOutcomeSuccess storeOutcome = iota
	storeOutcomeSkipped
	storeOutcomeFailed
)

func (o storeOutcome) String() string {
	switch o {
	case storeOutcomeSuccess:
		return "success"
	case storeOutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

func (o *Orchestrator) runStore(ctx context.Context, job JobName, acct *model.StoreAccount) storeOutcome {
	started := time.Now()
	storeID := acct.StoreID
	lockKey := "sync:" + storeID
	ttl := o.cfg.UserSyncLockTTL
	timeout := o.cfg.UserSyncTimeout
	if job == JobVideo {
		ttl = o.cfg.VideoSyncLockTTL
		timeout = o.cfg.VideoSyncTimeout
	} else if job == JobRefreshTokens {
		ttl = o.cfg.RefreshLockTTL
	}

	acquired, err := o.locks.Acquire(ctx, lockKey, ttl)
	if err != nil {
		o.logStore(storeID, job, started, model.LogFailed, "acquiring lock", err)
		return storeOutcomeFailed
	}
	if !acquired {
		o.logStore(storeID, job, started, model.LogSkipped, "lock already held", nil)
		return storeOutcomeSkipped
	}
	defer func() { _ = o.locks.Release(context.Background(), lockKey) }()

	storeCtx := ctx
	var cancel context.CancelFunc
	if job != JobRefreshTokens {
		storeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	token, err := o.tokens.GetValidAccessToken(storeCtx, storeID)
	if err != nil {
		o.logStore(storeID, job, started, model.LogFailed, "resolving access token", err)
		return storeOutcomeFailed
	}
	if token == "" {
		o.logStore(storeID, job, started, model.LogSkipped, "no valid token", nil)
		return storeOutcomeSkipped
	}

	var workErr error
	switch job {
	case JobUser:
		workErr = o.syncUser(storeCtx, storeID, token)
	case JobVideo:
		workErr = o.syncVideo(storeCtx, storeID, token)
	case JobRefreshTokens:
		// GetValidAccessToken already refreshed as needed; nothing further to do.
	}

	if workErr != nil {
		o.logStore(storeID, job, started, model.LogFailed, "sync failed", workErr)
		return storeOutcomeFailed
	}

	if err := o.tokens.UpdateLastSync(storeCtx, storeID); err != nil {
		o.logger.Warn("updating last_sync_at", "store_id", storeID, "error", err)
	}
	o.logStore(storeID, job, started, model.LogSuccess, "ok", nil)
	return storeOutcomeSuccess
}

func (o *Orchestrator) syncUser(ctx context.Context, storeID, token string) error {
	policy := resync.DefaultRetryPolicy(platformapi.IsRetryable)
	stats, err := resync.Retry(ctx, policy, func(ctx context.Context) (platformapi.UserStats, error) {
		if err := o.pacer.Wait(ctx); err != nil {
			return platformapi.UserStats{}, err
		}
		return o.platform.GetUserInfo(ctx, token)
	}, o.onRetry("user_info", storeID))
	if err != nil {
		return err
	}

	row := model.UserDailySnapshot{
		StoreID:        storeID,
		SnapshotDate:   snapshot.DateFor(time.Now()),
		PlatformOpenID: stats.OpenID,
		DisplayName:    stats.DisplayName,
		AvatarURL:      stats.AvatarURL,
		FollowerCount:  stats.FollowerCount,
		FollowingCount: stats.FollowingCount,
		LikesCount:     stats.LikesCount,
		VideoCount:     stats.VideoCount,
	}
	return o.snapshots.UpsertUserDaily(ctx, row)
}

func (o *Orchestrator) syncVideo(ctx context.Context, storeID, token string) error {
	snapshotDate := snapshot.DateFor(time.Now())

	videos, err := o.platform.FetchAllVideos(ctx, token, o.cfg.MaxVideosPerStore, nil)
	if err != nil && len(videos) == 0 {
		return err
	}

	rows := make([]model.VideoDailySnapshot, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, model.VideoDailySnapshot{
			StoreID:      storeID,
			VideoID:      v.VideoID,
			SnapshotDate: snapshotDate,
			ViewCount:    v.ViewCount,
			LikeCount:    v.LikeCount,
			CommentCount: v.CommentCount,
			ShareCount:   v.ShareCount,
			Description:  v.Description,
			CoverURL:     v.CoverURL,
			ShareURL:     v.ShareURL,
			CreatedAt:    v.CreatedAt,
		})
	}
	if writeErr := o.snapshots.UpsertVideoDailyBatch(ctx, rows); writeErr != nil {
		return writeErr
	}
	return err
}

func (o *Orchestrator) onRetry(label, storeID string) resync.OnRetry {
	return func(attempt int, delay time.Duration, err error) {
		o.logger.Warn("retrying platform call", "store_id", storeID, "attempt", attempt, "delay", delay, "error", err)
		if o.metrics != nil {
			o.metrics.RetryAttempts.WithLabelValues(label).Inc()
		}
	}
}

func (o *Orchestrator) logStore(storeID string, job JobName, started time.Time, status model.SyncLogStatus, message string, cause error) {
	now := time.Now()
	errDetails := ""
	if cause != nil {
		errDetails = cause.Error()
	}
	o.logs.Log(model.SyncLogEntry{
		ID: uuid.NewString(), StoreID: &storeID, JobName: string(job), Status: status,
		Message: message, ErrorDetails: errDetails, DurationMS: now.Sub(started).Milliseconds(),
		StartedAt: started, CompletedAt: &now,
	})
}

// progressCadence returns the completion-count interval for progress logging:
// not finer than every max(1, total/100).
func progressCadence(total int) int {
	cadence := total / 100
	if cadence < 1 {
		cadence = 1
	}
	return cadence
}
