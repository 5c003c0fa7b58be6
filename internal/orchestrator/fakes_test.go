package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/platformapi"
)

type fakeTokens struct {
	mu       sync.Mutex
	accounts []*model.StoreAccount
	tokens   map[string]string // store_id -> access token ("" means no valid token)
	syncs    []string
}

func (f *fakeTokens) GetValidAccessToken(ctx context.Context, storeID string) (string, error) {
	return f.tokens[storeID], nil
}

func (f *fakeTokens) UpdateLastSync(ctx context.Context, storeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncs = append(f.syncs, storeID)
	return nil
}

func (f *fakeTokens) ListConnected(ctx context.Context, refreshBefore time.Time) ([]*model.StoreAccount, error) {
	return f.accounts, nil
}

type fakePlatform struct {
	userStats  platformapi.UserStats
	userErr    error
	videos     []platformapi.VideoStats
	videosErr  error
	userCalls  int
	videoCalls int
}

func (f *fakePlatform) GetUserInfo(ctx context.Context, accessToken string) (platformapi.UserStats, error) {
	f.userCalls++
	return f.userStats, f.userErr
}

func (f *fakePlatform) FetchAllVideos(ctx context.Context, accessToken string, maxVideos int, onProgress platformapi.OnProgress) ([]platformapi.VideoStats, error) {
	f.videoCalls++
	return f.videos, f.videosErr
}

type fakeLocks struct {
	mu      sync.Mutex
	held    map[string]bool
	denyAll bool
}

func newFakeLocks() *fakeLocks { return &fakeLocks{held: make(map[string]bool)} }

func (f *fakeLocks) Acquire(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denyAll || f.held[lockKey] {
		return false, nil
	}
	f.held[lockKey] = true
	return true, nil
}

func (f *fakeLocks) Release(ctx context.Context, lockKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, lockKey)
	return nil
}

type fakeSnapshots struct {
	mu         sync.Mutex
	userRows   []model.UserDailySnapshot
	videoBatch [][]model.VideoDailySnapshot
}

func (f *fakeSnapshots) UpsertUserDaily(ctx context.Context, row model.UserDailySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userRows = append(f.userRows, row)
	return nil
}

func (f *fakeSnapshots) UpsertVideoDailyBatch(ctx context.Context, rows []model.VideoDailySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoBatch = append(f.videoBatch, rows)
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []model.SyncLogEntry
}

func (f *fakeLogs) Log(entry model.SyncLogEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeLogs) storeEntries(storeID string) []model.SyncLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SyncLogEntry
	for _, e := range f.entries {
		if e.StoreID != nil && *e.StoreID == storeID {
			out = append(out, e)
		}
	}
	return out
}

type fakeLogReader struct {
	entries []model.SyncLogEntry
	err     error
}

func (f *fakeLogReader) RecentLogs(ctx context.Context, storeID string, limit int) ([]model.SyncLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	if storeID == "" {
		return f.entries, nil
	}
	var out []model.SyncLogEntry
	for _, e := range f.entries {
		if e.StoreID != nil && *e.StoreID == storeID {
			out = append(out, e)
		}
	}
	return out, nil
}
