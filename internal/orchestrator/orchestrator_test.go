package orchestrator

import (
	"log/slog"
	"testing"

	"github.com/clipmetrics/syncengine/internal/model"
	"github.com/clipmetrics/syncengine/internal/platformapi"
	"github.com/clipmetrics/syncengine/internal/resync"
)

func newTestOrchestrator(tokens *fakeTokens, platform *fakePlatform, locks *fakeLocks, logs *fakeLogs, snaps *fakeSnapshots) *Orchestrator {
	return NewOrchestrator(tokens, platform, locks, logs, snaps, resync.NewPacer(1000), slog.Default(), Config{})
}

func TestRunJobUserSuccess(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{userStats: platformapi.UserStats{OpenID: "open-1", DisplayName: "Acme"}}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	summary, err := o.RunJob(t.Context(), JobUser, "")
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want 1 succeeded", summary)
	}
	if len(snaps.userRows) != 1 || snaps.userRows[0].PlatformOpenID != "open-1" {
		t.Errorf("userRows = %+v", snaps.userRows)
	}
	if len(tokens.syncs) != 1 {
		t.Errorf("UpdateLastSync calls = %d, want 1", len(tokens.syncs))
	}
	entries := logs.storeEntries("store-1")
	if len(entries) != 1 || entries[0].Status != model.LogSuccess {
		t.Errorf("store log entries = %+v", entries)
	}
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{}
	locks := newFakeLocks()
	locks.denyAll = true
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	summary, err := o.RunJob(t.Context(), JobUser, "")
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	if platform.userCalls != 0 {
		t.Errorf("platform.userCalls = %d, want 0 (lock held)", platform.userCalls)
	}
}

func TestRunJobSkipsWhenNoValidToken(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{}, // no token for store-1
	}
	platform := &fakePlatform{}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	summary, err := o.RunJob(t.Context(), JobUser, "")
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 skipped", summary)
	}
	entries := logs.storeEntries("store-1")
	if len(entries) != 1 || entries[0].Message != "no valid token" {
		t.Errorf("store log entries = %+v", entries)
	}
}

func TestRunJobMarksFailedOnPlatformError(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{userErr: &platformapiFakeError{"boom"}}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	summary, err := o.RunJob(t.Context(), JobUser, "")
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
}

func TestRunJobReleasesLockEvenOnFailure(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{userErr: &platformapiFakeError{"boom"}}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	_, _ = o.RunJob(t.Context(), JobUser, "")

	if locks.held["sync:store-1"] {
		t.Errorf("lock still held after run completed")
	}
}

func TestRunJobVideoBatchesSnapshots(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{videos: []platformapi.VideoStats{
		{VideoID: "v1", ViewCount: 10},
		{VideoID: "v2", ViewCount: 20},
	}}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	summary, err := o.RunJob(t.Context(), JobVideo, "")
	if err != nil {
		t.Fatalf("RunJob() error: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Errorf("summary = %+v, want 1 succeeded", summary)
	}
	if len(snaps.videoBatch) != 1 || len(snaps.videoBatch[0]) != 2 {
		t.Errorf("videoBatch = %+v", snaps.videoBatch)
	}
}

func TestRunJobAllRunsSequentiallyForSingleStore(t *testing.T) {
	tokens := &fakeTokens{
		accounts: []*model.StoreAccount{{StoreID: "store-1", Status: model.StatusConnected}},
		tokens:   map[string]string{"store-1": "tok"},
	}
	platform := &fakePlatform{userStats: platformapi.UserStats{OpenID: "open-1"}}
	locks := newFakeLocks()
	logs := &fakeLogs{}
	snaps := &fakeSnapshots{}
	o := newTestOrchestrator(tokens, platform, locks, logs, snaps)

	_, err := o.RunJob(t.Context(), JobAll, "store-1")
	if err != nil {
		t.Fatalf("RunJob(all) error: %v", err)
	}
	if platform.userCalls != 1 || platform.videoCalls != 1 {
		t.Errorf("userCalls=%d videoCalls=%d, want 1 and 1", platform.userCalls, platform.videoCalls)
	}
}

func TestRunJobAllRequiresStoreID(t *testing.T) {
	o := newTestOrchestrator(&fakeTokens{}, &fakePlatform{}, newFakeLocks(), &fakeLogs{}, &fakeSnapshots{})
	if _, err := o.RunJob(t.Context(), JobAll, ""); err == nil {
		t.Error("RunJob(all, \"\") expected an error, got nil")
	}
}

func TestProgressCadence(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{total: 1, want: 1},
		{total: 50, want: 1},
		{total: 250, want: 2},
		{total: 1000, want: 10},
	}
	for _, tc := range cases {
		if got := progressCadence(tc.total); got != tc.want {
			t.Errorf("progressCadence(%d) = %d, want %d", tc.total, got, tc.want)
		}
	}
}

type platformapiFakeError struct{ msg string }

func (e *platformapiFakeError) Error() string { return e.msg }
