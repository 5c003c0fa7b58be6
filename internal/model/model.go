// Package model holds the persistent record shapes shared across the sync
// engine's components: store accounts, OAuth pending state, locks, daily
// snapshots, and the sync log.
package model

import "time"

// AccountStatus is the lifecycle state of a StoreAccount.
type AccountStatus string

const (
	StatusConnected      AccountStatus = "CONNECTED"
	StatusNeedReconnect   AccountStatus = "NEED_RECONNECT"
	StatusError           AccountStatus = "ERROR"
	StatusDisabled        AccountStatus = "DISABLED"
)

// StoreAccount is the single row per store tracking its platform connection.
type StoreAccount struct {
	StoreID             string
	PlatformOpenID       string
	AccessTokenCipher    string
	RefreshTokenCipher   string
	AccessExpiresAt      time.Time
	RefreshExpiresAt     time.Time
	Scope                string
	Status                AccountStatus
	LastSyncAt            *time.Time
	ConnectedAt           time.Time
	UpdatedAt             time.Time
}

// OAuthPendingState is a one-shot row bridging the authorize redirect to the
// callback exchange.
type OAuthPendingState struct {
	State        string
	CodeVerifier string
	StoreID      string
	ExpiresAt    time.Time
}

// SyncLogStatus is the terminal (or in-flight) status of a SyncLogEntry.
type SyncLogStatus string

const (
	LogSuccess SyncLogStatus = "SUCCESS"
	LogFailed  SyncLogStatus = "FAILED"
	LogSkipped SyncLogStatus = "SKIPPED"
	LogRunning SyncLogStatus = "RUNNING"
)

// SyncLogEntry is an append-only record of a run-level or per-store sync attempt.
type SyncLogEntry struct {
	ID           string
	StoreID      *string // nil for run-level entries
	JobName      string
	Status       SyncLogStatus
	Message      string
	ErrorDetails string
	DurationMS   int64
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// UserDailySnapshot is one row per (store_id, snapshot_date).
type UserDailySnapshot struct {
	StoreID        string
	SnapshotDate   time.Time
	PlatformOpenID string
	DisplayName    string
	AvatarURL      string
	FollowerCount  int64
	FollowingCount int64
	LikesCount     int64
	VideoCount     int64
}

// VideoDailySnapshot is one row per (store_id, video_id, snapshot_date).
type VideoDailySnapshot struct {
	StoreID       string
	VideoID       string
	SnapshotDate  time.Time
	ViewCount     int64
	LikeCount     int64
	CommentCount  int64
	ShareCount    int64
	Description   string
	CoverURL      string
	ShareURL      string
	CreatedAt     time.Time
}
