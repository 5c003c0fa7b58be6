// Package snapshot writes daily user and video metric snapshots. Upserts are
// unconditional and keyed by the model's unique tuples, so same-day reruns
// replace in place and cross-day reruns create new rows.
package snapshot

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipmetrics/syncengine/internal/model"
)

// Writer upserts UserDailySnapshot and VideoDailySnapshot rows.
type Writer struct {
	pool *pgxpool.Pool
}

// NewWriter builds a snapshot Writer over the given pool.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// UpsertUserDaily writes (or replaces) one row keyed by (store_id, snapshot_date).
func (w *Writer) UpsertUserDaily(ctx context.Context, row model.UserDailySnapshot) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO user_daily
			(store_id, snapshot_date, platform_open_id, display_name, avatar_url,
			 follower_count, following_count, likes_count, video_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (store_id, snapshot_date) DO UPDATE SET
			platform_open_id = EXCLUDED.platform_open_id,
			display_name     = EXCLUDED.display_name,
			avatar_url       = EXCLUDED.avatar_url,
			follower_count   = EXCLUDED.follower_count,
			following_count  = EXCLUDED.following_count,
			likes_count      = EXCLUDED.likes_count,
			video_count      = EXCLUDED.video_count`,
		row.StoreID, row.SnapshotDate, row.PlatformOpenID, row.DisplayName, row.AvatarURL,
		row.FollowerCount, row.FollowingCount, row.LikesCount, row.VideoCount)
	return err
}

// UpsertVideoDailyBatch writes (or replaces) all given rows, keyed by
// (store_id, video_id, snapshot_date), as one single-row upsert per row, all
// inside a single transaction: either every row is written or none is.
func (w *Writer) UpsertVideoDailyBatch(ctx context.Context, rows []model.VideoDailySnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const stmt = `
		INSERT INTO video_daily
			(store_id, video_id, snapshot_date, view_count, like_count, comment_count, share_count,
			 description, cover_url, share_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (store_id, video_id, snapshot_date) DO UPDATE SET
			view_count    = EXCLUDED.view_count,
			like_count    = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			share_count   = EXCLUDED.share_count,
			description   = EXCLUDED.description,
			cover_url     = EXCLUDED.cover_url,
			share_url     = EXCLUDED.share_url,
			created_at    = EXCLUDED.created_at`

	for _, row := range rows {
		if _, err := tx.Exec(ctx, stmt,
			row.StoreID, row.VideoID, row.SnapshotDate, row.ViewCount, row.LikeCount, row.CommentCount, row.ShareCount,
			row.Description, row.CoverURL, row.ShareURL, row.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
