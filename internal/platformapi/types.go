package platformapi

import "time"

// UserStats is the account-level info returned by get_user_info.
type UserStats struct {
	OpenID        string
	DisplayName   string
	AvatarURL     string
	FollowerCount int64
	FollowingCount int64
	LikesCount     int64
	VideoCount     int64
}

// VideoStats is a single video's metrics as returned by list_videos.
type VideoStats struct {
	VideoID      string
	Description  string
	CoverURL     string
	ShareURL     string
	CreatedAt    time.Time
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
}

// OnProgress is called after each page fetched by FetchAllVideos.
type OnProgress func(fetched, pages int)

var userInfoFields = []string{"open_id", "display_name", "avatar_url",
	"follower_count", "following_count", "likes_count", "video_count"}

var videoFields = []string{"id", "create_time", "cover_image_url", "share_url",
	"video_description", "view_count", "like_count", "comment_count", "share_count"}
