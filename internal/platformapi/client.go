// Package platformapi is the outbound HTTP client for the short-video
// platform's account-stats and video-listing endpoints.
package platformapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	syncerrors "github.com/clipmetrics/syncengine/internal/errors"
)

const maxListVideosCount = 20

// Client calls the platform's integration API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a platform API client with the given base URL and
// request timeout (30s per the spec's per-request timeout budget).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *envelopeError  `json:"error"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

// GetUserInfo fetches the authenticated store's account-level stats.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (UserStats, error) {
	url := fmt.Sprintf("%s/user/info/?fields=%s", c.baseURL, strings.Join(userInfoFields, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return UserStats{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var body struct {
		User struct {
			OpenID         string `json:"open_id"`
			DisplayName    string `json:"display_name"`
			AvatarURL      string `json:"avatar_url"`
			FollowerCount  int64  `json:"follower_count"`
			FollowingCount int64  `json:"following_count"`
			LikesCount     int64  `json:"likes_count"`
			VideoCount     int64  `json:"video_count"`
		} `json:"user"`
	}
	if err := c.do(req, &body); err != nil {
		return UserStats{}, err
	}

	return UserStats{
		OpenID:         body.User.OpenID,
		DisplayName:    body.User.DisplayName,
		AvatarURL:      body.User.AvatarURL,
		FollowerCount:  body.User.FollowerCount,
		FollowingCount: body.User.FollowingCount,
		LikesCount:     body.User.LikesCount,
		VideoCount:     body.User.VideoCount,
	}, nil
}

// ListVideos fetches one page of the store's videos starting at cursor.
// maxCount is capped at 20 regardless of the caller-supplied value.
func (c *Client) ListVideos(ctx context.Context, accessToken string, cursor int64, maxCount int) ([]VideoStats, int64, bool, error) {
	if maxCount <= 0 || maxCount > maxListVideosCount {
		maxCount = maxListVideosCount
	}

	url := fmt.Sprintf("%s/video/list/?fields=%s", c.baseURL, strings.Join(videoFields, ","))
	payload, err := json.Marshal(map[string]any{"cursor": cursor, "max_count": maxCount})
	if err != nil {
		return nil, 0, false, fmt.Errorf("marshalling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Videos []struct {
			ID               string `json:"id"`
			CreateTime       int64  `json:"create_time"`
			CoverImageURL    string `json:"cover_image_url"`
			ShareURL         string `json:"share_url"`
			VideoDescription string `json:"video_description"`
			ViewCount        int64  `json:"view_count"`
			LikeCount        int64  `json:"like_count"`
			CommentCount     int64  `json:"comment_count"`
			ShareCount       int64  `json:"share_count"`
		} `json:"videos"`
		Cursor  int64 `json:"cursor"`
		HasMore bool  `json:"has_more"`
	}
	if err := c.do(req, &body); err != nil {
		return nil, 0, false, err
	}

	videos := make([]VideoStats, 0, len(body.Videos))
	for _, v := range body.Videos {
		videos = append(videos, VideoStats{
			VideoID:      v.ID,
			Description:  v.VideoDescription,
			CoverURL:     v.CoverImageURL,
			ShareURL:     v.ShareURL,
			CreatedAt:    time.Unix(v.CreateTime, 0).UTC(),
			ViewCount:    v.ViewCount,
			LikeCount:    v.LikeCount,
			CommentCount: v.CommentCount,
			ShareCount:   v.ShareCount,
		})
	}

	return videos, body.Cursor, body.HasMore, nil
}

// FetchAllVideos repeatedly calls ListVideos from cursor 0 until has_more is
// false, maxVideos is reached, or the 100-page hard cap is hit. It also
// guards against a platform bug where next_cursor stops advancing while
// has_more stays true, terminating with partial results in that case.
func (c *Client) FetchAllVideos(ctx context.Context, accessToken string, maxVideos int, onProgress OnProgress) ([]VideoStats, error) {
	if maxVideos <= 0 {
		maxVideos = 1000
	}

	const hardPageCap = 100
	var all []VideoStats
	var cursor int64
	pages := 0

	for {
		if pages >= hardPageCap {
			break
		}
		remaining := maxVideos - len(all)
		if remaining <= 0 {
			break
		}
		pageSize := remaining
		if pageSize > maxListVideosCount {
			pageSize = maxListVideosCount
		}

		videos, nextCursor, hasMore, err := c.ListVideos(ctx, accessToken, cursor, pageSize)
		if err != nil {
			return all, err
		}
		all = append(all, videos...)
		pages++
		if onProgress != nil {
			onProgress(len(all), pages)
		}

		if !hasMore {
			break
		}
		if nextCursor == cursor {
			// Platform bug: cursor isn't advancing despite has_more=true.
			break
		}
		cursor = nextCursor
	}

	return all, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling platform api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if env.Error != nil && env.Error.Code != "" && env.Error.Code != "ok" {
		return classifyError(resp.StatusCode, env.Error.Code, env.Error.Message, env.Error.LogID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyError(resp.StatusCode, "http_error", fmt.Sprintf("http %d", resp.StatusCode), "")
	}
	if decodeErr != nil {
		return &syncerrors.APIError{Kind: syncerrors.APIErrorParse, Message: decodeErr.Error(), HTTPStatus: resp.StatusCode}
	}
	if len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func classifyError(httpStatus int, code, message, logID string) *syncerrors.APIError {
	kind := syncerrors.APIErrorClient
	switch {
	case code == "access_token_invalid" || code == "access_token_expired" || code == "invalid_token" || httpStatus == http.StatusUnauthorized:
		kind = syncerrors.APIErrorAuth
	case code == "rate_limit_exceeded" || httpStatus == http.StatusTooManyRequests:
		kind = syncerrors.APIErrorRateLimit
	case httpStatus >= 500:
		kind = syncerrors.APIErrorServer
	case code == "http_error":
		kind = syncerrors.APIErrorHTTP
	}

	return &syncerrors.APIError{
		Kind:       kind,
		Code:       code,
		LogID:      logID,
		HTTPStatus: httpStatus,
		Message:    message,
	}
}

// IsRetryable adapts classifyError's kind for use as a resync.RetryPolicy.IsRetryable.
func IsRetryable(err error) bool {
	var apiErr *syncerrors.APIError
	if e, ok := err.(*syncerrors.APIError); ok {
		apiErr = e
	}
	if apiErr == nil {
		return false
	}
	return apiErr.Retryable()
}
