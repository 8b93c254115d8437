package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytarchive/internal/retry"
)

// Client talks to the YouTube Data API v3.
type Client struct {
	service     *youtube.Service
	RetryConfig retry.Config
}

// NewClient creates a Data API client with the given API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("youtube: api key required")
	}
	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{
		service:     service,
		RetryConfig: retry.DefaultConfig(),
	}, nil
}

// ListChannelVideos returns the channel's complete upload list with full
// metadata, in the API's listing order (newest first).
func (c *Client) ListChannelVideos(ctx context.Context, channelID string) ([]VideoInfo, error) {
	playlistID, err := c.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, &SourceError{Op: "list", ID: channelID, Err: err}
	}

	var all []VideoInfo
	pageToken := ""
	for {
		var ids []string
		err := retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
			resp, err := c.service.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(50).
				PageToken(pageToken).
				Context(ctx).
				Do()
			if err != nil {
				return err
			}
			ids = ids[:0]
			for _, item := range resp.Items {
				ids = append(ids, item.ContentDetails.VideoId)
			}
			pageToken = resp.NextPageToken
			return nil
		})
		if err != nil {
			return nil, &SourceError{Op: "list", ID: channelID, Err: err}
		}

		if len(ids) > 0 {
			videos, err := c.videoDetails(ctx, ids)
			if err != nil {
				return nil, &SourceError{Op: "list", ID: channelID, Err: err}
			}
			all = append(all, videos...)
			slog.Debug("listed videos", "channel", channelID, "count", len(all))
		}

		if pageToken == "" {
			break
		}
	}
	return all, nil
}

// uploadsPlaylistID resolves the channel's uploads playlist.
func (c *Client) uploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	var playlistID string
	err := retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
		resp, err := c.service.Channels.List([]string{"contentDetails"}).
			Id(channelID).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}
		playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, err
}

// videoDetails fetches snippet and statistics for up to 50 ids at once,
// preserving the input order.
func (c *Client) videoDetails(ctx context.Context, ids []string) ([]VideoInfo, error) {
	byID := make(map[string]VideoInfo, len(ids))
	err := retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
		resp, err := c.service.Videos.List([]string{"snippet", "statistics"}).
			Id(strings.Join(ids, ",")).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, v := range resp.Items {
			byID[v.Id] = videoInfoFromAPI(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	videos := make([]VideoInfo, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

func videoInfoFromAPI(v *youtube.Video) VideoInfo {
	info := VideoInfo{ID: v.Id}
	if v.Snippet != nil {
		info.Title = v.Snippet.Title
		info.Description = v.Snippet.Description
		info.ChannelID = v.Snippet.ChannelId
		if t, err := time.Parse(time.RFC3339, v.Snippet.PublishedAt); err == nil {
			info.PublishedAt = t
		}
		if v.Snippet.Thumbnails != nil && v.Snippet.Thumbnails.High != nil {
			info.ThumbnailURL = v.Snippet.Thumbnails.High.Url
		}
	}
	if v.Statistics != nil {
		info.ViewCount = int64(v.Statistics.ViewCount)
		info.LikeCount = int64(v.Statistics.LikeCount)
		info.CommentCount = int64(v.Statistics.CommentCount)
	}
	return info
}

// FetchComments retrieves all comment threads for a video, replies
// included. Comments being disabled (HTTP 403) is not an error: the video
// is archived with whatever was retrieved.
func (c *Client) FetchComments(ctx context.Context, videoID string) ([]Comment, error) {
	var comments []Comment
	pageToken := ""
	for {
		var resp *youtube.CommentThreadListResponse
		err := retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
			var err error
			resp, err = c.service.CommentThreads.List([]string{"snippet", "replies"}).
				VideoId(videoID).
				MaxResults(100).
				Order("relevance").
				PageToken(pageToken).
				Context(ctx).
				Do()
			return err
		})
		if err != nil {
			if isCommentsDisabled(err) {
				slog.Warn("comments disabled", "video", videoID)
				return comments, nil
			}
			return nil, &SourceError{Op: "comments", ID: videoID, Err: err}
		}

		for _, thread := range resp.Items {
			top := commentFromAPI(thread.Snippet.TopLevelComment, videoID, "")
			comments = append(comments, top)
			if thread.Replies != nil {
				for _, reply := range thread.Replies.Comments {
					comments = append(comments, commentFromAPI(reply, videoID, top.CommentID))
				}
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return comments, nil
}

func commentFromAPI(c *youtube.Comment, videoID, parentID string) Comment {
	out := Comment{
		CommentID: c.Id,
		VideoID:   videoID,
		ParentID:  parentID,
	}
	if c.Snippet != nil {
		out.Author = c.Snippet.AuthorDisplayName
		if c.Snippet.AuthorChannelId != nil {
			out.AuthorChannelID = c.Snippet.AuthorChannelId.Value
		}
		out.Text = c.Snippet.TextDisplay
		out.LikeCount = c.Snippet.LikeCount
		if t, err := time.Parse(time.RFC3339, c.Snippet.PublishedAt); err == nil {
			out.PublishedAt = t
		}
	}
	return out
}

// RefreshStatistics fetches current counters for up to StatsBatchSize ids
// in one call. Ids absent from the response (deleted or private videos)
// are absent from the result.
func (c *Client) RefreshStatistics(ctx context.Context, ids []string) (map[string]Statistics, error) {
	if len(ids) > StatsBatchSize {
		return nil, fmt.Errorf("youtube: stats batch of %d exceeds limit %d", len(ids), StatsBatchSize)
	}

	stats := make(map[string]Statistics, len(ids))
	err := retry.Do(ctx, c.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
		resp, err := c.service.Videos.List([]string{"statistics"}).
			Id(strings.Join(ids, ",")).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		for _, v := range resp.Items {
			if v.Statistics == nil {
				continue
			}
			stats[v.Id] = Statistics{
				ViewCount:    int64(v.Statistics.ViewCount),
				LikeCount:    int64(v.Statistics.LikeCount),
				CommentCount: int64(v.Statistics.CommentCount),
			}
		}
		return nil
	})
	if err != nil {
		return nil, &SourceError{Op: "stats", ID: strings.Join(ids, ","), Err: err}
	}
	return stats, nil
}

func isCommentsDisabled(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 403
}

// apiErrorClassifier determines if a Data API error is retryable.
func apiErrorClassifier(err error) bool {
	if errors.Is(err, ErrChannelNotFound) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 403, 404:
			// Quota, comments-disabled, and missing resources won't
			// resolve by retrying.
			return false
		}
	}
	return retry.Transient(err)
}
