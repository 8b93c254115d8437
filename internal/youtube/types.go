// Package youtube provides the channel content source: Data API v3 listing,
// comment retrieval, statistics refresh, and yt-dlp media downloads.
package youtube

import (
	"errors"
	"time"
)

// Sentinel errors for source operations.
var (
	ErrChannelNotFound   = errors.New("youtube: channel not found")
	ErrVideoUnavailable  = errors.New("youtube: video unavailable")
	ErrYtdlpNotInstalled = errors.New("youtube: yt-dlp not installed")
	ErrNetworkTimeout    = errors.New("youtube: network timeout")
)

// StatsBatchSize is the maximum number of ids accepted by one
// videos.list statistics call.
const StatsBatchSize = 50

// VideoInfo is the metadata for one remote video as reported by the
// Data API listing.
type VideoInfo struct {
	ID           string
	Title        string
	Description  string
	PublishedAt  time.Time
	ChannelID    string
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
	ThumbnailURL string
}

// Comment is one comment thread entry. ParentID is empty for top-level
// comments and names the top-level comment for replies; the API never
// nests deeper than one level.
type Comment struct {
	CommentID       string
	VideoID         string
	ParentID        string
	Author          string
	AuthorChannelID string
	Text            string
	PublishedAt     time.Time
	LikeCount       int64
}

// Statistics holds the refreshable per-video counters.
type Statistics struct {
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// SourceError wraps errors with context about the source operation.
type SourceError struct {
	Op  string // "list", "comments", "stats", "download"
	ID  string // channel or video id
	Err error
}

func (e *SourceError) Error() string {
	return "youtube: " + e.Op + " " + e.ID + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }
