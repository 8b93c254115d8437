package archive

import "time"

// Video is one archived video's metadata record, matching the on-disk
// format of videos.json. The id is immutable once assigned; counters and
// ScrapedAt are refreshed by metadata-update passes.
type Video struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PublishedAt  time.Time `json:"published_at"`
	ChannelID    string    `json:"channel_id"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	ScrapedAt    time.Time `json:"scraped_at"`
	ThumbnailURL string    `json:"thumbnail_url"`

	// Set by the processing pipeline, never by discovery.
	FilePath       string    `json:"file_path,omitempty"`
	AddedToArchive time.Time `json:"added_to_archive,omitzero"`
	HasTranscript  bool      `json:"has_transcript"`
	HasSummary     bool      `json:"has_summary"`
	SyncID         string    `json:"sync_id,omitempty"`
}

// Comment is one archived comment, matching comments.json. Replies are at
// most one level deep: ParentCommentID is empty for top-level comments and
// names a top-level comment for replies.
type Comment struct {
	CommentID       string    `json:"comment_id"`
	VideoID         string    `json:"video_id"`
	ParentCommentID string    `json:"parent_comment_id,omitempty"`
	Author          string    `json:"author"`
	AuthorChannelID string    `json:"author_channel_id"`
	Text            string    `json:"text"`
	PublishedAt     time.Time `json:"published_at"`
	LikeCount       int64     `json:"like_count"`
	// IsReply is 1 for replies and 0 for top-level comments. Kept as an
	// integer for compatibility with the existing archive format.
	IsReply   int       `json:"is_reply"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// TranscriptEntry is one entry in transcript_index.json under "transcripts".
type TranscriptEntry struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Transcript  string    `json:"transcript"`
	ProcessedAt time.Time `json:"processed_at"`
}

// TranscriptIndex is the top-level structure of transcript_index.json.
// WordIndex is reserved by downstream consumers and never populated here.
type TranscriptIndex struct {
	Metadata    map[string]any             `json:"metadata"`
	Transcripts map[string]TranscriptEntry `json:"transcripts"`
	WordIndex   map[string][]string        `json:"word_index"`
}

// MappingEntry is one value in video-mapping.json, a denormalized index
// from video id to its archived file for fast path lookup.
type MappingEntry struct {
	FilePath string    `json:"file_path"`
	Title    string    `json:"title"`
	AddedAt  time.Time `json:"added_at"`
}

// Stats summarizes archive contents for status reporting.
type Stats struct {
	TotalVideos     int       `json:"total_videos"`
	TotalComments   int       `json:"total_comments"`
	WithTranscripts int       `json:"videos_with_transcripts"`
	WithSummaries   int       `json:"videos_with_summaries"`
	KeywordEntries  int       `json:"keyword_entries"`
	LastScrapedAt   time.Time `json:"last_scraped_at,omitzero"`
}
