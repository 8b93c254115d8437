package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"ytarchive/internal/archive"
	"ytarchive/internal/youtube"
)

// processVideo runs the per-item pipeline for one new video. It returns
// true only when the item was fully processed and merged; on any hard
// failure nothing is merged and the id stays out of the archive, so the
// next cycle discovers it again.
//
// Gates, in order: the media fetch is hard (no media, no item), the comment
// fetch is soft (comments disabled or failing must not block a new video),
// and derivation runs only when a transcript artifact exists; a derivation
// failure fails the item.
func (e *Engine) processVideo(ctx context.Context, arch *archive.Archive, info youtube.VideoInfo, syncID string) bool {
	e.setPhase("processing:" + info.ID)
	log := e.logger.With("video", info.ID, "title", info.Title)

	videoFile, transcriptFile, err := e.downloader.Download(ctx, info.ID, e.store.VideosDir())
	if err != nil {
		log.Error("media download failed", "error", err)
		return false
	}

	comments, err := e.source.FetchComments(ctx, info.ID)
	if err != nil {
		log.Warn("comment fetch failed, continuing without comments", "error", err)
		comments = nil
	}

	var transcript, summary string
	var keywords []string
	if transcriptFile != "" {
		vttPath := filepath.Join(e.store.VideosDir(), transcriptFile)
		transcript, summary, keywords, err = e.deriver.Derive(ctx, info.Title, vttPath)
		if err != nil {
			log.Error("derivation failed", "error", err)
			return false
		}
	}

	now := time.Now()
	v := archive.Video{
		VideoID:        info.ID,
		Title:          info.Title,
		Description:    info.Description,
		PublishedAt:    info.PublishedAt,
		ChannelID:      info.ChannelID,
		ViewCount:      info.ViewCount,
		LikeCount:      info.LikeCount,
		CommentCount:   info.CommentCount,
		ScrapedAt:      now,
		ThumbnailURL:   info.ThumbnailURL,
		FilePath:       videoFile,
		AddedToArchive: now,
		HasTranscript:  transcript != "",
		HasSummary:     summary != "",
		SyncID:         syncID,
	}

	e.writeSidecars(v, transcript, summary)
	arch.MergeProcessed(v, convertComments(comments, now), transcript, keywords)

	log.Info("video archived",
		"file", videoFile, "comments", len(comments),
		"has_transcript", v.HasTranscript, "has_summary", v.HasSummary)
	return true
}

// writeSidecars persists the derived text artifacts and a metadata snapshot
// next to the media file. Sidecar writes are best effort: the archive
// collections are the source of truth and a failed sidecar must not discard
// an otherwise processed item.
func (e *Engine) writeSidecars(v archive.Video, transcript, summary string) {
	base := filepath.Join(e.store.VideosDir(), archive.SidecarBase(v.Title, v.VideoID))
	header := "Video: " + v.Title + "\n====\n\n"

	if transcript != "" {
		if err := os.WriteFile(base+"_transcript.txt", []byte(header+transcript), 0644); err != nil {
			e.logger.Warn("transcript sidecar write failed", "video", v.VideoID, "error", err)
		}
	}
	if summary != "" {
		if err := os.WriteFile(base+"_summary.txt", []byte(header+summary), 0644); err != nil {
			e.logger.Warn("summary sidecar write failed", "video", v.VideoID, "error", err)
		}
	}

	meta, err := json.MarshalIndent(v, "", "  ")
	if err == nil {
		err = os.WriteFile(base+"_metadata.json", meta, 0644)
	}
	if err != nil {
		e.logger.Warn("metadata sidecar write failed", "video", v.VideoID, "error", err)
	}
}

// convertComments maps source comments onto the archive's persisted shape.
func convertComments(comments []youtube.Comment, scrapedAt time.Time) []archive.Comment {
	out := make([]archive.Comment, 0, len(comments))
	for _, c := range comments {
		isReply := 0
		if c.ParentID != "" {
			isReply = 1
		}
		out = append(out, archive.Comment{
			CommentID:       c.CommentID,
			VideoID:         c.VideoID,
			ParentCommentID: c.ParentID,
			Author:          c.Author,
			AuthorChannelID: c.AuthorChannelID,
			Text:            c.Text,
			PublishedAt:     c.PublishedAt,
			LikeCount:       c.LikeCount,
			IsReply:         isReply,
			ScrapedAt:       scrapedAt,
		})
	}
	return out
}
