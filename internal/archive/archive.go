// Package archive owns the five interlinked JSON collections that make up
// a channel archive (videos, comments, keyword index, transcript index,
// id-to-file mapping) and their load/save-with-backup persistence.
package archive

import (
	"sync"
	"time"
)

// Archive is the in-memory aggregate of the five collections, constructed
// once per reconciliation cycle and discarded after persistence. All
// mutation during concurrent processing goes through methods that hold mu,
// so a completed archive is a valid interleaving of per-item merges
// regardless of completion order.
type Archive struct {
	mu sync.Mutex

	Videos          []Video
	Comments        []Comment
	Keywords        map[string][]string
	TranscriptIndex TranscriptIndex
	VideoMapping    map[string]MappingEntry
}

// New returns an empty archive with all collections initialized.
func New() *Archive {
	return &Archive{
		Videos:   []Video{},
		Comments: []Comment{},
		Keywords: map[string][]string{},
		TranscriptIndex: TranscriptIndex{
			Metadata:    map[string]any{},
			Transcripts: map[string]TranscriptEntry{},
			WordIndex:   map[string][]string{},
		},
		VideoMapping: map[string]MappingEntry{},
	}
}

// KnownIDs returns the set of video ids already present in the archive.
func (a *Archive) KnownIDs() map[string]struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make(map[string]struct{}, len(a.Videos))
	for _, v := range a.Videos {
		ids[v.VideoID] = struct{}{}
	}
	return ids
}

// HasVideo reports whether the archive already contains the video id.
func (a *Archive) HasVideo(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, v := range a.Videos {
		if v.VideoID == id {
			return true
		}
	}
	return false
}

// MergeProcessed merges one fully processed video into the archive as a
// single atomic block: the video record, its comments, its file mapping,
// and (when non-empty) its transcript-index entry and keyword aliases.
// No other worker's merge can interleave mid-item.
func (a *Archive) MergeProcessed(v Video, comments []Comment, transcript string, keywords []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Videos = append(a.Videos, v)
	a.Comments = append(a.Comments, comments...)

	a.VideoMapping[v.VideoID] = MappingEntry{
		FilePath: v.FilePath,
		Title:    v.Title,
		AddedAt:  v.AddedToArchive,
	}

	a.mergeDerivedLocked(v.VideoID, v.Title, transcript, keywords)
}

// MergeDerived records derivation output (transcript index entry and
// keyword aliases) for a video that is already in the archive, and updates
// its has_transcript/has_summary flags. Used by the backfill repair pass.
func (a *Archive) MergeDerived(videoID, title, transcript string, hasSummary bool, keywords []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.Videos {
		if a.Videos[i].VideoID == videoID {
			a.Videos[i].HasTranscript = transcript != ""
			a.Videos[i].HasSummary = hasSummary
			break
		}
	}

	a.mergeDerivedLocked(videoID, title, transcript, keywords)
}

// mergeDerivedLocked upserts the transcript-index entry and the three
// keyword aliases. Caller must hold mu.
func (a *Archive) mergeDerivedLocked(videoID, title, transcript string, keywords []string) {
	if transcript != "" {
		a.TranscriptIndex.Transcripts[TranscriptKey(title, videoID)] = TranscriptEntry{
			VideoID:     videoID,
			Title:       title,
			Transcript:  transcript,
			ProcessedAt: time.Now(),
		}
	}

	if len(keywords) > 0 {
		for _, alias := range KeywordAliases(title, videoID) {
			a.Keywords[alias] = keywords
		}
	}
}

// UpdateStatistics overwrites the refreshable counters and scrape time for
// one video. Returns false if the video is not in the archive.
func (a *Archive) UpdateStatistics(videoID string, views, likes, comments int64, scrapedAt time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.Videos {
		if a.Videos[i].VideoID == videoID {
			a.Videos[i].ViewCount = views
			a.Videos[i].LikeCount = likes
			a.Videos[i].CommentCount = comments
			a.Videos[i].ScrapedAt = scrapedAt
			return true
		}
	}
	return false
}

// Stats computes summary statistics over the archive contents.
func (a *Archive) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{
		TotalVideos:    len(a.Videos),
		TotalComments:  len(a.Comments),
		KeywordEntries: len(a.Keywords),
	}
	for _, v := range a.Videos {
		if v.HasTranscript {
			s.WithTranscripts++
		}
		if v.HasSummary {
			s.WithSummaries++
		}
		if v.ScrapedAt.After(s.LastScrapedAt) {
			s.LastScrapedAt = v.ScrapedAt
		}
	}
	return s
}
