package engine

import (
	"context"
	"fmt"
	"time"

	"ytarchive/internal/youtube"
)

// RefreshResult is the report of one metadata refresh pass.
type RefreshResult struct {
	Updated int
	Errors  int
}

// RefreshMetadata re-fetches view, like, and comment counts for every
// archived video in batches of at most youtube.StatsBatchSize ids. A failed
// batch leaves its items unchanged and the pass continues with the next
// batch, so one bad call never loses existing counters.
func (e *Engine) RefreshMetadata(ctx context.Context) (RefreshResult, error) {
	arch, err := e.store.Load()
	if err != nil {
		return RefreshResult{}, fmt.Errorf("load archive: %w", err)
	}

	ids := make([]string, 0, len(arch.Videos))
	for _, v := range arch.Videos {
		ids = append(ids, v.VideoID)
	}

	var result RefreshResult
	for start := 0; start < len(ids); start += youtube.StatsBatchSize {
		end := min(start+youtube.StatsBatchSize, len(ids))
		batch := ids[start:end]

		stats, err := e.source.RefreshStatistics(ctx, batch)
		if err != nil {
			e.logger.Error("statistics batch failed, items kept unchanged",
				"batch_start", start, "batch_size", len(batch), "error", err)
			result.Errors++
			continue
		}

		now := time.Now()
		for id, s := range stats {
			if arch.UpdateStatistics(id, s.ViewCount, s.LikeCount, s.CommentCount, now) {
				result.Updated++
			}
		}
	}

	if result.Updated > 0 {
		if err := e.store.Save(arch); err != nil {
			return result, fmt.Errorf("save archive: %w", err)
		}
	}
	e.logger.Info("metadata refresh complete",
		"videos", len(ids), "updated", result.Updated, "failed_batches", result.Errors)
	return result, nil
}
