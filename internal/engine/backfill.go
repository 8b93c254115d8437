package engine

import (
	"context"
	"fmt"
)

// BackfillResult is the report of one missing-content repair pass.
type BackfillResult struct {
	Processed int
	Errors    int
}

// Backfill repairs videos that have a transcript artifact on disk but no
// derived content in the archive: it re-runs derivation and the merge step
// only, without re-downloading anything. An item whose derivation yields
// empty output keeps has_transcript=false and is eligible again on the next
// pass, so repeated runs are safe.
func (e *Engine) Backfill(ctx context.Context) (BackfillResult, error) {
	arch, err := e.store.Load()
	if err != nil {
		return BackfillResult{}, fmt.Errorf("load archive: %w", err)
	}

	var result BackfillResult
	for _, v := range arch.Videos {
		if v.HasTranscript {
			continue
		}
		vttPath := e.store.FindTranscriptFile(v.VideoID)
		if vttPath == "" {
			continue
		}

		log := e.logger.With("video", v.VideoID, "title", v.Title)
		transcript, summary, keywords, err := e.deriver.Derive(ctx, v.Title, vttPath)
		if err != nil {
			log.Error("backfill derivation failed", "error", err)
			result.Errors++
			continue
		}

		arch.MergeDerived(v.VideoID, v.Title, transcript, summary != "", keywords)
		v.HasTranscript = transcript != ""
		v.HasSummary = summary != ""
		e.writeSidecars(v, transcript, summary)
		result.Processed++
		log.Info("backfilled derived content",
			"has_transcript", transcript != "", "has_summary", summary != "")
	}

	if result.Processed > 0 {
		if err := e.store.Save(arch); err != nil {
			return result, fmt.Errorf("save archive: %w", err)
		}
	}
	return result, nil
}
