package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ytarchive/internal/archive"
	"ytarchive/internal/youtube"
)

// seedArchivedVideo saves an archive containing one already-processed video
// with no derived content, optionally with a VTT artifact on disk.
func seedArchivedVideo(t *testing.T, store *archive.Store, id, title string, withVTT bool) {
	t.Helper()
	arch, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	arch.MergeProcessed(archive.Video{
		VideoID:        id,
		Title:          title,
		FilePath:       id + ".mp4",
		AddedToArchive: time.Now(),
	}, nil, "", nil)
	if err := store.Save(arch); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if withVTT {
		vtt := filepath.Join(store.VideosDir(), id+".en.vtt")
		if err := os.WriteFile(vtt, []byte("WEBVTT\n\nwords\n"), 0o644); err != nil {
			t.Fatalf("write vtt: %v", err)
		}
	}
}

func TestBackfill_DerivesMissingContent(t *testing.T) {
	dr := &fakeDeriver{}
	e, store := newTestEngine(t, &fakeSource{}, &fakeDownloader{}, dr)
	seedArchivedVideo(t, store, "v1", "Healing", true)

	result, err := e.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if result.Processed != 1 || result.Errors != 0 {
		t.Errorf("result = %+v", result)
	}

	arch, _ := store.Load()
	v := arch.Videos[0]
	if !v.HasTranscript || !v.HasSummary {
		t.Errorf("flags = %v/%v after backfill", v.HasTranscript, v.HasSummary)
	}
	if _, ok := arch.TranscriptIndex.Transcripts["Healing_v1"]; !ok {
		t.Error("transcript index entry missing after backfill")
	}
	if len(arch.Keywords) != 3 {
		t.Errorf("keyword index has %d entries, want 3 aliases", len(arch.Keywords))
	}
}

func TestBackfill_SkipsVideosWithoutArtifact(t *testing.T) {
	dr := &fakeDeriver{}
	e, store := newTestEngine(t, &fakeSource{}, &fakeDownloader{}, dr)
	seedArchivedVideo(t, store, "v1", "NoFile", false)

	result, err := e.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if result.Processed != 0 || dr.calls != 0 {
		t.Errorf("result = %+v, deriver calls = %d", result, dr.calls)
	}
}

func TestBackfill_EmptyDerivationRepeatable(t *testing.T) {
	dr := &fakeDeriver{empty: true}
	e, store := newTestEngine(t, &fakeSource{}, &fakeDownloader{}, dr)
	seedArchivedVideo(t, store, "v1", "Silent", true)

	for i := range 2 {
		result, err := e.Backfill(context.Background())
		if err != nil {
			t.Fatalf("Backfill run %d: %v", i+1, err)
		}
		if result.Processed != 1 || result.Errors != 0 {
			t.Errorf("run %d result = %+v", i+1, result)
		}

		arch, _ := store.Load()
		if arch.Videos[0].HasTranscript || arch.Videos[0].HasSummary {
			t.Errorf("run %d set flags despite empty derivation", i+1)
		}
	}
	if dr.calls != 2 {
		t.Errorf("deriver calls = %d, want eligible again on second pass", dr.calls)
	}
}

func TestBackfill_DerivationErrorCounted(t *testing.T) {
	dr := &fakeDeriver{failIDs: map[string]bool{"Broken": true}}
	e, store := newTestEngine(t, &fakeSource{}, &fakeDownloader{}, dr)
	seedArchivedVideo(t, store, "v1", "Broken", true)

	result, err := e.Backfill(context.Background())
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if result.Processed != 0 || result.Errors != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestRefreshMetadata_UpdatesCounters(t *testing.T) {
	src := &fakeSource{stats: map[string]youtube.Statistics{
		"v1": {ViewCount: 500, LikeCount: 42, CommentCount: 7},
	}}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})
	seedArchivedVideo(t, store, "v1", "First", false)

	result, err := e.RefreshMetadata(context.Background())
	if err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}
	if result.Updated != 1 || result.Errors != 0 {
		t.Errorf("result = %+v", result)
	}

	arch, _ := store.Load()
	v := arch.Videos[0]
	if v.ViewCount != 500 || v.LikeCount != 42 || v.CommentCount != 7 {
		t.Errorf("counters = %d/%d/%d", v.ViewCount, v.LikeCount, v.CommentCount)
	}
	if v.ScrapedAt.IsZero() {
		t.Error("scraped_at not stamped")
	}
}

func TestRefreshMetadata_Batching(t *testing.T) {
	src := &fakeSource{stats: map[string]youtube.Statistics{}}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	arch, _ := store.Load()
	for i := range 120 {
		id := fmt.Sprintf("v%03d", i)
		arch.MergeProcessed(archive.Video{VideoID: id, Title: id}, nil, "", nil)
		src.stats[id] = youtube.Statistics{ViewCount: int64(i)}
	}
	if err := store.Save(arch); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := e.RefreshMetadata(context.Background())
	if err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}
	if result.Updated != 120 {
		t.Errorf("updated = %d, want 120", result.Updated)
	}
	if len(src.statsCalls) != 3 {
		t.Fatalf("stats calls = %d, want 3 batches", len(src.statsCalls))
	}
	for i, batch := range src.statsCalls {
		if len(batch) > youtube.StatsBatchSize {
			t.Errorf("batch %d has %d ids, exceeds limit", i, len(batch))
		}
	}
}

func TestRefreshMetadata_BatchFailureIsolation(t *testing.T) {
	src := &fakeSource{
		stats:    map[string]youtube.Statistics{},
		statsErr: map[int]error{0: errors.New("batch failed")},
	}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	arch, _ := store.Load()
	for i := range 60 {
		id := fmt.Sprintf("v%03d", i)
		arch.MergeProcessed(archive.Video{VideoID: id, Title: id, ViewCount: 1}, nil, "", nil)
		src.stats[id] = youtube.Statistics{ViewCount: 999}
	}
	if err := store.Save(arch); err != nil {
		t.Fatalf("Save: %v", err)
	}

	result, err := e.RefreshMetadata(context.Background())
	if err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}
	if result.Updated != 10 || result.Errors != 1 {
		t.Errorf("result = %+v, want second batch updated only", result)
	}

	reloaded, _ := store.Load()
	for _, v := range reloaded.Videos[:50] {
		if v.ViewCount != 1 {
			t.Errorf("video %s in failed batch was changed: %d", v.VideoID, v.ViewCount)
			break
		}
	}
}
