package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ytarchive/internal/archive"
	"ytarchive/internal/youtube"
)

// fakeSource serves a canned listing, comments, and statistics.
type fakeSource struct {
	mu sync.Mutex

	videos      []youtube.VideoInfo
	listErr     error
	comments    map[string][]youtube.Comment
	commentsErr map[string]error
	stats       map[string]youtube.Statistics
	statsErr    map[int]error // keyed by call index

	statsCalls [][]string
}

func (s *fakeSource) ListChannelVideos(ctx context.Context, channelID string) ([]youtube.VideoInfo, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.videos, nil
}

func (s *fakeSource) FetchComments(ctx context.Context, videoID string) ([]youtube.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commentsErr[videoID]; err != nil {
		return nil, err
	}
	return s.comments[videoID], nil
}

func (s *fakeSource) RefreshStatistics(ctx context.Context, ids []string) (map[string]youtube.Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := len(s.statsCalls)
	s.statsCalls = append(s.statsCalls, ids)
	if err := s.statsErr[call]; err != nil {
		return nil, err
	}
	out := make(map[string]youtube.Statistics, len(ids))
	for _, id := range ids {
		if st, ok := s.stats[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

// fakeDownloader writes real artifact files into destDir.
type fakeDownloader struct {
	mu           sync.Mutex
	failIDs      map[string]bool
	noTranscript map[string]bool
	calls        []string
}

func (d *fakeDownloader) Download(ctx context.Context, videoID, destDir string) (string, string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, videoID)
	d.mu.Unlock()

	if d.failIDs[videoID] {
		return "", "", errors.New("download failed")
	}
	videoFile := videoID + ".mp4"
	if err := os.WriteFile(filepath.Join(destDir, videoFile), []byte("media"), 0o644); err != nil {
		return "", "", err
	}
	if d.noTranscript[videoID] {
		return videoFile, "", nil
	}
	transcriptFile := videoID + ".en.vtt"
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nspoken words for " + videoID + "\n"
	if err := os.WriteFile(filepath.Join(destDir, transcriptFile), []byte(vtt), 0o644); err != nil {
		return "", "", err
	}
	return videoFile, transcriptFile, nil
}

// fakeDeriver returns canned derivation output.
type fakeDeriver struct {
	mu      sync.Mutex
	failIDs map[string]bool // keyed by title
	empty   bool
	calls   int
}

func (d *fakeDeriver) Derive(ctx context.Context, title, vttPath string) (string, string, []string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if d.failIDs[title] {
		return "", "", nil, errors.New("derivation failed")
	}
	if d.empty {
		return "", "", nil, nil
	}
	if _, err := os.Stat(vttPath); err != nil {
		return "", "", nil, err
	}
	return "transcript of " + title, "summary of " + title, []string{"alpha", "beta"}, nil
}

func remoteVideo(id, title string) youtube.VideoInfo {
	return youtube.VideoInfo{
		ID:          id,
		Title:       title,
		PublishedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		ChannelID:   "UCtest",
		ViewCount:   100,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, src *fakeSource, dl *fakeDownloader, dr *fakeDeriver) (*Engine, *archive.Store) {
	t.Helper()
	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	e := New(store, src, dl, dr, Config{
		ChannelID:     "UCtest",
		MaxConcurrent: 2,
		Logger:        quietLogger(),
	})
	return e, store
}

func TestRunCycle_EmptyArchiveProcessesAll(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{
		remoteVideo("v1", "First"),
		remoteVideo("v2", "Second"),
		remoteVideo("v3", "Third"),
	}}
	src.comments = map[string][]youtube.Comment{
		"v1": {{CommentID: "c1", VideoID: "v1", Author: "alice", Text: "nice"}},
	}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.NewVideos != 3 || result.Processed != 3 || result.Errors != 0 {
		t.Errorf("result = %+v", result)
	}

	arch, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(arch.Videos) != 3 {
		t.Fatalf("archive has %d videos, want 3", len(arch.Videos))
	}
	if len(arch.Comments) != 1 {
		t.Errorf("archive has %d comments, want 1", len(arch.Comments))
	}
	for _, v := range arch.Videos {
		if !v.HasTranscript || !v.HasSummary {
			t.Errorf("video %s flags = transcript:%v summary:%v", v.VideoID, v.HasTranscript, v.HasSummary)
		}
		if v.SyncID == "" || v.FilePath == "" || v.AddedToArchive.IsZero() {
			t.Errorf("video %s missing pipeline stamps: %+v", v.VideoID, v)
		}
	}
	if len(arch.VideoMapping) != 3 {
		t.Errorf("mapping has %d entries, want 3", len(arch.VideoMapping))
	}
	if len(arch.Keywords) != 9 {
		t.Errorf("keyword index has %d entries, want 9 (3 aliases per video)", len(arch.Keywords))
	}
}

func TestRunCycle_Idempotent(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "First")}}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	if _, err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("first RunCycle: %v", err)
	}
	before, err := os.Stat(filepath.Join(store.Root(), "videos.json"))
	if err != nil {
		t.Fatalf("stat videos.json: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if result != (CycleResult{}) {
		t.Errorf("second cycle result = %+v, want all zero", result)
	}

	after, err := os.Stat(filepath.Join(store.Root(), "videos.json"))
	if err != nil {
		t.Fatalf("stat videos.json: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("second cycle rewrote videos.json despite empty diff")
	}
}

func TestRunCycle_SetDifference(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{
		remoteVideo("v1", "First"),
		remoteVideo("v2", "Second"),
	}}
	dl := &fakeDownloader{}
	e, _ := newTestEngine(t, src, dl, &fakeDeriver{})

	if _, err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	src.videos = append(src.videos, remoteVideo("v3", "Third"))
	dl.mu.Lock()
	dl.calls = nil
	dl.mu.Unlock()

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.NewVideos != 1 || result.Processed != 1 {
		t.Errorf("result = %+v, want 1 new", result)
	}
	if len(dl.calls) != 1 || dl.calls[0] != "v3" {
		t.Errorf("downloaded %v, want only v3", dl.calls)
	}
}

func TestRunCycle_PartialFailureIsolation(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{
		remoteVideo("v1", "First"),
		remoteVideo("v2", "Second"),
		remoteVideo("v3", "Third"),
	}}
	dl := &fakeDownloader{failIDs: map[string]bool{"v2": true}}
	e, store := newTestEngine(t, src, dl, &fakeDeriver{})

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.NewVideos != 3 || result.Processed != 2 || result.Errors != 1 {
		t.Errorf("result = %+v", result)
	}

	arch, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if arch.HasVideo("v2") {
		t.Error("failed item v2 was merged")
	}
	if !arch.HasVideo("v1") || !arch.HasVideo("v3") {
		t.Error("successful items missing from archive")
	}
}

func TestRunCycle_NoTranscriptPath(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "Silent")}}
	dl := &fakeDownloader{noTranscript: map[string]bool{"v1": true}}
	dr := &fakeDeriver{}
	e, store := newTestEngine(t, src, dl, dr)

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if dr.calls != 0 {
		t.Errorf("deriver called %d times for transcript-less item", dr.calls)
	}

	arch, _ := store.Load()
	v := arch.Videos[0]
	if v.HasTranscript || v.HasSummary {
		t.Errorf("flags = %v/%v, want false/false", v.HasTranscript, v.HasSummary)
	}
	if len(arch.TranscriptIndex.Transcripts) != 0 || len(arch.Keywords) != 0 {
		t.Error("transcript-less item contributed index entries")
	}
}

func TestRunCycle_DerivationFailureFailsItem(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "Broken")}}
	dr := &fakeDeriver{failIDs: map[string]bool{"Broken": true}}
	e, store := newTestEngine(t, src, &fakeDownloader{}, dr)

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Processed != 0 || result.Errors != 1 {
		t.Errorf("result = %+v", result)
	}
	arch, _ := store.Load()
	if arch.HasVideo("v1") {
		t.Error("item with failed derivation was merged")
	}
}

func TestRunCycle_CommentFailureNonFatal(t *testing.T) {
	src := &fakeSource{
		videos:      []youtube.VideoInfo{remoteVideo("v1", "First")},
		commentsErr: map[string]error{"v1": errors.New("comments disabled")},
	}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Processed != 1 || result.Errors != 0 {
		t.Errorf("result = %+v", result)
	}
	arch, _ := store.Load()
	if !arch.HasVideo("v1") || len(arch.Comments) != 0 {
		t.Errorf("want v1 merged with zero comments, got %d comments", len(arch.Comments))
	}
}

func TestRunCycle_ListingFailureFailsCycle(t *testing.T) {
	src := &fakeSource{listErr: errors.New("quota exceeded")}
	e, _ := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	if _, err := e.RunCycle(context.Background()); err == nil {
		t.Error("expected cycle-level error when listing fails")
	}
	if e.Status() != PhaseIdle {
		t.Errorf("phase = %q after failed cycle, want idle", e.Status())
	}
}

func TestRunCycle_WritesSidecars(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "Water: Heals")}}
	e, store := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})

	if _, err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	base := filepath.Join(store.VideosDir(), "Water Heals_v1")
	data, err := os.ReadFile(base + "_transcript.txt")
	if err != nil {
		t.Fatalf("read transcript sidecar: %v", err)
	}
	want := "Video: Water: Heals\n====\n\ntranscript of Water: Heals"
	if string(data) != want {
		t.Errorf("transcript sidecar = %q, want %q", data, want)
	}
	for _, suffix := range []string{"_summary.txt", "_metadata.json"} {
		if _, err := os.Stat(base + suffix); err != nil {
			t.Errorf("missing sidecar %s: %v", suffix, err)
		}
	}
}

type fakePrecheck struct {
	ids  []string
	err  error
	hits int
}

func (p *fakePrecheck) LatestVideoIDs(ctx context.Context, channelID string) ([]string, error) {
	p.hits++
	return p.ids, p.err
}

func TestRunCycle_PrecheckShortCircuit(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "First")}}
	e, _ := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})
	if _, err := e.RunCycle(context.Background()); err != nil {
		t.Fatalf("seed cycle: %v", err)
	}

	pre := &fakePrecheck{ids: []string{"v1"}}
	e.precheck = pre
	src.listErr = errors.New("listing should not be called")

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result != (CycleResult{}) || pre.hits != 1 {
		t.Errorf("result = %+v, precheck hits = %d", result, pre.hits)
	}
}

func TestRunCycle_PrecheckUnknownIDForcesListing(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "First")}}
	e, _ := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})
	e.precheck = &fakePrecheck{ids: []string{"v1"}}

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("result = %+v, want full listing and one processed", result)
	}
}

func TestRunCycle_PrecheckErrorForcesListing(t *testing.T) {
	src := &fakeSource{videos: []youtube.VideoInfo{remoteVideo("v1", "First")}}
	e, _ := newTestEngine(t, src, &fakeDownloader{}, &fakeDeriver{})
	e.precheck = &fakePrecheck{err: errors.New("feed unreachable")}

	result, err := e.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("result = %+v", result)
	}
}
