// Package engine reconciles a channel's remote listing against the local
// archive: it discovers new videos, drives the per-item pipeline under
// bounded concurrency, and persists the mutated archive once per cycle.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"ytarchive/internal/archive"
	"ytarchive/internal/youtube"
)

// Source lists remote channel content and per-video data.
type Source interface {
	ListChannelVideos(ctx context.Context, channelID string) ([]youtube.VideoInfo, error)
	FetchComments(ctx context.Context, videoID string) ([]youtube.Comment, error)
	RefreshStatistics(ctx context.Context, ids []string) (map[string]youtube.Statistics, error)
}

// MediaDownloader fetches a video's media and transcript artifacts into a
// directory, returning the resulting file names. An empty transcript name
// means no captions exist.
type MediaDownloader interface {
	Download(ctx context.Context, videoID, destDir string) (videoFile, transcriptFile string, err error)
}

// Deriver turns a raw VTT transcript artifact into clean transcript text,
// a summary, and keywords.
type Deriver interface {
	Derive(ctx context.Context, title, vttPath string) (transcript, summary string, keywords []string, err error)
}

// Precheck is an optional cheap new-upload probe consulted before the full
// remote listing.
type Precheck interface {
	LatestVideoIDs(ctx context.Context, channelID string) ([]string, error)
}

// Engine phases, readable via Status.
const (
	PhaseIdle     = "idle"
	PhaseChecking = "checking"
)

// CycleResult is the aggregate report of one reconciliation cycle.
type CycleResult struct {
	NewVideos int
	Processed int
	Errors    int
}

// Config carries the engine's tunables.
type Config struct {
	ChannelID     string
	MaxConcurrent int
	Precheck      Precheck
	Logger        *slog.Logger
}

// Engine coordinates store, source, downloader, and deriver for one channel.
type Engine struct {
	store      *archive.Store
	source     Source
	downloader MediaDownloader
	deriver    Deriver
	precheck   Precheck

	channelID     string
	maxConcurrent int
	logger        *slog.Logger

	phase atomic.Value
}

// New creates an engine. MaxConcurrent defaults to 3 when unset.
func New(store *archive.Store, source Source, downloader MediaDownloader, deriver Deriver, cfg Config) *Engine {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		store:         store,
		source:        source,
		downloader:    downloader,
		deriver:       deriver,
		precheck:      cfg.Precheck,
		channelID:     cfg.ChannelID,
		maxConcurrent: cfg.MaxConcurrent,
		logger:        cfg.Logger,
	}
	e.phase.Store(PhaseIdle)
	return e
}

// Status returns the current phase: "idle", "checking", or
// "processing:<id>". Advisory only.
func (e *Engine) Status() string {
	return e.phase.Load().(string)
}

func (e *Engine) setPhase(p string) {
	e.phase.Store(p)
}

// RunCycle performs one full reconciliation: load the archive, list the
// remote channel, process the set difference under bounded concurrency, and
// save once if at least one item was attempted. Per-item failures are
// counted, not propagated; load, listing, and save failures fail the cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	e.setPhase(PhaseChecking)
	defer e.setPhase(PhaseIdle)

	arch, err := e.store.Load()
	if err != nil {
		return CycleResult{}, fmt.Errorf("load archive: %w", err)
	}
	known := arch.KnownIDs()

	if e.precheck != nil && e.allKnown(ctx, known) {
		e.logger.Debug("feed precheck found no new uploads", "channel", e.channelID)
		return CycleResult{}, nil
	}

	remote, err := e.source.ListChannelVideos(ctx, e.channelID)
	if err != nil {
		return CycleResult{}, fmt.Errorf("list channel %s: %w", e.channelID, err)
	}

	var newItems []youtube.VideoInfo
	for _, v := range remote {
		if _, ok := known[v.ID]; !ok {
			newItems = append(newItems, v)
		}
	}
	e.logger.Info("reconciliation diff computed",
		"remote", len(remote), "archived", len(known), "new", len(newItems))

	if len(newItems) == 0 {
		return CycleResult{}, nil
	}

	result := CycleResult{NewVideos: len(newItems)}
	syncID := uuid.NewString()

	var (
		wg        sync.WaitGroup
		processed atomic.Int64
	)
	work := make(chan youtube.VideoInfo)
	workers := min(e.maxConcurrent, len(newItems))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for info := range work {
				if e.processVideo(ctx, arch, info, syncID) {
					processed.Add(1)
				}
			}
		}()
	}
	for _, info := range newItems {
		work <- info
	}
	close(work)
	wg.Wait()

	result.Processed = int(processed.Load())
	result.Errors = result.NewVideos - result.Processed

	if err := e.store.Save(arch); err != nil {
		return result, fmt.Errorf("save archive: %w", err)
	}
	e.logger.Info("cycle complete",
		"new", result.NewVideos, "processed", result.Processed, "errors", result.Errors)
	return result, nil
}

// allKnown reports whether every id in the channel feed is already archived.
// Any feed error or unknown id forces the full listing, so a stale or
// truncated feed can never cause a missed video.
func (e *Engine) allKnown(ctx context.Context, known map[string]struct{}) bool {
	ids, err := e.precheck.LatestVideoIDs(ctx, e.channelID)
	if err != nil || len(ids) == 0 {
		if err != nil {
			e.logger.Debug("feed precheck failed, falling back to full listing", "error", err)
		}
		return false
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return false
		}
	}
	return true
}
