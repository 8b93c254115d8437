package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"ytarchive/internal/archive"
	"ytarchive/internal/config"
	"ytarchive/internal/engine"
	"ytarchive/internal/openai"
	"ytarchive/internal/scheduler"
	"ytarchive/internal/youtube"
)

func main() {
	cfg, rest, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(rest) < 1 {
		printUsage()
		os.Exit(1)
	}
	command := rest[0]

	setupLogger(cfg.Debug)

	switch command {
	case "help":
		printUsage()
	case "status":
		cmdStatus(cfg)
	case "check", "refresh", "backfill", "daemon":
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		run(command, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytarchive - YouTube channel archiver

Usage:
  ytarchive [options] check     Run one reconciliation cycle and exit
  ytarchive [options] refresh   Refresh view/like/comment counts for archived videos
  ytarchive [options] backfill  Derive missing transcripts/summaries from artifacts on disk
  ytarchive [options] daemon    Run a cycle every day at the configured check time
  ytarchive [options] status    Print archive statistics
  ytarchive help                Show this help message

Run 'ytarchive --help' for the full option list.
`)
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// run wires the collaborators and executes one mutating command.
func run(command string, cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := archive.NewStore(cfg.ArchiveDir)
	if err != nil {
		fatal("open archive", err)
	}
	defer store.Close()

	source, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey)
	if err != nil {
		fatal("youtube client", err)
	}

	downloader := youtube.NewDownloader()
	downloader.Path = cfg.YtdlpPath
	downloader.Quality = cfg.Quality
	downloader.Timeout = time.Duration(cfg.DownloadTimeout) * time.Second

	deriver, err := openai.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		fatal("openai client", err)
	}
	deriver.Model = cfg.OpenAIModel

	var precheck engine.Precheck
	if cfg.RSSPrecheck {
		precheck = youtube.NewRSSLister()
	}

	eng := engine.New(store, source, downloader, deriver, engine.Config{
		ChannelID:     cfg.ChannelID,
		MaxConcurrent: cfg.MaxConcurrent,
		Precheck:      precheck,
	})

	switch command {
	case "check":
		result, err := eng.RunCycle(ctx)
		if err != nil {
			fatal("cycle", err)
		}
		fmt.Printf("New: %d  Processed: %d  Errors: %d\n",
			result.NewVideos, result.Processed, result.Errors)
	case "refresh":
		result, err := eng.RefreshMetadata(ctx)
		if err != nil {
			fatal("refresh", err)
		}
		fmt.Printf("Updated: %d  Errors: %d\n", result.Updated, result.Errors)
	case "backfill":
		result, err := eng.Backfill(ctx)
		if err != nil {
			fatal("backfill", err)
		}
		fmt.Printf("Processed: %d  Errors: %d\n", result.Processed, result.Errors)
	case "daemon":
		sched, err := scheduler.New(cfg.CheckTime, slog.Default())
		if err != nil {
			fatal("scheduler", err)
		}
		err = sched.Run(ctx, func(ctx context.Context) error {
			_, err := eng.RunCycle(ctx)
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			fatal("daemon", err)
		}
	}
}

func cmdStatus(cfg *config.Config) {
	store, err := archive.NewStore(cfg.ArchiveDir)
	if err != nil {
		fatal("open archive", err)
	}
	defer store.Close()

	arch, err := store.Load()
	if err != nil {
		fatal("load archive", err)
	}
	stats := arch.Stats()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Videos:\t%d\n", stats.TotalVideos)
	fmt.Fprintf(w, "Comments:\t%d\n", stats.TotalComments)
	fmt.Fprintf(w, "With transcripts:\t%d\n", stats.WithTranscripts)
	fmt.Fprintf(w, "With summaries:\t%d\n", stats.WithSummaries)
	fmt.Fprintf(w, "Keyword entries:\t%d\n", stats.KeywordEntries)
	if !stats.LastScrapedAt.IsZero() {
		fmt.Fprintf(w, "Last scraped:\t%s\n", stats.LastScrapedAt.Format(time.RFC3339))
	}
	w.Flush()
}

func fatal(op string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", op, err)
	os.Exit(1)
}
