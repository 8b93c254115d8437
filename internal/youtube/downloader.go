package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ytarchive/internal/retry"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 10 * time.Minute
	defaultQuality      = "best[height<=1080]"
)

// Downloader fetches a video's media file and English transcript (VTT)
// using yt-dlp as a subprocess.
type Downloader struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// Timeout is the maximum time to wait for one download.
	Timeout time.Duration
	// Quality is the yt-dlp format selector.
	Quality string
	// RetryConfig holds retry behavior configuration.
	RetryConfig retry.Config
}

// NewDownloader creates a downloader with defaults.
func NewDownloader() *Downloader {
	return &Downloader{
		Path:        defaultYtdlpPath,
		Timeout:     defaultYtdlpTimeout,
		Quality:     defaultQuality,
		RetryConfig: retry.DefaultConfig(),
	}
}

// Download fetches the video and its transcript into destDir and returns
// the resulting file names (not paths). The transcript name is empty when
// no captions exist; a missing media file is an error.
func (d *Downloader) Download(ctx context.Context, videoID, destDir string) (videoFile, transcriptFile string, err error) {
	if err := d.checkInstalled(ctx); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", "", &SourceError{Op: "download", ID: videoID, Err: err}
	}

	err = retry.Do(ctx, d.RetryConfig, downloadErrorClassifier, func(ctx context.Context) error {
		return d.run(ctx, videoID, destDir)
	})
	if err != nil {
		return "", "", &SourceError{Op: "download", ID: videoID, Err: err}
	}

	videoFile, transcriptFile = findArtifacts(destDir, videoID)
	if videoFile == "" {
		return "", "", &SourceError{Op: "download", ID: videoID, Err: errors.New("no media file produced")}
	}
	return videoFile, transcriptFile, nil
}

func (d *Downloader) run(ctx context.Context, videoID, destDir string) error {
	quality := d.Quality
	if quality == "" {
		quality = defaultQuality
	}
	args := []string{
		"-f", quality,
		"-o", filepath.Join(destDir, "%(title)s_%(id)s.%(ext)s"),
		"--write-subs",
		"--write-auto-subs",
		"--sub-format", "vtt",
		"--sub-langs", "en",
		"--no-warnings",
		"https://www.youtube.com/watch?v=" + videoID,
	}

	timeout := d.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, d.path(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return ErrNetworkTimeout
		}
		msg := stderr.String()
		if strings.Contains(msg, "Private video") ||
			strings.Contains(msg, "unavailable") ||
			strings.Contains(msg, "removed") {
			return ErrVideoUnavailable
		}
		return fmt.Errorf("yt-dlp failed: %w: %s", err, msg)
	}
	return nil
}

// findArtifacts scans destDir for the downloaded media and English VTT
// transcript belonging to the video id.
func findArtifacts(destDir, videoID string) (videoFile, transcriptFile string) {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return "", ""
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.Contains(name, videoID) {
			continue
		}
		switch {
		case strings.HasSuffix(name, ".mp4") || strings.HasSuffix(name, ".webm") || strings.HasSuffix(name, ".mkv"):
			videoFile = name
		case strings.HasSuffix(name, ".vtt") && strings.Contains(name, ".en"):
			transcriptFile = name
		}
	}
	return videoFile, transcriptFile
}

// checkInstalled verifies that yt-dlp is available.
func (d *Downloader) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

func (d *Downloader) path() string {
	if d.Path != "" {
		return d.Path
	}
	return defaultYtdlpPath
}

// downloadErrorClassifier determines if a yt-dlp error is retryable.
func downloadErrorClassifier(err error) bool {
	if errors.Is(err, ErrVideoUnavailable) || errors.Is(err, ErrYtdlpNotInstalled) {
		return false
	}
	return retry.Transient(err)
}
