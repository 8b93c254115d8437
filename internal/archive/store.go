package archive

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const lockTimeout = 5 * time.Second

// Collection file names, fixed by the archive's external interface.
const (
	videosFile          = "videos.json"
	commentsFile        = "comments.json"
	keywordsFile        = "keywords.json"
	transcriptIndexFile = "transcript_index.json"
	videoMappingFile    = "video-mapping.json"
)

// Store persists an Archive under a root directory as five pretty-printed
// JSON documents, written together once per cycle and preceded by a
// timestamped backup of the previous versions. An advisory flock on the
// root guards against a second process mutating the same archive.
type Store struct {
	root string
	lock *FileLock
}

// NewStore creates a store rooted at dir, creating the videos/ and logs/
// subdirectories if needed and acquiring the archive lock.
func NewStore(dir string) (*Store, error) {
	for _, sub := range []string{"videos", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, &StoreError{Op: "write", File: filepath.Join(dir, sub), Err: err}
		}
	}

	s := &Store{
		root: dir,
		lock: NewFileLock(filepath.Join(dir, "archive")),
	}
	if err := s.lock.Lock(lockTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the archive lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// Root returns the archive root directory.
func (s *Store) Root() string { return s.root }

// VideosDir returns the directory holding downloaded media, transcript
// artifacts, and per-video sidecar files.
func (s *Store) VideosDir() string { return filepath.Join(s.root, "videos") }

// Load reads the five collections into a fresh Archive. Missing files
// yield empty defaults, never an error, so a first run starts from an
// empty archive. A file that exists but cannot be parsed is an error.
func (s *Store) Load() (*Archive, error) {
	a := New()

	if err := s.loadJSON(videosFile, &a.Videos); err != nil {
		return nil, err
	}
	if err := s.loadJSON(commentsFile, &a.Comments); err != nil {
		return nil, err
	}
	if err := s.loadJSON(keywordsFile, &a.Keywords); err != nil {
		return nil, err
	}
	if err := s.loadJSON(transcriptIndexFile, &a.TranscriptIndex); err != nil {
		return nil, err
	}
	if err := s.loadJSON(videoMappingFile, &a.VideoMapping); err != nil {
		return nil, err
	}

	// Maps inside the index may be nil after decoding an older file.
	if a.TranscriptIndex.Metadata == nil {
		a.TranscriptIndex.Metadata = map[string]any{}
	}
	if a.TranscriptIndex.Transcripts == nil {
		a.TranscriptIndex.Transcripts = map[string]TranscriptEntry{}
	}
	if a.TranscriptIndex.WordIndex == nil {
		a.TranscriptIndex.WordIndex = map[string][]string{}
	}

	slog.Debug("archive loaded",
		"videos", len(a.Videos),
		"comments", len(a.Comments),
		"keywords", len(a.Keywords),
		"transcripts", len(a.TranscriptIndex.Transcripts))
	return a, nil
}

func (s *Store) loadJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &StoreError{Op: "read", File: name, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &StoreError{Op: "read", File: name, Err: ErrCorrupt}
	}
	return nil
}

// Save writes all five collections atomically, after snapshotting the
// current files into backups/<timestamp>/. The backup holds the files
// exactly as they were before this save; if any write fails the previous
// backup remains the last good state.
func (s *Store) Save(a *Archive) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	backupDir, err := s.backup()
	if err != nil {
		return err
	}

	files := []struct {
		name string
		v    any
	}{
		{videosFile, a.Videos},
		{commentsFile, a.Comments},
		{keywordsFile, a.Keywords},
		{transcriptIndexFile, a.TranscriptIndex},
		{videoMappingFile, a.VideoMapping},
	}
	for _, f := range files {
		if err := s.saveJSON(f.name, f.v); err != nil {
			return err
		}
	}

	slog.Info("archive saved", "backup", backupDir)
	return nil
}

func (s *Store) saveJSON(name string, v any) error {
	w, err := NewAtomicWriter(filepath.Join(s.root, name))
	if err != nil {
		return &StoreError{Op: "write", File: name, Err: err}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		w.Abort()
		return &StoreError{Op: "write", File: name, Err: err}
	}
	if err := w.Commit(); err != nil {
		return &StoreError{Op: "write", File: name, Err: err}
	}
	return nil
}

// backup copies the existing collection files into a timestamped directory
// under backups/. Files that do not exist yet are skipped.
func (s *Store) backup() (string, error) {
	dir := filepath.Join(s.root, "backups", time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &StoreError{Op: "backup", File: dir, Err: err}
	}

	names := []string{videosFile, commentsFile, keywordsFile, transcriptIndexFile, videoMappingFile}
	for _, name := range names {
		src := filepath.Join(s.root, name)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, name)); err != nil {
			return "", &StoreError{Op: "backup", File: name, Err: err}
		}
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// FindTranscriptFile returns the path of a downloaded VTT transcript
// artifact for the video id, or "" if none exists. Used by the backfill
// pass to find videos with raw transcripts but no derived content.
func (s *Store) FindTranscriptFile(videoID string) string {
	matches, err := filepath.Glob(filepath.Join(s.VideosDir(), "*"+videoID+"*.vtt"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}
