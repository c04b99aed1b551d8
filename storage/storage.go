// Package storage persists board state through the single backing
// markdown file. The file is the canonical store: reads parse it
// whole, writes replace it atomically.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"meticulous-api/domain"
	"meticulous-api/markdown"
)

// FileStore is the persistence gateway for one board file. Writes go
// through a temp sibling plus rename, so no concurrent reader (the
// poll loop, Obsidian's own watcher) ever observes a half-written
// file.
type FileStore struct {
	path   string
	logger *log.Logger
}

// NewFileStore creates a gateway for the board file at path.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Read parses the whole file and returns the board together with the
// file's modification time. A missing file surfaces os.ErrNotExist so
// the caller can bootstrap a fresh board instead of failing.
func (s *FileStore) Read(ctx context.Context) (domain.Board, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return domain.Board{}, time.Time{}, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Board{}, time.Time{}, fmt.Errorf("read board file: %w", err)
	}
	mtime, err := s.ModTime()
	if err != nil {
		return domain.Board{}, time.Time{}, err
	}
	return markdown.Parse(string(data)), mtime, nil
}

// Write serializes the board and commits it atomically: write to a
// temp file in the same directory, fsync, rename over the target,
// fsync the directory. A crash mid-write leaves either the old or the
// new content, never a truncated file.
func (s *FileStore) Write(ctx context.Context, board domain.Board) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return time.Time{}, fmt.Errorf("create board dir: %w", err)
	}
	mtime, err := writeAtomic(dir, s.path, markdown.Serialize(board))
	if err != nil {
		return time.Time{}, fmt.Errorf("write board file: %w", err)
	}
	s.logger.WithFields(log.Fields{"path": s.path, "cards": board.CardCount()}).Debug("board written")
	return mtime, nil
}

// ModTime returns the file's last-modified time, wrapping
// os.ErrNotExist when the file is gone.
func (s *FileStore) ModTime() (time.Time, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat board file: %w", err)
	}
	return fi.ModTime(), nil
}

// Exists reports whether the backing file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// writeAtomic commits content to path via a temp sibling and rename,
// returning the resulting modification time.
func writeAtomic(dir, path, content string) (time.Time, error) {
	tmp, err := os.CreateTemp(dir, ".board-*.tmp")
	if err != nil {
		return time.Time{}, err
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		return time.Time{}, err
	}
	if err := tmp.Sync(); err != nil {
		return time.Time{}, err
	}
	if err := tmp.Close(); err != nil {
		return time.Time{}, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return time.Time{}, err
	}
	committed = true
	if err := syncDir(dir); err != nil {
		return time.Time{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	defer dir.Close()
	return dir.Sync()
}
