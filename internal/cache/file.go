package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis"
	apperrors "github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/pkg/errors"
)

// FileStore keeps the table in one JSON file.
type FileStore struct {
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewFileStore stores <dataDir>/<name>.json. An empty dataDir resolves to
// the data directory next to the running executable.
func NewFileStore(dataDir, name string) (*FileStore, error) {
	if dataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = dir
	}
	if name == "" {
		name = "analysis"
	}
	return &FileStore{
		path:   filepath.Join(dataDir, name+".json"),
		now:    time.Now,
		logger: slog.Default().With("component", "file-store"),
	}, nil
}

// DefaultDataDir returns <executable dir>/data.
func DefaultDataDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "data"), nil
}

func (s *FileStore) Location() string {
	return "file://" + s.path
}

// Path returns the artifact path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", s.path, err)
	}
	return info.Size() > 0, nil
}

func (s *FileStore) Read(ctx context.Context) (analysis.Table, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return decode(data)
}

// Write encodes the table into a temporary file in the same directory, syncs
// it and renames it over the artifact.
func (s *FileStore) Write(ctx context.Context, table analysis.Table) error {
	data, err := encode(table)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	s.logger.Info("artifact written", "path", s.path, "entries", len(table), "bytes", len(data))
	return nil
}

func (s *FileStore) Age(ctx context.Context) (time.Duration, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, apperrors.ErrCacheNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", s.path, err)
	}
	age := s.now().Sub(info.ModTime())
	if age < 0 {
		age = 0
	}
	return age, nil
}
