package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/johnwmail/npaste/models"
)

// FilesystemStore keeps one <id>.json file per paste under dataDir
type FilesystemStore struct {
	dataDir string
	mu      sync.Mutex
}

// NewFilesystemStore creates dataDir if needed
func NewFilesystemStore(dataDir string) (*FilesystemStore, error) {
	if dataDir == "" {
		return nil, errors.New("filesystem store requires a data directory")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FilesystemStore{dataDir: dataDir}, nil
}

func (s *FilesystemStore) path(id string) (string, bool) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", false
	}
	return filepath.Join(s.dataDir, id+".json"), true
}

func (s *FilesystemStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dataDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dataDir)
	}
	return nil
}

func (s *FilesystemStore) Create(ctx context.Context, paste *models.Paste) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := s.path(paste.ID)
	if !ok {
		return fmt.Errorf("invalid paste id %q", paste.ID)
	}
	data, err := json.MarshalIndent(paste, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create %s: %w", paste.ID, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", paste.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("failed to write %s: %w", paste.ID, err)
	}
	return nil
}

func (s *FilesystemStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// read loads a record; caller holds mu
func (s *FilesystemStore) read(id string) (*models.Paste, error) {
	p, ok := s.path(id)
	if !ok {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	var paste models.Paste
	if err := json.Unmarshal(data, &paste); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", id, err)
	}
	return &paste, nil
}

// write replaces a record through a temp file so readers never see a partial
// document; caller holds mu
func (s *FilesystemStore) write(paste *models.Paste) error {
	p, ok := s.path(paste.ID)
	if !ok {
		return fmt.Errorf("invalid paste id %q", paste.ID)
	}
	data, err := json.MarshalIndent(paste, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dataDir, paste.ID+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FilesystemStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, ok := s.path(id)
	if !ok {
		return false, nil
	}
	_, err := os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FilesystemStore) List(ctx context.Context) ([]*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Paste, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		paste, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, paste)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FilesystemStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := s.path(id)
	if !ok {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

func (s *FilesystemStore) RecordView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	paste, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if !paste.IsAvailable(now) {
		return nil, ErrUnavailable
	}
	paste.ViewsCount++
	if err := s.write(paste); err != nil {
		return nil, fmt.Errorf("failed to record view for %s: %w", id, err)
	}
	return paste, nil
}

func (s *FilesystemStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	pastes, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, paste := range pastes {
		if !paste.IsExpired(now) {
			continue
		}
		p, _ := s.path(paste.ID)
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *FilesystemStore) Close() error {
	return nil
}
