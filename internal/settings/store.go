package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/starford/serendip/internal/apperr"
	"github.com/starford/serendip/internal/storage"
)

const lockRetry = 25 * time.Millisecond

// Store persists Settings in a YAML file. Readers take a shared lock and
// writers an exclusive one, so the CLI and a running daemon can share the file.
// Within one process calls are serialized by mu, since a flock.Flock holds a
// single lock state per handle.
type Store struct {
	mu   sync.Mutex
	name string
	fs   *storage.FS
	lock *flock.Flock
}

// NewStore returns a store for the settings file at path. The parent
// directory is created if needed; the file itself may not exist yet.
func NewStore(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("settings: resolve path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("settings: mkdir: %w", err)
	}
	fs, err := storage.NewFS(dir)
	if err != nil {
		return nil, err
	}
	return &Store{
		name: filepath.Base(abs),
		fs:   fs,
		lock: flock.New(abs + ".lock"),
	}, nil
}

// Load reads the current settings. A missing file yields Default(). Enumerated
// fields are not checked: an unknown mode selects the default query and any
// step size below 1 counts as 1.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.lock.TryRLockContext(ctx, lockRetry)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: lock: %w", err)
	}
	if !ok {
		return Settings{}, fmt.Errorf("settings: lock not acquired")
	}
	defer s.lock.Unlock() //nolint:errcheck
	return s.read()
}

// Update applies fn to the current settings and writes the result back.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: lock: %w", err)
	}
	if !ok {
		return Settings{}, fmt.Errorf("settings: lock not acquired")
	}
	defer s.lock.Unlock() //nolint:errcheck

	cur, err := s.read()
	if err != nil {
		return Settings{}, err
	}
	prev := cur
	if err := fn(&cur); err != nil {
		return Settings{}, err
	}
	if err := cur.validateChanges(prev); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	data, err := yaml.Marshal(cur)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: encode: %w", err)
	}
	if err := s.fs.Write(s.name, data); err != nil {
		return Settings{}, err
	}
	return cur, nil
}

// SetMode switches randomMode.
func (s *Store) SetMode(ctx context.Context, mode string) (Settings, error) {
	if !ValidMode(mode) {
		return Settings{}, fmt.Errorf("%w: %q", apperr.ErrInvalidMode, mode)
	}
	return s.Update(ctx, func(cur *Settings) error {
		cur.RandomMode = mode
		return nil
	})
}

func (s *Store) read() (Settings, error) {
	cur := Default()
	data, err := s.fs.Read(s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cur, nil
		}
		return Settings{}, err
	}
	if err := yaml.Unmarshal(data, &cur); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", s.name, err)
	}
	return cur, nil
}
