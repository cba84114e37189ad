package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hangarlabs/hangar/models"
)

// FileStore persists the session as a small JSON file shared by every
// process of the same user, which is the cross-tab storage medium. In-process
// mutations notify watchers synchronously; mutations made by another process
// are detected by comparing the file's modification time on the next read,
// so cross-process propagation is eventual, not synchronous.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	current  models.Session
	ok       bool
	modTime  time.Time
	watchers []watcher
}

var _ Store = &FileStore{}

func NewFileStore(logger *slog.Logger, path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory for %s: %w", path, err)
	}
	f := &FileStore{
		path:   path,
		logger: logger.WithGroup("session_store"),
	}
	f.mu.Lock()
	f.reloadLocked()
	f.mu.Unlock()
	return f, nil
}

func (f *FileStore) Get() (models.Session, bool) {
	f.mu.Lock()
	changed := f.refreshLocked()
	s, ok := f.current, f.ok
	var fns []WatchFunc
	if changed {
		fns = f.watchersLocked()
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(s, ok)
	}
	return s, ok
}

func (f *FileStore) Set(s models.Session) error {
	if err := validate(s); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	f.mu.Lock()
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("failed to write session file %s: %w", f.path, err)
	}
	if info, err := os.Stat(f.path); err == nil {
		f.modTime = info.ModTime()
	}
	f.current = s
	f.ok = true
	fns := f.watchersLocked()
	f.mu.Unlock()

	f.logger.Debug("Session written", "character_id", s.CharacterID, "character_name", s.CharacterName)
	for _, fn := range fns {
		fn(s, true)
	}
	return nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.mu.Unlock()
		return fmt.Errorf("failed to remove session file %s: %w", f.path, err)
	}
	f.current = models.Session{}
	f.ok = false
	f.modTime = time.Time{}
	fns := f.watchersLocked()
	f.mu.Unlock()

	f.logger.Debug("Session cleared")
	for _, fn := range fns {
		fn(models.Session{}, false)
	}
	return nil
}

func (f *FileStore) Watch(fn WatchFunc) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.watchers = append(f.watchers, watcher{id: id, fn: fn})
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, w := range f.watchers {
			if w.id == id {
				f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
				return
			}
		}
	}
}

// refreshLocked re-reads the file when its modification time differs from
// the last observed one. Returns true when the visible session changed.
func (f *FileStore) refreshLocked() bool {
	info, err := os.Stat(f.path)
	if err != nil {
		if f.ok {
			// Removed by another process.
			f.current = models.Session{}
			f.ok = false
			f.modTime = time.Time{}
			return true
		}
		return false
	}
	if info.ModTime().Equal(f.modTime) {
		return false
	}
	before, beforeOK := f.current, f.ok
	f.reloadLocked()
	return f.ok != beforeOK || f.current != before
}

func (f *FileStore) reloadLocked() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		f.current = models.Session{}
		f.ok = false
		f.modTime = time.Time{}
		return
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		f.logger.Error("Session file is unreadable, treating as logged out", "path", f.path, "error", err)
		f.current = models.Session{}
		f.ok = false
		return
	}
	if info, statErr := os.Stat(f.path); statErr == nil {
		f.modTime = info.ModTime()
	}
	if s.Token == "" {
		// Absence of the token is the definition of logged out.
		f.current = models.Session{}
		f.ok = false
		return
	}
	f.current = s
	f.ok = true
}

func (f *FileStore) watchersLocked() []WatchFunc {
	fns := make([]WatchFunc, len(f.watchers))
	for i, w := range f.watchers {
		fns[i] = w.fn
	}
	return fns
}
