// Package watch keeps an "am I authenticated" signal synchronized with the
// session store. Store mutations push updates immediately; a coarse periodic
// re-read covers mutations made outside this process, so the signal is never
// stale by more than the configured interval.
package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

const defaultInterval = 5 * time.Second

type subscriber struct {
	id uuid.UUID
	fn func(authenticated bool)
}

type Watcher struct {
	store    session.Store
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	authenticated bool
	subs          []subscriber
	cancelStore   func()
}

func New(logger *slog.Logger, store session.Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultInterval
	}
	w := &Watcher{
		store:    store,
		interval: interval,
		logger:   logger.WithGroup("session_watcher"),
	}
	_, ok := store.Get()
	w.authenticated = ok
	w.cancelStore = store.Watch(func(_ models.Session, ok bool) {
		w.apply(ok)
	})
	return w
}

// Close detaches the watcher from the store's change notifications.
func (w *Watcher) Close() {
	w.cancelStore()
}

// Authenticated returns the last derived signal.
func (w *Watcher) Authenticated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authenticated
}

// Subscribe registers fn for signal transitions. fn fires only when the
// derived value actually changes.
func (w *Watcher) Subscribe(fn func(authenticated bool)) uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := uuid.New()
	w.subs = append(w.subs, subscriber{id: id, fn: fn})
	return id
}

func (w *Watcher) Unsubscribe(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.subs {
		if s.id == id {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}

// Refresh re-derives the signal from the store immediately. Shells call this
// on navigation events.
func (w *Watcher) Refresh() bool {
	_, ok := w.store.Get()
	w.apply(ok)
	return ok
}

// Run drives the periodic re-derive until ctx is cancelled. Store change
// notifications flow regardless; the timer only covers mutations the store
// cannot push, such as another process rewriting the shared session file.
func (w *Watcher) Run(ctx context.Context) {
	w.Refresh()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.Refresh()
		case <-ctx.Done():
			w.logger.Debug("Session watcher stopped")
			return
		}
	}
}

func (w *Watcher) apply(authenticated bool) {
	w.mu.Lock()
	if w.authenticated == authenticated {
		w.mu.Unlock()
		return
	}
	w.authenticated = authenticated
	fns := make([]func(bool), len(w.subs))
	for i, s := range w.subs {
		fns[i] = s.fn
	}
	w.mu.Unlock()

	w.logger.Info("Authentication state changed", "authenticated", authenticated)
	for _, fn := range fns {
		fn(authenticated)
	}
}
