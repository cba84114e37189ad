package session

import (
	"errors"

	"github.com/hangarlabs/hangar/models"
)

var (
	// ErrPartialSession is returned when a mutation would leave the token and
	// character id in disagreement. Sessions are written whole or not at all.
	ErrPartialSession = errors.New("session token and character id must be set together")
)

// WatchFunc receives the full session after every observed mutation. ok is
// false when the store is empty (logged out).
type WatchFunc func(s models.Session, ok bool)

// Store holds the current identity's credential and selection. All mutations
// are total replacements so no reader can observe a half-written session.
type Store interface {
	// Get returns the current session, ok=false when logged out.
	Get() (models.Session, bool)

	// Set replaces the session. The token and character id must both be set.
	Set(s models.Session) error

	// Clear removes the session entirely.
	Clear() error

	// Watch registers fn for change notifications. The returned cancel
	// function removes the registration. Notifications fire after the
	// mutation is visible to Get.
	Watch(fn WatchFunc) (cancel func())
}

func validate(s models.Session) error {
	if s.Token == "" || s.CharacterID == 0 {
		return ErrPartialSession
	}
	return nil
}
