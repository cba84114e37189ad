// Package callback turns an SSO redirect outcome into a populated session.
// It runs exactly once per redirect; everything it needs arrives in the query
// string.
package callback

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

type State string

const (
	StateSuccess     State = "success"
	StateRedirecting State = "redirecting"
	StateFailed      State = "failed"
)

// Outcome is the terminal result of resolving one redirect.
type Outcome struct {
	State  State
	Reason string
}

// ProfileFetcher hydrates the authenticated character before the session is
// declared valid.
type ProfileFetcher interface {
	CharacterProfile(ctx context.Context, characterID int64) (models.CharacterProfile, error)
}

// Navigator receives the redirects the resolver schedules.
type Navigator interface {
	ToLogin(reason string)
	// ToExchange hands an authorization code that landed on the client back
	// to the backend exchange endpoint, parameters unchanged.
	ToExchange(code, state string)
}

type Resolver struct {
	store    session.Store
	profiles ProfileFetcher
	nav      Navigator
	logger   *slog.Logger
}

func NewResolver(logger *slog.Logger, store session.Store, profiles ProfileFetcher, nav Navigator) *Resolver {
	return &Resolver{
		store:    store,
		profiles: profiles,
		nav:      nav,
		logger:   logger.WithGroup("callback"),
	}
}

// Resolve reads the redirect's query parameters once and takes exactly one of
// three branches: an upstream error, a server-completed login that needs
// profile hydration, or a stray authorization code that belongs to the
// backend exchange endpoint.
func (r *Resolver) Resolve(ctx context.Context, params url.Values) Outcome {
	if errCode := params.Get("error"); errCode != "" {
		r.logger.Warn("SSO returned an error", "error", errCode)
		r.nav.ToLogin(errCode)
		return Outcome{State: StateFailed, Reason: fmt.Sprintf("authorization failed: %s", errCode)}
	}

	if params.Get("success") == "true" {
		rawID := params.Get("character_id")
		if rawID == "" {
			return Outcome{State: StateFailed, Reason: "login succeeded upstream but no character was identified"}
		}
		characterID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return Outcome{State: StateFailed, Reason: fmt.Sprintf("malformed character id '%s'", rawID)}
		}
		return r.hydrate(ctx, characterID)
	}

	if code := params.Get("code"); code != "" {
		// The redirect landed on the client instead of the backend exchange
		// endpoint. Forward it; the flow completes server-side.
		r.logger.Info("Forwarding stray authorization code to exchange endpoint")
		r.nav.ToExchange(code, params.Get("state"))
		return Outcome{State: StateRedirecting}
	}

	return Outcome{State: StateFailed, Reason: "unrecognized callback parameters"}
}

func (r *Resolver) hydrate(ctx context.Context, characterID int64) Outcome {
	profile, err := r.profiles.CharacterProfile(ctx, characterID)
	if err != nil {
		// The character authenticated upstream, but the session could not be
		// completed. Recoverable by logging in again, never a silent success.
		r.logger.Error("Profile hydration failed after successful login", "character_id", characterID, "error", err)
		return Outcome{
			State:  StateFailed,
			Reason: fmt.Sprintf("character %d authenticated but profile hydration failed: %v", characterID, err),
		}
	}

	if err := r.store.Set(models.Session{
		Token:         models.TokenServerManaged,
		CharacterID:   profile.CharacterID,
		CharacterName: profile.Name,
	}); err != nil {
		r.logger.Error("Failed to persist session", "character_id", characterID, "error", err)
		return Outcome{State: StateFailed, Reason: fmt.Sprintf("failed to persist session: %v", err)}
	}

	r.logger.Info("Session established", "character_id", profile.CharacterID, "character_name", profile.Name)
	return Outcome{State: StateSuccess}
}
