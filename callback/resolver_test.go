package callback_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hangarlabs/hangar/callback"
	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

type fakeProfiles struct {
	profile models.CharacterProfile
	err     error
	calls   int
}

func (f *fakeProfiles) CharacterProfile(ctx context.Context, characterID int64) (models.CharacterProfile, error) {
	f.calls++
	if f.err != nil {
		return models.CharacterProfile{}, f.err
	}
	return f.profile, nil
}

type fakeNavigator struct {
	logins    []string
	exchanges [][2]string
}

func (n *fakeNavigator) ToLogin(reason string) {
	n.logins = append(n.logins, reason)
}

func (n *fakeNavigator) ToExchange(code, state string) {
	n.exchanges = append(n.exchanges, [2]string{code, state})
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(profiles *fakeProfiles, nav *fakeNavigator) (*callback.Resolver, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return callback.NewResolver(testLogger(), store, profiles, nav), store
}

func TestErrorParameterFailsAndRedirectsToLogin(t *testing.T) {
	nav := &fakeNavigator{}
	resolver, store := newResolver(&fakeProfiles{}, nav)

	outcome := resolver.Resolve(context.Background(), url.Values{"error": {"access_denied"}})
	require.Equal(t, callback.StateFailed, outcome.State)
	require.Contains(t, outcome.Reason, "access_denied")
	require.Equal(t, []string{"access_denied"}, nav.logins)

	_, ok := store.Get()
	require.False(t, ok)
}

func TestServerSignaledSuccessHydratesSession(t *testing.T) {
	profiles := &fakeProfiles{profile: models.CharacterProfile{
		CharacterID: 42,
		Name:        "Kira Vanth",
	}}
	resolver, store := newResolver(profiles, &fakeNavigator{})

	outcome := resolver.Resolve(context.Background(), url.Values{
		"success":      {"true"},
		"character_id": {"42"},
	})
	require.Equal(t, callback.StateSuccess, outcome.State)
	require.Equal(t, 1, profiles.calls)

	s, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, models.TokenServerManaged, s.Token)
	require.True(t, s.ServerManaged())
	require.Equal(t, int64(42), s.CharacterID)
	require.Equal(t, "Kira Vanth", s.CharacterName)
}

func TestHydrationFailureLeavesStoreEmpty(t *testing.T) {
	profiles := &fakeProfiles{err: errors.New("profile service unavailable")}
	resolver, store := newResolver(profiles, &fakeNavigator{})

	outcome := resolver.Resolve(context.Background(), url.Values{
		"success":      {"true"},
		"character_id": {"42"},
	})
	require.Equal(t, callback.StateFailed, outcome.State)
	require.Contains(t, outcome.Reason, "hydration failed")

	_, ok := store.Get()
	require.False(t, ok, "a failed hydration must never leave a session behind")
}

func TestStrayAuthorizationCodeForwardsToExchange(t *testing.T) {
	nav := &fakeNavigator{}
	resolver, store := newResolver(&fakeProfiles{}, nav)

	outcome := resolver.Resolve(context.Background(), url.Values{
		"code":  {"abc"},
		"state": {"xyz"},
	})
	require.Equal(t, callback.StateRedirecting, outcome.State)
	require.Equal(t, [][2]string{{"abc", "xyz"}}, nav.exchanges)
	require.Empty(t, nav.logins)

	_, ok := store.Get()
	require.False(t, ok)
}

func TestUnrecognizedParametersFail(t *testing.T) {
	resolver, store := newResolver(&fakeProfiles{}, &fakeNavigator{})

	for _, params := range []url.Values{
		{},
		{"success": {"true"}},
		{"success": {"true"}, "character_id": {"not-a-number"}},
		{"state": {"xyz"}},
	} {
		outcome := resolver.Resolve(context.Background(), params)
		require.Equal(t, callback.StateFailed, outcome.State, "params: %v", params)
	}

	_, ok := store.Get()
	require.False(t, ok)
}
