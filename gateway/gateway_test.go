package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hangarlabs/hangar/gateway"
	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

type fakeNavigator struct {
	mu     sync.Mutex
	logins []string
}

func (n *fakeNavigator) ToLogin(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logins = append(n.logins, reason)
}

func (n *fakeNavigator) loginCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.logins)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGateway(t *testing.T, serverURL string, store session.Store, nav gateway.Navigator) *gateway.Gateway {
	t.Helper()
	gw, err := gateway.New(&gateway.Config{
		BaseURL:             serverURL,
		Store:               store,
		Navigator:           nav,
		Logger:              testLogger(),
		CharacterParamPaths: []string{"api/v1/fleets/current"},
	})
	require.NoError(t, err)
	return gw
}

func loggedInStore(t *testing.T, token string) *session.MemoryStore {
	t.Helper()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(models.Session{
		Token:         token,
		CharacterID:   42,
		CharacterName: "Kira Vanth",
	}))
	return store
}

func TestBearerHeaderAttached(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, loggedInStore(t, "tok-abc123"), &fakeNavigator{})
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/status", nil, nil, nil))
	require.Equal(t, "Bearer tok-abc123", gotAuth)
}

func TestServerManagedCredentialSendsNoHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, loggedInStore(t, models.TokenServerManaged), &fakeNavigator{})
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/status", nil, nil, nil))
	require.Empty(t, gotAuth)
}

func TestCharacterParamOnlyOnAllowListedPaths(t *testing.T) {
	queries := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries[r.URL.Path] = r.URL.Query().Get("character_id")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, loggedInStore(t, "tok-abc123"), &fakeNavigator{})
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/fleets/current", nil, nil, nil))
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/status", nil, nil, nil))

	require.Equal(t, "42", queries["/api/v1/fleets/current"])
	require.Empty(t, queries["/api/v1/status"])
}

func TestUnauthorizedEvictsSessionAndRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := loggedInStore(t, "tok-abc123")
	nav := &fakeNavigator{}
	gw := newGateway(t, server.URL, store, nav)

	err := gw.Do(context.Background(), http.MethodGet, "api/v1/characters/42", nil, nil, nil)
	require.ErrorIs(t, err, gateway.ErrUnauthorized)

	_, ok := store.Get()
	require.False(t, ok, "session must be empty after a 401")
	require.Equal(t, 1, nav.loginCount())
}

func TestHTTPErrorCarriesServerPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error_type":"FLEET_FULL","message":"fleet is at capacity"}`))
	}))
	defer server.Close()

	store := loggedInStore(t, "tok-abc123")
	nav := &fakeNavigator{}
	gw := newGateway(t, server.URL, store, nav)

	err := gw.Do(context.Background(), http.MethodPost, "api/v1/fleets/7/members", nil, map[string]string{"role": "scout"}, nil)
	var httpErr *gateway.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusConflict, httpErr.Status)
	require.Equal(t, "FLEET_FULL", httpErr.ErrorType)
	require.Equal(t, "fleet is at capacity", httpErr.Message)

	// Only a 401 has side effects.
	_, ok := store.Get()
	require.True(t, ok)
	require.Zero(t, nav.loginCount())
}

func TestDecodeErrorKeepsRawPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"players": not-json`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, loggedInStore(t, "tok-abc123"), &fakeNavigator{})

	var status models.ServerStatus
	err := gw.Do(context.Background(), http.MethodGet, "api/v1/status", nil, nil, &status)
	var decodeErr *gateway.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, `{"players": not-json`, string(decodeErr.Raw))
}

func TestNetworkErrorWhenNoResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	gw := newGateway(t, serverURL, loggedInStore(t, "tok-abc123"), &fakeNavigator{})

	err := gw.Do(context.Background(), http.MethodGet, "api/v1/status", nil, nil, nil)
	var netErr *gateway.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.False(t, errors.Is(err, gateway.ErrUnauthorized))
}

func TestNoSessionSendsAnonymousRequest(t *testing.T) {
	var gotAuth, gotCharacter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCharacter = r.URL.Query().Get("character_id")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, session.NewMemoryStore(), &fakeNavigator{})
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/fleets/current", nil, nil, nil))
	require.Empty(t, gotAuth)
	require.Empty(t, gotCharacter)
}

func TestQueryParamsForwarded(t *testing.T) {
	var gotRegion, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRegion = r.URL.Query().Get("region_id")
		gotType = r.URL.Query().Get("type_id")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	gw := newGateway(t, server.URL, loggedInStore(t, "tok-abc123"), &fakeNavigator{})
	params := map[string]string{"region_id": "10000002", "type_id": "34"}
	var orders []models.MarketOrder
	require.NoError(t, gw.Do(context.Background(), http.MethodGet, "api/v1/markets/orders", params, nil, &orders))
	require.Equal(t, "10000002", gotRegion)
	require.Equal(t, "34", gotType)
}
