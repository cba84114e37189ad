package api_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/hangarlabs/hangar/api"
	"github.com/hangarlabs/hangar/gateway"
	"github.com/hangarlabs/hangar/models"
	"github.com/hangarlabs/hangar/session"
)

type noopNavigator struct{}

func (noopNavigator) ToLogin(string) {}

// APIClientTestSuite exercises the typed wrappers against a fake platform.
type APIClientTestSuite struct {
	suite.Suite
	ctx    context.Context
	server *httptest.Server
	store  *session.MemoryStore
	client *api.Client

	mu   sync.Mutex
	hits map[string]int
}

func (s *APIClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.hits = map[string]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.counted(`{"players":31245,"server_version":"2.4.1","start_time":"2026-08-30T11:00:00Z"}`))
	mux.HandleFunc("/api/v1/characters/42", s.counted(`{"character_id":42,"name":"Kira Vanth","corporation_id":98000001,"security_status":1.7}`))
	mux.HandleFunc("/api/v1/characters/42/skills", s.counted(`{"character_id":42,"total_skillpoints":5400000,"skills":[{"skill_id":3300,"active_level":5,"skillpoints":256000}]}`))
	mux.HandleFunc("/api/v1/corporations/98000001", s.counted(`{"corporation_id":98000001,"name":"Vanth Holdings","ticker":"VNTH","member_count":37,"ceo_id":42}`))
	mux.HandleFunc("/api/v1/markets/orders", func(w http.ResponseWriter, r *http.Request) {
		s.count(r.URL.Path)
		require.Equal(s.T(), "10000002", r.URL.Query().Get("region_id"))
		require.Equal(s.T(), "34", r.URL.Query().Get("type_id"))
		w.Write([]byte(`[{"order_id":1,"type_id":34,"price":5.2,"volume_remain":100000,"is_buy_order":false,"issued":"2026-08-31T09:00:00Z"}]`))
	})
	mux.HandleFunc("/api/v1/fleets/current", func(w http.ResponseWriter, r *http.Request) {
		s.count(r.URL.Path)
		require.Equal(s.T(), "42", r.URL.Query().Get("character_id"))
		w.Write([]byte(`[{"character_id":42,"ship_type_id":670,"role":"fleet_commander","joined_at":"2026-08-31T10:00:00Z"}]`))
	})
	s.server = httptest.NewServer(mux)

	s.store = session.NewMemoryStore()
	require.NoError(s.T(), s.store.Set(models.Session{
		Token:         "tok-abc123",
		CharacterID:   42,
		CharacterName: "Kira Vanth",
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := gateway.New(&gateway.Config{
		BaseURL:             s.server.URL,
		Store:               s.store,
		Navigator:           noopNavigator{},
		Logger:              logger,
		CharacterParamPaths: []string{"api/v1/fleets/current"},
	})
	require.NoError(s.T(), err)
	s.client = api.New(logger, gw)
}

func (s *APIClientTestSuite) TearDownTest() {
	s.client.Close()
	s.server.Close()
}

func (s *APIClientTestSuite) counted(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.count(r.URL.Path)
		w.Write([]byte(body))
	}
}

func (s *APIClientTestSuite) count(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[path]++
}

func (s *APIClientTestSuite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func TestAPIClientSuite(t *testing.T) {
	suite.Run(t, new(APIClientTestSuite))
}

func (s *APIClientTestSuite) TestServerStatus() {
	status, err := s.client.ServerStatus(s.ctx)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 31245, status.Players)
	require.Equal(s.T(), "2.4.1", status.ServerVersion)
}

func (s *APIClientTestSuite) TestCharacterProfileIsCached() {
	first, err := s.client.CharacterProfile(s.ctx, 42)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Kira Vanth", first.Name)

	second, err := s.client.CharacterProfile(s.ctx, 42)
	require.NoError(s.T(), err)
	require.Equal(s.T(), first, second)
	require.Equal(s.T(), 1, s.hitCount("/api/v1/characters/42"), "second read must come from cache")
}

func (s *APIClientTestSuite) TestCharacterSkills() {
	skills, err := s.client.CharacterSkills(s.ctx, 42)
	require.NoError(s.T(), err)
	require.Equal(s.T(), int64(5400000), skills.TotalSkillpoints)
	require.Len(s.T(), skills.Skills, 1)
	require.Equal(s.T(), 5, skills.Skills[0].ActiveLevel)
}

func (s *APIClientTestSuite) TestCorporationInfoIsCached() {
	info, err := s.client.CorporationInfo(s.ctx, 98000001)
	require.NoError(s.T(), err)
	require.Equal(s.T(), "VNTH", info.Ticker)

	_, err = s.client.CorporationInfo(s.ctx, 98000001)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, s.hitCount("/api/v1/corporations/98000001"))
}

func (s *APIClientTestSuite) TestMarketOrders() {
	orders, err := s.client.MarketOrders(s.ctx, 10000002, 34)
	require.NoError(s.T(), err)
	require.Len(s.T(), orders, 1)
	require.Equal(s.T(), 5.2, orders[0].Price)
}

func (s *APIClientTestSuite) TestCurrentFleetCarriesCharacterID() {
	members, err := s.client.CurrentFleet(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), members, 1)
	require.Equal(s.T(), "fleet_commander", members[0].Role)
}

func (s *APIClientTestSuite) TestArgumentValidation() {
	_, err := s.client.CharacterProfile(s.ctx, 0)
	require.Error(s.T(), err)
	_, err = s.client.CharacterSkills(s.ctx, 0)
	require.Error(s.T(), err)
	_, err = s.client.CorporationInfo(s.ctx, 0)
	require.Error(s.T(), err)
	_, err = s.client.MarketOrders(s.ctx, 0, 0)
	require.Error(s.T(), err)
	_, err = s.client.FleetMembers(s.ctx, 0)
	require.Error(s.T(), err)
}
