// Package api holds the typed REST wrappers the dashboard pages consume.
// Each method is a thin parameter-to-query mapping over the gateway; all
// authentication and failure semantics live there.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/hangarlabs/hangar/gateway"
	"github.com/hangarlabs/hangar/models"
)

const (
	profileTTL     = 15 * time.Minute
	corporationTTL = 30 * time.Minute
)

type Client struct {
	gw     *gateway.Gateway
	logger *slog.Logger

	profiles     *ttlcache.Cache[int64, models.CharacterProfile]
	corporations *ttlcache.Cache[int64, models.CorporationInfo]
}

func New(logger *slog.Logger, gw *gateway.Gateway) *Client {
	profiles := ttlcache.New[int64, models.CharacterProfile](
		ttlcache.WithTTL[int64, models.CharacterProfile](profileTTL),
		ttlcache.WithDisableTouchOnHit[int64, models.CharacterProfile](),
	)
	go profiles.Start()

	corporations := ttlcache.New[int64, models.CorporationInfo](
		ttlcache.WithTTL[int64, models.CorporationInfo](corporationTTL),
		ttlcache.WithDisableTouchOnHit[int64, models.CorporationInfo](),
	)
	go corporations.Start()

	return &Client{
		gw:           gw,
		logger:       logger.WithGroup("api"),
		profiles:     profiles,
		corporations: corporations,
	}
}

// Close stops the cache janitors.
func (c *Client) Close() {
	c.profiles.Stop()
	c.corporations.Stop()
}

func (c *Client) ServerStatus(ctx context.Context) (models.ServerStatus, error) {
	var status models.ServerStatus
	if err := c.gw.Do(ctx, http.MethodGet, "api/v1/status", nil, nil, &status); err != nil {
		return models.ServerStatus{}, err
	}
	return status, nil
}

// CharacterProfile fetches a character's public profile. Profiles are
// read-mostly, so hits are served from cache for a while.
func (c *Client) CharacterProfile(ctx context.Context, characterID int64) (models.CharacterProfile, error) {
	if characterID == 0 {
		return models.CharacterProfile{}, fmt.Errorf("characterID cannot be zero")
	}
	if item := c.profiles.Get(characterID); item != nil {
		return item.Value(), nil
	}
	var profile models.CharacterProfile
	path := fmt.Sprintf("api/v1/characters/%d", characterID)
	if err := c.gw.Do(ctx, http.MethodGet, path, nil, nil, &profile); err != nil {
		return models.CharacterProfile{}, err
	}
	c.profiles.Set(characterID, profile, ttlcache.DefaultTTL)
	return profile, nil
}

func (c *Client) CharacterSkills(ctx context.Context, characterID int64) (models.CharacterSkills, error) {
	if characterID == 0 {
		return models.CharacterSkills{}, fmt.Errorf("characterID cannot be zero")
	}
	var skills models.CharacterSkills
	path := fmt.Sprintf("api/v1/characters/%d/skills", characterID)
	if err := c.gw.Do(ctx, http.MethodGet, path, nil, nil, &skills); err != nil {
		return models.CharacterSkills{}, err
	}
	return skills, nil
}

func (c *Client) CorporationInfo(ctx context.Context, corporationID int64) (models.CorporationInfo, error) {
	if corporationID == 0 {
		return models.CorporationInfo{}, fmt.Errorf("corporationID cannot be zero")
	}
	if item := c.corporations.Get(corporationID); item != nil {
		return item.Value(), nil
	}
	var info models.CorporationInfo
	path := fmt.Sprintf("api/v1/corporations/%d", corporationID)
	if err := c.gw.Do(ctx, http.MethodGet, path, nil, nil, &info); err != nil {
		return models.CorporationInfo{}, err
	}
	c.corporations.Set(corporationID, info, ttlcache.DefaultTTL)
	return info, nil
}

func (c *Client) MarketOrders(ctx context.Context, regionID, typeID int64) ([]models.MarketOrder, error) {
	if regionID == 0 {
		return nil, fmt.Errorf("regionID cannot be zero")
	}
	params := map[string]string{
		"region_id": strconv.FormatInt(regionID, 10),
	}
	if typeID != 0 {
		params["type_id"] = strconv.FormatInt(typeID, 10)
	}
	var orders []models.MarketOrder
	if err := c.gw.Do(ctx, http.MethodGet, "api/v1/markets/orders", params, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CurrentFleet returns the members of the fleet the selected character is in.
// The backend cannot derive the character from the credential for this
// endpoint, so the gateway attaches character_id per its allow-list.
func (c *Client) CurrentFleet(ctx context.Context) ([]models.FleetMember, error) {
	var members []models.FleetMember
	if err := c.gw.Do(ctx, http.MethodGet, "api/v1/fleets/current", nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) FleetMembers(ctx context.Context, fleetID int64) ([]models.FleetMember, error) {
	if fleetID == 0 {
		return nil, fmt.Errorf("fleetID cannot be zero")
	}
	var members []models.FleetMember
	path := fmt.Sprintf("api/v1/fleets/%d/members", fleetID)
	if err := c.gw.Do(ctx, http.MethodGet, path, nil, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}
