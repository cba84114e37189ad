package models

import "encoding/json"

// Envelope is the decoded shape of one inbound stream frame.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Well-known feed event types. Feeds may carry others; subscribers that need
// everything register for the wildcard topic instead.
const (
	EventTypeKillReport   = "kill_report"
	EventTypeFleetInvite  = "fleet_invite"
	EventTypeMarketUpdate = "market_update"
	EventTypeNotification = "notification"
)
