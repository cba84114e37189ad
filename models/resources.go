package models

import "time"

/*
	Response payloads for the dashboard REST surface. These are plain wire
	shapes; all behavior lives in the gateway and the api layer.
*/

type ErrorResponse struct {
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

type CharacterProfile struct {
	CharacterID    int64     `json:"character_id"`
	Name           string    `json:"name"`
	CorporationID  int64     `json:"corporation_id"`
	AllianceID     int64     `json:"alliance_id,omitempty"`
	Birthday       time.Time `json:"birthday"`
	SecurityStatus float64   `json:"security_status"`
}

type Skill struct {
	SkillID     int64 `json:"skill_id"`
	ActiveLevel int   `json:"active_level"`
	Skillpoints int64 `json:"skillpoints"`
}

type CharacterSkills struct {
	CharacterID      int64   `json:"character_id"`
	TotalSkillpoints int64   `json:"total_skillpoints"`
	Skills           []Skill `json:"skills"`
}

type CorporationInfo struct {
	CorporationID int64  `json:"corporation_id"`
	Name          string `json:"name"`
	Ticker        string `json:"ticker"`
	MemberCount   int    `json:"member_count"`
	CEOID         int64  `json:"ceo_id"`
}

type MarketOrder struct {
	OrderID      int64     `json:"order_id"`
	TypeID       int64     `json:"type_id"`
	Price        float64   `json:"price"`
	VolumeRemain int64     `json:"volume_remain"`
	IsBuyOrder   bool      `json:"is_buy_order"`
	Issued       time.Time `json:"issued"`
}

type FleetMember struct {
	CharacterID int64     `json:"character_id"`
	ShipTypeID  int64     `json:"ship_type_id"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

type ServerStatus struct {
	Players       int       `json:"players"`
	ServerVersion string    `json:"server_version"`
	StartTime     time.Time `json:"start_time"`
}
