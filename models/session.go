package models

// TokenServerManaged is the credential sentinel: the authoritative token for
// the character lives server-side, so the gateway must not attach a bearer
// header and the backend resolves identity from its own session state.
const TokenServerManaged = "server-managed"

// Session is the authenticated state of the dashboard. Token and CharacterID
// are set together or not at all; a partial session is never written.
type Session struct {
	Token         string `json:"token"`
	CharacterID   int64  `json:"character_id"`
	CharacterName string `json:"character_name"`
}

// ServerManaged reports whether the credential is held server-side.
func (s Session) ServerManaged() bool {
	return s.Token == TokenServerManaged
}
