// internal/models/lobby.go
package models

// MatchStatus is the lobby-level lifecycle of a match.
type MatchStatus string

const (
	StatusWaiting      MatchStatus = "WAITING"
	StatusReady        MatchStatus = "READY"
	StatusStarted      MatchStatus = "STARTED"
	StatusFinished     MatchStatus = "FINISHED"
	StatusDisconnected MatchStatus = "DISCONNECTED"
)

// Terminal reports whether no further transitions are possible from this status.
func (s MatchStatus) Terminal() bool {
	return s == StatusFinished || s == StatusDisconnected
}

// MatchPlayer is one seat in the lobby along with its ready flag.
type MatchPlayer struct {
	ID    string `json:"id"`
	Ready bool   `json:"ready"`
}

// MatchSummary is the identity and lobby status of a match as last reported by the server.
// It is always replaced as a whole; nothing in the client patches individual fields.
type MatchSummary struct {
	ID     string      `json:"id"`
	Code   string      `json:"code"`
	Status MatchStatus `json:"status"`
	HostID string      `json:"hostId"`

	// ActivePlayerID is nil until the match has started.
	ActivePlayerID *string `json:"activePlayerId"`
	TurnNumber     int     `json:"turnNumber"`

	Players []MatchPlayer `json:"players"`

	// WinnerID is set once the match finishes (concede or game end).
	WinnerID *string `json:"winnerId,omitempty"`
}

// HasPlayer reports whether playerID holds a seat.
func (m *MatchSummary) HasPlayer(playerID string) bool {
	for _, p := range m.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// ActivePlayer returns the turn owner or "" when there is none.
func (m *MatchSummary) ActivePlayer() string {
	if m == nil || m.ActivePlayerID == nil {
		return ""
	}
	return *m.ActivePlayerID
}
