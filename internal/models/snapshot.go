// internal/models/snapshot.go
package models

// Phase is the step within a turn. Phases cycle RESET -> MAIN -> PERFORMANCE -> END every turn.
type Phase string

const (
	PhaseReset       Phase = "RESET"
	PhaseMain        Phase = "MAIN"
	PhasePerformance Phase = "PERFORMANCE"
	PhaseEnd         Phase = "END"
)

// GameSnapshot is the detailed per-turn view of the match returned by GET /matches/{id}/state.
// Like MatchSummary it is only ever replaced as a whole.
type GameSnapshot struct {
	MatchID        string                 `json:"matchId"`
	Phase          Phase                  `json:"phase"`
	TurnNumber     int                    `json:"turnNumber"`
	ActivePlayerID string                 `json:"activePlayerId"`
	Players        map[string]PlayerState `json:"players"`

	// RecentActions is a bounded log, oldest first.
	RecentActions []ActionRecord `json:"recentActions"`

	PendingDecisions    []PendingDecision    `json:"pendingDecisions"`
	PendingInteractions []PendingInteraction `json:"pendingInteractions"`
}

// Player returns the state of playerID, if present.
func (s *GameSnapshot) Player(playerID string) (PlayerState, bool) {
	if s == nil {
		return PlayerState{}, false
	}
	p, ok := s.Players[playerID]
	return p, ok
}

// TemplateIDs lists every template id visible in the snapshot, without duplicates.
func (s *GameSnapshot) TemplateIDs() []string {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range s.Players {
		for _, c := range p.FieldUnits() {
			add(c.TemplateID)
		}
		for _, c := range p.Hand {
			add(c.TemplateID)
		}
	}
	for _, d := range s.PendingDecisions {
		for _, c := range d.Candidates {
			add(c.TemplateID)
		}
	}
	for _, in := range s.PendingInteractions {
		for _, c := range in.Candidates {
			add(c.TemplateID)
		}
	}
	return ids
}
