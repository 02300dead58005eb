// Package turnusage derives which once-per-turn actions the local player has already used,
// from the recent-action log carried by each snapshot. It keeps no state of its own.
package turnusage

import "github.com/jason-s-yu/holosync/internal/models"

// Usage flags for the current turn.
type Usage struct {
	DrawUsed  bool
	CheerUsed bool
}

// Derive inspects the records of playerID for the snapshot's turn number.
func Derive(snap *models.GameSnapshot, playerID string) Usage {
	var u Usage
	if snap == nil || playerID == "" {
		return u
	}
	for _, rec := range snap.RecentActions {
		if rec.ActorID != playerID || rec.TurnNumber != snap.TurnNumber {
			continue
		}
		switch rec.Kind {
		case models.RecordDrawTurn:
			u.DrawUsed = true
		case models.RecordTurnCheer:
			u.CheerUsed = true
		}
	}
	return u
}

// Eligibility says which mandatory actions apply this turn: a draw needs a non-empty deck
// and a send-cheer a non-empty cheer deck.
type Eligibility struct {
	Draw  bool
	Cheer bool
}

// EligibleFor reads deck counts of playerID from the snapshot.
func EligibleFor(snap *models.GameSnapshot, playerID string) Eligibility {
	p, ok := snap.Player(playerID)
	if !ok {
		return Eligibility{}
	}
	return Eligibility{Draw: p.DeckCount > 0, Cheer: p.CheerDeckCount > 0}
}
