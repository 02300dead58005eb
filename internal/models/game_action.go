package models

import "encoding/json"

// Action kinds that appear in the recent-action log.
const (
	RecordDrawTurn   = "DRAW_TURN"
	RecordTurnCheer  = "TURN_CHEER"
	RecordPlayStage  = "PLAY_TO_STAGE"
	RecordBloom      = "BLOOM"
	RecordEndTurn    = "END_TURN"
	RecordConcede    = "CONCEDE"
	RecordDiceResult = "DICE_ROLL"
)

// ActionRecord is one entry of the snapshot's bounded recent-action log.
// Records are immutable; the client only reads them.
type ActionRecord struct {
	ActorID    string          `json:"actorId"`
	Kind       string          `json:"kind"`
	TurnNumber int             `json:"turnNumber"`
	Order      int             `json:"order"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
