// internal/matchsync/envelope.go
package matchsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/holosync/internal/models"
)

// Push message types.
const (
	TypeMatchUpdate = "MATCH_UPDATE"
	TypeStateUpdate = "GAME_STATE_UPDATE"
	TypeSync        = "SYNC"
	TypePing        = "PING"
)

// Envelope is a decoded push message. The concrete type is one of MatchEnvelope,
// StateEnvelope, SyncEnvelope, PingEnvelope or Unparseable.
type Envelope interface {
	envelope()
}

// MatchEnvelope carries a new MatchSummary.
type MatchEnvelope struct {
	Match *models.MatchSummary
}

// StateEnvelope carries a new GameSnapshot.
type StateEnvelope struct {
	State *models.GameSnapshot
}

// SyncEnvelope carries either or both objects.
type SyncEnvelope struct {
	Match *models.MatchSummary
	State *models.GameSnapshot
}

// PingEnvelope is a keepalive with no payload.
type PingEnvelope struct{}

// Unparseable is any message that does not match a known shape. It is logged and dropped.
type Unparseable struct {
	Raw []byte
	Err error
}

func (MatchEnvelope) envelope() {}
func (StateEnvelope) envelope() {}
func (SyncEnvelope) envelope()  {}
func (PingEnvelope) envelope()  {}
func (Unparseable) envelope()   {}

type wireEnvelope struct {
	Type      string          `json:"type"`
	Match     json.RawMessage `json:"match,omitempty"`
	GameState json.RawMessage `json:"gameState,omitempty"`
}

var (
	errMissingMatch = errors.New("missing match")
	errMissingState = errors.New("missing gameState")
)

// Decode parses a push message. It never returns a partially decoded envelope: a message
// is either fully understood or Unparseable.
func Decode(data []byte) Envelope {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Unparseable{Raw: data, Err: fmt.Errorf("invalid envelope: %w", err)}
	}

	match, merr := decodeMatch(w.Match)
	state, serr := decodeState(w.GameState)

	switch w.Type {
	case TypeMatchUpdate:
		if merr != nil {
			return Unparseable{Raw: data, Err: merr}
		}
		return MatchEnvelope{Match: match}
	case TypeStateUpdate:
		if serr != nil {
			return Unparseable{Raw: data, Err: serr}
		}
		return StateEnvelope{State: state}
	case TypeSync:
		if merr != nil && !errors.Is(merr, errMissingMatch) {
			return Unparseable{Raw: data, Err: merr}
		}
		if serr != nil && !errors.Is(serr, errMissingState) {
			return Unparseable{Raw: data, Err: serr}
		}
		if match == nil && state == nil {
			return Unparseable{Raw: data, Err: errors.New("sync without match or gameState")}
		}
		return SyncEnvelope{Match: match, State: state}
	case TypePing:
		return PingEnvelope{}
	default:
		return Unparseable{Raw: data, Err: fmt.Errorf("unknown message type %q", w.Type)}
	}
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeMatch(raw json.RawMessage) (*models.MatchSummary, error) {
	if isAbsent(raw) {
		return nil, errMissingMatch
	}
	var m models.MatchSummary
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("invalid match: %w", err)
	}
	if m.ID == "" || m.Status == "" {
		return nil, errors.New("match without id or status")
	}
	return &m, nil
}

func decodeState(raw json.RawMessage) (*models.GameSnapshot, error) {
	if isAbsent(raw) {
		return nil, errMissingState
	}
	var s models.GameSnapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid gameState: %w", err)
	}
	if s.MatchID == "" {
		return nil, errors.New("gameState without matchId")
	}
	return &s, nil
}
