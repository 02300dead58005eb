// internal/gate/gate.go
package gate

import (
	"errors"
	"sync"

	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
)

// Reason explains why an action may not be dispatched. ReasonNone means it may.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonBusy               Reason = "busy"
	ReasonNotYourTurn        Reason = "not-your-turn"
	ReasonNotStarted         Reason = "not-started"
	ReasonDecisionPending    Reason = "decision-pending"
	ReasonInteractionPending Reason = "interaction-pending"

	// ReasonProtocolViolation is reported when the server sends pending decisions and
	// pending interactions at the same time. Neither queue is picked over the other.
	ReasonProtocolViolation Reason = "protocol-violation"
)

// ErrProtocolViolation is the hard error behind ReasonProtocolViolation.
var ErrProtocolViolation = errors.New("protocol violation: pending decisions and pending interactions are both populated")

// Mode selects which rule set Acquire applies.
type Mode int

const (
	// ModeTurn is any ordinary in-turn action (play, bloom, draw, end-turn, ...).
	ModeTurn Mode = iota
	// ModeResolveDecision answers the head of the pending-decision queue.
	ModeResolveDecision
	// ModeResolveInteraction answers the head of the pending-interaction queue.
	ModeResolveInteraction
	// ModeLobby covers create/join/ready/start; only the in-flight rule applies.
	ModeLobby
	// ModeConcede may be used by either player at any point of a started match, as long as
	// no interrupt is pending.
	ModeConcede
)

// PlayerIdentity yields the local player id (auth.Session implements it).
type PlayerIdentity interface {
	PlayerID() string
}

// Gate decides whether a new player action may be dispatched and enforces a single
// in-flight action per engine.
type Gate struct {
	store  *store.Store
	player PlayerIdentity

	mu       sync.Mutex
	inFlight bool
}

func New(st *store.Store, player PlayerIdentity) *Gate {
	return &Gate{store: st, player: player}
}

// CanAct reports whether an ordinary action may be dispatched now.
func (g *Gate) CanAct() bool {
	return g.BlockReason() == ReasonNone
}

// BlockReason returns the first failing condition in the order busy, not-your-turn,
// not-started, decision-pending, interaction-pending.
func (g *Gate) BlockReason() Reason {
	g.mu.Lock()
	busy := g.inFlight
	g.mu.Unlock()
	if busy {
		return ReasonBusy
	}
	v := g.store.View()
	if ActivePlayer(v) != g.player.PlayerID() {
		return ReasonNotYourTurn
	}
	if v.Match == nil || v.Match.Status != models.StatusStarted {
		return ReasonNotStarted
	}
	return interruptReason(v.Snapshot)
}

// Busy reports whether an action is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Acquire atomically checks the rules for mode and claims the in-flight slot. On success
// the returned release func must be called exactly when the request settles; calling it
// more than once is harmless.
//
// Unlike BlockReason, a pending interrupt is reported before turn ownership: while the
// server waits on a decision no other action may go out, whoever's turn it is.
func (g *Gate) Acquire(mode Mode) (func(), Reason) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return nil, ReasonBusy
	}
	if reason := g.check(mode, g.store.View()); reason != ReasonNone {
		return nil, reason
	}

	g.inFlight = true
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.inFlight = false
			g.mu.Unlock()
		})
	}, ReasonNone
}

func (g *Gate) check(mode Mode, v store.View) Reason {
	started := v.Match != nil && v.Match.Status == models.StatusStarted
	switch mode {
	case ModeLobby:
		return ReasonNone
	case ModeConcede:
		if reason := interruptReason(v.Snapshot); reason != ReasonNone {
			return reason
		}
		if !started {
			return ReasonNotStarted
		}
		return ReasonNone
	case ModeResolveDecision, ModeResolveInteraction:
		if !started {
			return ReasonNotStarted
		}
		d, in, err := Interrupt(v.Snapshot)
		if err != nil {
			return ReasonProtocolViolation
		}
		if mode == ModeResolveDecision {
			if d == nil {
				if in != nil {
					return ReasonInteractionPending
				}
				return ReasonNone
			}
			// A decision addressed to the other player is theirs to answer.
			if d.PlayerID != "" && d.PlayerID != g.player.PlayerID() {
				return ReasonDecisionPending
			}
			return ReasonNone
		}
		if mode == ModeResolveInteraction && in == nil && d != nil {
			return ReasonDecisionPending
		}
		return ReasonNone
	default:
		if reason := interruptReason(v.Snapshot); reason != ReasonNone {
			return reason
		}
		if ActivePlayer(v) != g.player.PlayerID() {
			return ReasonNotYourTurn
		}
		if !started {
			return ReasonNotStarted
		}
		return ReasonNone
	}
}

// ActivePlayer is the turn owner: taken from the snapshot, or from the summary before any
// snapshot has been observed.
func ActivePlayer(v store.View) string {
	if v.Snapshot != nil && v.Snapshot.ActivePlayerID != "" {
		return v.Snapshot.ActivePlayerID
	}
	return v.Match.ActivePlayer()
}

// Interrupt returns the actionable head of the interrupt queues. Both queues being
// non-empty is a protocol violation.
func Interrupt(snap *models.GameSnapshot) (*models.PendingDecision, *models.PendingInteraction, error) {
	if snap == nil {
		return nil, nil, nil
	}
	hasD, hasI := len(snap.PendingDecisions) > 0, len(snap.PendingInteractions) > 0
	switch {
	case hasD && hasI:
		return nil, nil, ErrProtocolViolation
	case hasD:
		return &snap.PendingDecisions[0], nil, nil
	case hasI:
		return nil, &snap.PendingInteractions[0], nil
	}
	return nil, nil, nil
}

func interruptReason(snap *models.GameSnapshot) Reason {
	d, in, err := Interrupt(snap)
	switch {
	case err != nil:
		return ReasonProtocolViolation
	case d != nil:
		return ReasonDecisionPending
	case in != nil:
		return ReasonInteractionPending
	}
	return ReasonNone
}
