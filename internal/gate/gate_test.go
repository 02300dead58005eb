package gate

import (
	"testing"

	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type player string

func (p player) PlayerID() string { return string(p) }

func startedStore(owner string) *store.Store {
	s := store.New()
	s.Apply(&models.MatchSummary{
		ID:             "m1",
		Status:         models.StatusStarted,
		ActivePlayerID: &owner,
		TurnNumber:     1,
	}, &models.GameSnapshot{
		MatchID:        "m1",
		Phase:          models.PhaseMain,
		TurnNumber:     1,
		ActivePlayerID: owner,
	})
	return s
}

func withInterrupts(s *store.Store, decisions int, interactions int) {
	snap := *s.Snapshot()
	snap.PendingDecisions = nil
	snap.PendingInteractions = nil
	for i := 0; i < decisions; i++ {
		snap.PendingDecisions = append(snap.PendingDecisions, models.PendingDecision{ID: "d", MinSelect: 1, MaxSelect: 1})
	}
	for i := 0; i < interactions; i++ {
		snap.PendingInteractions = append(snap.PendingInteractions, models.PendingInteraction{ID: "i"})
	}
	s.SetSnapshot(&snap)
}

func TestCanActOnOwnTurn(t *testing.T) {
	g := New(startedStore("me"), player("me"))
	assert.True(t, g.CanAct())
	assert.Equal(t, ReasonNone, g.BlockReason())
}

func TestBlockReasonPriority(t *testing.T) {
	s := startedStore("opponent")
	g := New(s, player("me"))
	withInterrupts(s, 1, 0)
	assert.Equal(t, ReasonNotYourTurn, g.BlockReason(), "turn ownership is reported before interrupts")

	release, reason := g.Acquire(ModeLobby)
	require.Equal(t, ReasonNone, reason)
	assert.Equal(t, ReasonBusy, g.BlockReason(), "busy wins over everything")
	release()
	release()
	assert.False(t, g.Busy())
}

func TestBlockReasonNotStarted(t *testing.T) {
	s := store.New()
	owner := "me"
	s.SetMatch(&models.MatchSummary{ID: "m1", Status: models.StatusReady, ActivePlayerID: &owner})
	g := New(s, player("me"))
	assert.Equal(t, ReasonNotStarted, g.BlockReason())
}

func TestBlockReasonInterrupts(t *testing.T) {
	s := startedStore("me")
	g := New(s, player("me"))

	withInterrupts(s, 1, 0)
	assert.Equal(t, ReasonDecisionPending, g.BlockReason())

	withInterrupts(s, 0, 2)
	assert.Equal(t, ReasonInteractionPending, g.BlockReason())

	withInterrupts(s, 1, 1)
	assert.Equal(t, ReasonProtocolViolation, g.BlockReason())
	_, _, err := Interrupt(s.Snapshot())
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestAcquireReportsDecisionRegardlessOfTurn(t *testing.T) {
	for _, owner := range []string{"me", "opponent"} {
		s := startedStore(owner)
		withInterrupts(s, 1, 0)
		g := New(s, player("me"))

		_, reason := g.Acquire(ModeTurn)
		assert.Equal(t, ReasonDecisionPending, reason, "owner=%s", owner)

		release, reason := g.Acquire(ModeResolveDecision)
		require.Equal(t, ReasonNone, reason, "owner=%s", owner)
		release()
	}
}

func TestAcquireResolveDecisionOwnedByOpponent(t *testing.T) {
	s := startedStore("me")
	snap := *s.Snapshot()
	snap.PendingDecisions = []models.PendingDecision{{ID: "d1", PlayerID: "opponent", MinSelect: 1, MaxSelect: 1}}
	s.SetSnapshot(&snap)

	_, reason := New(s, player("me")).Acquire(ModeResolveDecision)
	assert.Equal(t, ReasonDecisionPending, reason)

	release, reason := New(s, player("opponent")).Acquire(ModeResolveDecision)
	require.Equal(t, ReasonNone, reason)
	release()
}

func TestAcquireSingleInFlight(t *testing.T) {
	g := New(startedStore("me"), player("me"))

	release, reason := g.Acquire(ModeTurn)
	require.Equal(t, ReasonNone, reason)

	_, reason = g.Acquire(ModeTurn)
	assert.Equal(t, ReasonBusy, reason)
	_, reason = g.Acquire(ModeLobby)
	assert.Equal(t, ReasonBusy, reason)

	release()
	release2, reason := g.Acquire(ModeTurn)
	require.Equal(t, ReasonNone, reason)
	release2()
}

func TestAcquireResolveInteractionBlockedByDecision(t *testing.T) {
	s := startedStore("me")
	withInterrupts(s, 1, 0)
	g := New(s, player("me"))
	_, reason := g.Acquire(ModeResolveInteraction)
	assert.Equal(t, ReasonDecisionPending, reason)
}

func TestActivePlayerFallsBackToSummary(t *testing.T) {
	owner := "me"
	v := store.View{Match: &models.MatchSummary{ActivePlayerID: &owner}}
	assert.Equal(t, "me", ActivePlayer(v))
	assert.Equal(t, "", ActivePlayer(store.View{}))
}
