// internal/actions/lobby.go
package actions

import (
	"context"
	"strings"

	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/models"
)

// Record kinds of lobby operations in the action history.
const (
	kindCreateMatch = "create-match"
	kindJoinMatch   = "join-match"
	kindReady       = "ready"
	kindStartMatch  = "start-match"
	kindConcede     = "concede"
)

// CreateMatch opens a new room hosted by the local player.
func (r *Resolver) CreateMatch(ctx context.Context) (*models.MatchSummary, error) {
	release, err := r.acquire(gate.ModeLobby)
	if err != nil {
		return nil, err
	}
	return r.dispatch(ctx, release, "", kindCreateMatch, nil, r.remote.CreateMatch)
}

// JoinMatch joins a room by its code.
func (r *Resolver) JoinMatch(ctx context.Context, code string) (*models.MatchSummary, error) {
	release, err := r.acquire(gate.ModeLobby)
	if err != nil {
		return nil, err
	}
	payload := JoinPayload{Code: strings.ToUpper(strings.TrimSpace(code))}
	return r.dispatch(ctx, release, "", kindJoinMatch, payload, func(ctx context.Context) (*models.MatchSummary, error) {
		return r.remote.JoinMatch(ctx, payload.Code)
	})
}

// SetReady toggles the local player's ready flag in the current lobby.
func (r *Resolver) SetReady(ctx context.Context, ready bool) (*models.MatchSummary, error) {
	release, err := r.acquire(gate.ModeLobby)
	if err != nil {
		return nil, err
	}
	defer release()

	m := r.store.Match()
	if m == nil {
		return nil, r.illegal("not in a match")
	}
	if m.Status == models.StatusStarted || m.Status.Terminal() {
		return nil, r.illegal("the match is no longer in the lobby")
	}
	return r.dispatch(ctx, release, m.ID, kindReady, map[string]bool{"ready": ready}, func(ctx context.Context) (*models.MatchSummary, error) {
		return r.remote.SetReady(ctx, m.ID, ready)
	})
}

// StartMatch starts the current lobby. Only the host may start, and only once every seated
// player is ready.
func (r *Resolver) StartMatch(ctx context.Context) (*models.MatchSummary, error) {
	release, err := r.acquire(gate.ModeLobby)
	if err != nil {
		return nil, err
	}
	defer release()

	m := r.store.Match()
	switch {
	case m == nil:
		return nil, r.illegal("not in a match")
	case m.HostID != r.player.PlayerID():
		return nil, r.illegal("only the host can start the match")
	case m.Status != models.StatusReady:
		return nil, r.illegal("the match is not ready to start")
	}
	for _, p := range m.Players {
		if !p.Ready {
			return nil, r.illegal("not every player is ready")
		}
	}
	return r.dispatch(ctx, release, m.ID, kindStartMatch, nil, func(ctx context.Context) (*models.MatchSummary, error) {
		return r.remote.StartMatch(ctx, m.ID)
	})
}
