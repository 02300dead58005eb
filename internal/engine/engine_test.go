package engine

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jason-s-yu/holosync/internal/actions"
	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/jason-s-yu/holosync/internal/config"
	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/mockserver"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second
const tick = 10 * time.Millisecond

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newMockServer(t *testing.T) (*mockserver.Server, *httptest.Server) {
	t.Helper()
	ms, err := mockserver.New(quietLogger(), 0)
	require.NoError(t, err)
	ts := httptest.NewServer(ms.Handler())
	t.Cleanup(ts.Close)
	return ms, ts
}

func newEngine(t *testing.T, url, identity string) *Engine {
	t.Helper()
	cfg := config.Config{
		APIURL:            url,
		Identity:          identity,
		LobbyPollInterval: 50 * time.Millisecond,
		MatchPollInterval: time.Second,
		ActionTimeout:     2 * time.Second,
		Locale:            "zh-TW",
	}
	e, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, e.SignIn(context.Background()))
	return e
}

// startMatch runs the lobby flow: host creates, guest joins by code, both ready, host starts.
func startMatch(t *testing.T, host, guest *Engine) string {
	t.Helper()
	ctx := context.Background()

	created, err := host.CreateMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, created.Status)

	joined, err := guest.JoinMatch(ctx, created.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, joined.Status)
	assert.True(t, joined.HasPlayer(host.Session().PlayerID()))
	assert.True(t, joined.HasPlayer(guest.Session().PlayerID()))

	_, err = host.SetReady(ctx, true)
	require.NoError(t, err)
	_, err = guest.SetReady(ctx, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m := host.View().Match
		if m == nil || m.Status != models.StatusReady {
			return false
		}
		for _, p := range m.Players {
			if !p.Ready {
				return false
			}
		}
		return true
	}, waitFor, tick, "host sees both players ready")

	started, err := host.StartMatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, started.Status)
	assert.Equal(t, 1, started.TurnNumber)
	assert.Equal(t, host.Session().PlayerID(), started.ActivePlayer())

	require.Eventually(t, func() bool {
		v := guest.View()
		return v.Match != nil && v.Match.Status == models.StatusStarted && v.Snapshot != nil
	}, waitFor, tick, "guest observes the start")
	return created.ID
}

func TestEndToEndTurn(t *testing.T) {
	_, ts := newMockServer(t)
	alice := newEngine(t, ts.URL, "alice")
	bob := newEngine(t, ts.URL, "bob")
	ctx := context.Background()

	startMatch(t, alice, bob)

	_, err := bob.Draw(ctx)
	assert.Equal(t, gate.ReasonNotYourTurn, actions.ReasonOf(err))

	_, err = alice.Draw(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return alice.Usage().DrawUsed }, waitFor, tick)

	_, err = alice.EndTurn(ctx)
	var refusal *actions.RefusalError
	require.ErrorAs(t, err, &refusal)
	assert.Equal(t, []string{"發送吶喊"}, refusal.Details)
	assert.Contains(t, alice.View().Error, "發送吶喊")

	_, err = alice.SendCheer(ctx, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return alice.Usage().CheerUsed }, waitFor, tick)

	summary, err := alice.EndTurn(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob.Session().PlayerID(), summary.ActivePlayer())
	assert.Equal(t, 2, summary.TurnNumber)

	require.Eventually(t, func() bool { return bob.CanAct() }, waitFor, tick, "turn passes to bob")
	require.Eventually(t, func() bool { return alice.BlockReason() == gate.ReasonNotYourTurn }, waitFor, tick)
	assert.Equal(t, "現在不是你的回合", alice.BlockMessage())
}

func TestPushChannelDeliversInterrupts(t *testing.T) {
	ms, ts := newMockServer(t)
	alice := newEngine(t, ts.URL, "alice")
	bob := newEngine(t, ts.URL, "bob")
	ctx := context.Background()

	matchID := startMatch(t, alice, bob)
	require.Eventually(t, func() bool { return alice.View().Channel == store.ChannelConnected }, waitFor, tick)
	require.Eventually(t, func() bool { return bob.View().Channel == store.ChannelConnected }, waitFor, tick)

	center := alice.View().Snapshot.Players[alice.Session().PlayerID()].Center
	require.NotNil(t, center)
	require.NoError(t, ms.InjectDecision(matchID, models.PendingDecision{
		ID: "d1", Effect: "pick a member", PlayerID: alice.Session().PlayerID(), MinSelect: 1, MaxSelect: 1,
		Candidates: []models.CandidateCard{{InstanceID: center.InstanceID, TemplateID: center.TemplateID}},
	}))

	// Match polling runs every second; the push channel is what delivers this quickly.
	require.Eventually(t, func() bool { return alice.BlockReason() == gate.ReasonDecisionPending }, 500*time.Millisecond, tick)
	require.Eventually(t, func() bool { return bob.BlockReason() == gate.ReasonDecisionPending }, 500*time.Millisecond, tick)

	_, err := bob.Concede(ctx)
	assert.Equal(t, gate.ReasonDecisionPending, actions.ReasonOf(err))

	_, err = alice.ResolveDecision(ctx, "d1", []string{center.InstanceID})
	require.NoError(t, err)
	require.Eventually(t, alice.CanAct, waitFor, tick)
}

func TestExpiredTokenIsRenewedTransparently(t *testing.T) {
	ms, ts := newMockServer(t)
	alice := newEngine(t, ts.URL, "alice")
	bob := newEngine(t, ts.URL, "bob")
	ctx := context.Background()

	matchID := startMatch(t, alice, bob)
	before := alice.Session().Token()

	ms.ExpireTokens()
	_, err := alice.Draw(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, alice.Session().Token())
	assert.Equal(t, auth.StatusReauthenticated, alice.Session().Status())

	_, err = bob.Concede(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		m := alice.View().Match
		return m != nil && m.ID == matchID && m.Status == models.StatusFinished
	}, waitFor, tick)
}

func TestLeaveMatchClearsState(t *testing.T) {
	_, ts := newMockServer(t)
	alice := newEngine(t, ts.URL, "alice")

	created, err := alice.CreateMatch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, alice.View().Match)

	alice.LeaveMatch()
	alice.LeaveMatch()
	assert.Nil(t, alice.View().Match)
	assert.Equal(t, store.ChannelDisconnected, alice.View().Channel)

	require.NoError(t, alice.EnterMatch(context.Background(), created.ID))
	assert.Equal(t, created.ID, alice.View().Match.ID)
}
