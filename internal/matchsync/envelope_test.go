package matchsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	env := Decode([]byte(`{"type":"MATCH_UPDATE","match":{"id":"m1","code":"AB12","status":"WAITING","players":[]}}`))
	me, ok := env.(MatchEnvelope)
	require.True(t, ok, "%T", env)
	assert.Equal(t, "AB12", me.Match.Code)

	env = Decode([]byte(`{"type":"GAME_STATE_UPDATE","gameState":{"matchId":"m1","phase":"MAIN","turnNumber":2}}`))
	se, ok := env.(StateEnvelope)
	require.True(t, ok, "%T", env)
	assert.Equal(t, 2, se.State.TurnNumber)

	env = Decode([]byte(`{"type":"SYNC","match":{"id":"m1","status":"STARTED"},"gameState":null}`))
	sync, ok := env.(SyncEnvelope)
	require.True(t, ok, "%T", env)
	assert.NotNil(t, sync.Match)
	assert.Nil(t, sync.State)

	assert.IsType(t, PingEnvelope{}, Decode([]byte(`{"type":"PING"}`)))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":             `{{{`,
		"unknown type":         `{"type":"CHAT","match":{"id":"m1","status":"WAITING"}}`,
		"missing match":        `{"type":"MATCH_UPDATE"}`,
		"wrong match shape":    `{"type":"MATCH_UPDATE","match":{"id":7}}`,
		"state without match":  `{"type":"GAME_STATE_UPDATE","gameState":{"phase":"MAIN"}}`,
		"empty sync":           `{"type":"SYNC"}`,
		"sync with bad state":  `{"type":"SYNC","match":{"id":"m1","status":"STARTED"},"gameState":"oops"}`,
		"match missing status": `{"type":"MATCH_UPDATE","match":{"id":"m1"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			env := Decode([]byte(raw))
			u, ok := env.(Unparseable)
			require.True(t, ok, "%T", env)
			assert.Error(t, u.Err)
		})
	}
}
