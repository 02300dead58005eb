package mockserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s, err := New(logger, 0)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func signIn(t *testing.T, ts *httptest.Server, identity string) sessionResponse {
	t.Helper()
	resp := call(t, ts, http.MethodPost, "/session", "", sessionRequest{Identity: identity})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	return sess
}

func TestSessionIsStablePerIdentity(t *testing.T) {
	_, ts := newTestServer(t)
	first := signIn(t, ts, "alice")
	second := signIn(t, ts, "alice")
	other := signIn(t, ts, "bob")

	assert.Equal(t, first.PlayerID, second.PlayerID)
	assert.NotEqual(t, first.PlayerID, other.PlayerID)
	assert.NotEmpty(t, first.Token)
}

func TestExpireTokensRejectsOldCredentials(t *testing.T) {
	s, ts := newTestServer(t)
	sess := signIn(t, ts, "alice")

	resp := call(t, ts, http.MethodPost, "/matches", sess.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.ExpireTokens()
	resp = call(t, ts, http.MethodPost, "/matches", sess.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	fresh := signIn(t, ts, "alice")
	resp = call(t, ts, http.MethodPost, "/matches", fresh.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMatchEndpoints(t *testing.T) {
	s, ts := newTestServer(t)
	host := signIn(t, ts, "alice")
	guest := signIn(t, ts, "bob")

	resp := call(t, ts, http.MethodPost, "/matches", host.Token, nil)
	var created models.MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, models.StatusWaiting, created.Status)
	assert.Len(t, created.Code, 6)

	resp = call(t, ts, http.MethodGet, "/matches/"+created.ID, guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "outsiders cannot read the match")

	resp = call(t, ts, http.MethodPost, "/matches/join", guest.Token, map[string]string{"code": created.Code})
	var joined models.MatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&joined))
	assert.Equal(t, models.StatusReady, joined.Status)

	resp = call(t, ts, http.MethodGet, "/matches/"+created.ID+"/state", host.Token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	call(t, ts, http.MethodPost, "/matches/"+created.ID+"/ready", host.Token, map[string]bool{"ready": true})
	call(t, ts, http.MethodPost, "/matches/"+created.ID+"/ready", guest.Token, map[string]bool{"ready": true})
	resp = call(t, ts, http.MethodPost, "/matches/"+created.ID+"/start", host.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = call(t, ts, http.MethodPost, "/matches/"+created.ID+"/actions/draw", guest.Token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not your turn", body["error"])

	require.NoError(t, s.InjectInteraction(created.ID, models.PendingInteraction{ID: "i1", Kind: "confirm"}))
	resp = call(t, ts, http.MethodGet, "/matches/"+created.ID+"/state", host.Token, nil)
	var snap models.GameSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap.PendingInteractions, 1)

	resp = call(t, ts, http.MethodGet, "/cards/hSD01-003", host.Token, nil)
	var card models.CardInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, models.CardTypeHolomem, card.Type)

	assert.ErrorIs(t, s.InjectDecision("missing", models.PendingDecision{ID: "d"}), ErrMatchNotFound)
}
