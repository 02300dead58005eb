package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/jason-s-yu/holosync/internal/middleware"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClientRecoversFromExpiredToken runs the guard against a real HTTP round trip: the
// first GET is rejected with 401, the client signs in again and the retry succeeds.
func TestClientRecoversFromExpiredToken(t *testing.T) {
	var sessions, gets atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		sessions.Add(1)
		json.NewEncoder(w).Encode(auth.Credential{Token: "new", PlayerID: "p1"})
	})
	mux.HandleFunc("GET /matches/m1", func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		assert.NotEmpty(t, r.Header.Get(middleware.RequestIDHeader))
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
			return
		}
		json.NewEncoder(w).Encode(models.MatchSummary{ID: "m1", Code: "ABCD", Status: models.StatusWaiting})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := auth.NewSession(nil)
	require.NoError(t, err)
	require.NoError(t, session.Set(auth.Credential{Token: "old", PlayerID: "p1"}, auth.StatusSignedIn))

	c, err := NewClient(srv.URL, "p1", session, quietLogger(), nil)
	require.NoError(t, err)

	m, err := c.GetMatch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "ABCD", m.Code)
	assert.EqualValues(t, 1, sessions.Load())
	assert.EqualValues(t, 2, gets.Load())
	assert.Equal(t, "new", session.Token())
}

func TestClientServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"message": "already drew this turn"})
	}))
	defer srv.Close()

	session, _ := auth.NewSession(nil)
	require.NoError(t, session.Set(auth.Credential{Token: "t", PlayerID: "p"}, auth.StatusSignedIn))
	c, err := NewClient(srv.URL, "p", session, quietLogger(), nil)
	require.NoError(t, err)

	_, err = c.SubmitAction(context.Background(), "m1", KindDraw, struct{}{})
	var se *ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.Status)
	assert.Equal(t, "already drew this turn", UserMessage(err))
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestPushURL(t *testing.T) {
	session, _ := auth.NewSession(nil)
	c, err := NewClient("https://rules.example/api/", "p", session, quietLogger(), nil)
	require.NoError(t, err)
	assert.Equal(t, "wss://rules.example/api/matches/m%201/ws", c.PushURL("m 1"))
}
