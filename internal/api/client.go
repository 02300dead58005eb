// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/jason-s-yu/holosync/internal/middleware"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/sirupsen/logrus"
)

// Action kinds accepted by POST /matches/{id}/actions/{kind}.
const (
	KindPlayToStage        = "play-to-stage"
	KindPlaySupport        = "play-support"
	KindBloom              = "bloom"
	KindAttachCheer        = "attach-cheer"
	KindAttack             = "attack"
	KindDraw               = "draw"
	KindSendCheer          = "send-cheer"
	KindMoveStageHolomem   = "move-stage-holomem"
	KindResolveDecision    = "resolve-decision"
	KindResolveInteraction = "resolve-interaction"
	KindEndTurn            = "end-turn"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Client talks to the rules server. Every call except SignIn goes through the session guard.
type Client struct {
	base    *url.URL
	http    *http.Client
	session *auth.Session
	guard   *Guard
	logger  *logrus.Logger
}

// NewClient builds a client for baseURL. identity is the local mock credential used to
// (re-)authenticate. httpClient may be nil.
func NewClient(baseURL, identity string, session *auth.Session, logger *logrus.Logger, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	hc := *httpClient
	hc.Transport = &middleware.LogTransport{Base: httpClient.Transport, Logger: logger}

	c := &Client{base: u, http: &hc, session: session, logger: logger}
	c.guard = NewGuard(session, c, identity, logger)
	return c, nil
}

// Guard exposes the session guard so other transports (the push channel) can use it.
func (c *Client) Guard() *Guard { return c.guard }

// Session returns the credential context used by the client.
func (c *Client) Session() *auth.Session { return c.session }

type signInRequest struct {
	Identity string `json:"identity"`
}

// SignIn exchanges the mock identity for a bearer token (POST /session). It does not touch
// the session; see Guard.SignIn.
func (c *Client) SignIn(ctx context.Context, identity string) (auth.Credential, error) {
	var cred auth.Credential
	err := c.send(ctx, http.MethodPost, "/session", signInRequest{Identity: identity}, &cred, false)
	if err != nil {
		return auth.Credential{}, err
	}
	if cred.Token == "" || cred.PlayerID == "" {
		return auth.Credential{}, fmt.Errorf("session response missing token or player id")
	}
	return cred, nil
}

func (c *Client) CreateMatch(ctx context.Context) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodPost, "/matches", nil)
}

type joinRequest struct {
	Code string `json:"code"`
}

func (c *Client) JoinMatch(ctx context.Context, code string) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodPost, "/matches/join", joinRequest{Code: code})
}

func (c *Client) GetMatch(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodGet, "/matches/"+url.PathEscape(matchID), nil)
}

type readyRequest struct {
	Ready bool `json:"ready"`
}

func (c *Client) SetReady(ctx context.Context, matchID string, ready bool) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/ready", readyRequest{Ready: ready})
}

func (c *Client) StartMatch(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/start", nil)
}

func (c *Client) Concede(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	return c.match(ctx, http.MethodPost, "/matches/"+url.PathEscape(matchID)+"/concede", nil)
}

// SubmitAction posts an action payload. The server answers with the MatchSummary only; the
// snapshot has to be fetched separately.
func (c *Client) SubmitAction(ctx context.Context, matchID, kind string, payload any) (*models.MatchSummary, error) {
	path := "/matches/" + url.PathEscape(matchID) + "/actions/" + url.PathEscape(kind)
	return c.match(ctx, http.MethodPost, path, payload)
}

func (c *Client) GetState(ctx context.Context, matchID string) (*models.GameSnapshot, error) {
	return Call(ctx, c.guard, func(ctx context.Context) (*models.GameSnapshot, error) {
		var snap models.GameSnapshot
		if err := c.send(ctx, http.MethodGet, "/matches/"+url.PathEscape(matchID)+"/state", nil, &snap, true); err != nil {
			return nil, err
		}
		return &snap, nil
	})
}

func (c *Client) GetCard(ctx context.Context, templateID string) (models.CardInfo, error) {
	return Call(ctx, c.guard, func(ctx context.Context) (models.CardInfo, error) {
		var info models.CardInfo
		err := c.send(ctx, http.MethodGet, "/cards/"+url.PathEscape(templateID), nil, &info, true)
		return info, err
	})
}

// PushURL is the websocket address of the match-scoped push channel.
func (c *Client) PushURL(matchID string) string {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/matches/" + matchID + "/ws"
	return u.String()
}

// AuthHeader returns the Authorization header for the current credential.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if tok := c.session.Token(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

func (c *Client) match(ctx context.Context, method, path string, body any) (*models.MatchSummary, error) {
	return Call(ctx, c.guard, func(ctx context.Context) (*models.MatchSummary, error) {
		var m models.MatchSummary
		if err := c.send(ctx, method, path, body, &m, true); err != nil {
			return nil, err
		}
		return &m, nil
	})
}

// send performs one HTTP round trip and decodes a JSON response into out.
func (c *Client) send(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		tok := c.session.Token()
		if tok == "" {
			return &ServerError{Status: http.StatusUnauthorized, Message: "not signed in"}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newServerError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
