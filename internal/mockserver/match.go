// internal/mockserver/match.go
package mockserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/holosync/internal/api"
	"github.com/jason-s-yu/holosync/internal/models"
)

// recentActionLimit bounds the action log carried in every snapshot.
const recentActionLimit = 30

// ruleError is a refused request; status is the HTTP status to answer with.
type ruleError struct {
	status int
	msg    string
}

func (e *ruleError) Error() string { return e.msg }

func conflict(format string, args ...any) *ruleError {
	return &ruleError{status: http.StatusConflict, msg: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) *ruleError {
	return &ruleError{status: http.StatusForbidden, msg: fmt.Sprintf(format, args...)}
}

// match is one room and, once started, its game. Every method expects mu to be held by the
// caller except subscribe/unsubscribe/publish.
type match struct {
	mu      sync.Mutex
	summary models.MatchSummary
	state   *models.GameSnapshot
	order   int
	draws   map[string]int

	subMu   sync.Mutex
	subs    map[int]chan []byte
	nextSub int
}

func newMatch(hostID, code string) *match {
	return &match{
		summary: models.MatchSummary{
			ID:      uuid.NewString(),
			Code:    code,
			Status:  models.StatusWaiting,
			HostID:  hostID,
			Players: []models.MatchPlayer{{ID: hostID}},
		},
		draws: map[string]int{},
		subs:  map[int]chan []byte{},
	}
}

func (m *match) join(playerID string) error {
	if m.summary.HasPlayer(playerID) {
		return nil
	}
	if m.summary.Status != models.StatusWaiting {
		return conflict("match is not accepting players")
	}
	if len(m.summary.Players) >= 2 {
		return conflict("match is full")
	}
	m.summary.Players = append(m.summary.Players, models.MatchPlayer{ID: playerID})
	m.summary.Status = models.StatusReady
	return nil
}

func (m *match) setReady(playerID string, ready bool) error {
	if !m.summary.HasPlayer(playerID) {
		return forbidden("not a player in this match")
	}
	if m.summary.Status != models.StatusWaiting && m.summary.Status != models.StatusReady {
		return conflict("match is no longer in the lobby")
	}
	players := make([]models.MatchPlayer, len(m.summary.Players))
	for i, p := range m.summary.Players {
		if p.ID == playerID {
			p.Ready = ready
		}
		players[i] = p
	}
	m.summary.Players = players
	return nil
}

func (m *match) start(playerID string) error {
	if playerID != m.summary.HostID {
		return forbidden("only the host can start the match")
	}
	if m.summary.Status != models.StatusReady {
		return conflict("match is not ready")
	}
	for _, p := range m.summary.Players {
		if !p.Ready {
			return conflict("not every player is ready")
		}
	}

	state := &models.GameSnapshot{
		MatchID:        m.summary.ID,
		Phase:          models.PhaseMain,
		TurnNumber:     1,
		ActivePlayerID: m.summary.HostID,
		Players:        map[string]models.PlayerState{},
	}
	for _, p := range m.summary.Players {
		board := models.PlayerState{
			PlayerID:       p.ID,
			Center:         m.instance(p.ID, "hSD01-003", models.ZoneCenter),
			DeckCount:      startingDeck,
			CheerDeckCount: startingCheerDeck,
			LifeCount:      startingLife,
		}
		for range startingHand {
			board.Hand = append(board.Hand, *m.instance(p.ID, m.nextDraw(p.ID), models.ZoneHand))
		}
		board.HandCount = len(board.Hand)
		state.Players[p.ID] = board
	}
	m.state = state

	m.summary.Status = models.StatusStarted
	m.syncTurn()
	return nil
}

func (m *match) concede(playerID string) error {
	if !m.summary.HasPlayer(playerID) {
		return forbidden("not a player in this match")
	}
	if m.summary.Status != models.StatusStarted {
		return conflict("match has not started")
	}
	m.record(playerID, models.RecordConcede, nil)
	for _, p := range m.summary.Players {
		if p.ID != playerID {
			winner := p.ID
			m.summary.WinnerID = &winner
		}
	}
	m.summary.Status = models.StatusFinished
	return nil
}

// act applies one in-match action. Only the turn cycle and interrupt resolution change the
// board; every other kind is accepted and logged.
func (m *match) act(playerID, kind string, body json.RawMessage) error {
	if !m.summary.HasPlayer(playerID) {
		return forbidden("not a player in this match")
	}
	if m.summary.Status != models.StatusStarted || m.state == nil {
		return conflict("match has not started")
	}

	switch kind {
	case api.KindResolveDecision:
		return m.resolveDecision(playerID, body)
	case api.KindResolveInteraction:
		return m.resolveInteraction(playerID, body)
	}
	if len(m.state.PendingDecisions) > 0 || len(m.state.PendingInteractions) > 0 {
		return conflict("a pending choice must be resolved first")
	}
	if m.state.ActivePlayerID != playerID {
		return conflict("not your turn")
	}

	switch kind {
	case api.KindDraw:
		return m.draw(playerID)
	case api.KindSendCheer:
		return m.sendCheer(playerID, body)
	case api.KindEndTurn:
		return m.endTurn(playerID)
	case api.KindPlayToStage, api.KindPlaySupport, api.KindBloom, api.KindAttachCheer,
		api.KindAttack, api.KindMoveStageHolomem:
		m.record(playerID, recordKind(kind), body)
		return nil
	}
	return &ruleError{status: http.StatusNotFound, msg: fmt.Sprintf("unknown action %q", kind)}
}

func (m *match) draw(playerID string) error {
	if m.used(playerID, models.RecordDrawTurn) {
		return conflict("already drew this turn")
	}
	board := m.state.Players[playerID]
	if board.DeckCount == 0 {
		return conflict("deck is empty")
	}
	board.DeckCount--
	board.Hand = append(append([]models.ZoneCardInstance(nil), board.Hand...), *m.instance(playerID, m.nextDraw(playerID), models.ZoneHand))
	board.HandCount = len(board.Hand)
	m.state.Players[playerID] = board
	m.record(playerID, models.RecordDrawTurn, nil)
	return nil
}

type sendCheerBody struct {
	TargetInstanceID string `json:"targetInstanceId"`
}

func (m *match) sendCheer(playerID string, body json.RawMessage) error {
	if m.used(playerID, models.RecordTurnCheer) {
		return conflict("cheer already sent this turn")
	}
	board := m.state.Players[playerID]
	if board.CheerDeckCount == 0 {
		return conflict("cheer deck is empty")
	}
	var req sendCheerBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return &ruleError{status: http.StatusBadRequest, msg: "bad send-cheer payload"}
		}
	}
	board.CheerDeckCount--
	if req.TargetInstanceID != "" && board.Center != nil && board.Center.InstanceID == req.TargetInstanceID {
		center := *board.Center
		battle := models.BattleAttrs{Cheers: map[string]int{}}
		if center.Battle != nil {
			battle = *center.Battle
			battle.Cheers = make(map[string]int, len(center.Battle.Cheers)+1)
			for color, n := range center.Battle.Cheers {
				battle.Cheers[color] = n
			}
		}
		battle.Cheers["white"]++
		center.Battle = &battle
		board.Center = &center
	}
	m.state.Players[playerID] = board
	m.record(playerID, models.RecordTurnCheer, body)
	return nil
}

func (m *match) endTurn(playerID string) error {
	board := m.state.Players[playerID]
	var missing []string
	if board.DeckCount > 0 && !m.used(playerID, models.RecordDrawTurn) {
		missing = append(missing, "draw")
	}
	if board.CheerDeckCount > 0 && !m.used(playerID, models.RecordTurnCheer) {
		missing = append(missing, "send-cheer")
	}
	if len(missing) > 0 {
		return conflict("mandatory actions remaining: %s", strings.Join(missing, ", "))
	}

	m.record(playerID, models.RecordEndTurn, nil)
	for _, p := range m.summary.Players {
		if p.ID != playerID {
			m.state.ActivePlayerID = p.ID
		}
	}
	m.state.TurnNumber++
	m.state.Phase = models.PhaseMain
	m.syncTurn()
	return nil
}

type resolveBody struct {
	DecisionID    string   `json:"decisionId"`
	InteractionID string   `json:"interactionId"`
	Selected      []string `json:"selectedInstanceIds"`
}

func (m *match) resolveDecision(playerID string, body json.RawMessage) error {
	var req resolveBody
	if err := json.Unmarshal(body, &req); err != nil {
		return &ruleError{status: http.StatusBadRequest, msg: "bad resolve-decision payload"}
	}
	if len(m.state.PendingDecisions) == 0 || m.state.PendingDecisions[0].ID != req.DecisionID {
		return conflict("decision %s is not pending", req.DecisionID)
	}
	if owner := m.state.PendingDecisions[0].PlayerID; owner != "" && owner != playerID {
		return forbidden("decision %s belongs to another player", req.DecisionID)
	}
	m.state.PendingDecisions = append([]models.PendingDecision(nil), m.state.PendingDecisions[1:]...)
	m.record(playerID, "RESOLVE_DECISION", body)
	return nil
}

func (m *match) resolveInteraction(playerID string, body json.RawMessage) error {
	var req resolveBody
	if err := json.Unmarshal(body, &req); err != nil {
		return &ruleError{status: http.StatusBadRequest, msg: "bad resolve-interaction payload"}
	}
	if len(m.state.PendingInteractions) == 0 || m.state.PendingInteractions[0].ID != req.InteractionID {
		return conflict("interaction %s is not pending", req.InteractionID)
	}
	m.state.PendingInteractions = append([]models.PendingInteraction(nil), m.state.PendingInteractions[1:]...)
	m.record(playerID, "RESOLVE_INTERACTION", body)
	return nil
}

// used reports whether playerID already logged kind during the current turn.
func (m *match) used(playerID, kind string) bool {
	for _, rec := range m.state.RecentActions {
		if rec.ActorID == playerID && rec.Kind == kind && rec.TurnNumber == m.state.TurnNumber {
			return true
		}
	}
	return false
}

func (m *match) record(playerID, kind string, payload json.RawMessage) {
	if m.state == nil {
		return
	}
	m.order++
	log := append(append([]models.ActionRecord(nil), m.state.RecentActions...), models.ActionRecord{
		ActorID:    playerID,
		Kind:       kind,
		TurnNumber: m.state.TurnNumber,
		Order:      m.order,
		Payload:    payload,
	})
	if len(log) > recentActionLimit {
		log = log[len(log)-recentActionLimit:]
	}
	m.state.RecentActions = log
}

func (m *match) syncTurn() {
	active := m.state.ActivePlayerID
	m.summary.ActivePlayerID = &active
	m.summary.TurnNumber = m.state.TurnNumber
}

func (m *match) instance(playerID, templateID, zone string) *models.ZoneCardInstance {
	return &models.ZoneCardInstance{
		InstanceID: uuid.NewString(),
		TemplateID: templateID,
		Zone:       zone,
		FaceUp:     zone != models.ZoneHand,
	}
}

func (m *match) nextDraw(playerID string) string {
	n := m.draws[playerID]
	m.draws[playerID] = n + 1
	return drawOrder[n%len(drawOrder)]
}

// recordKind maps an action path kind such as "play-to-stage" to its log kind PLAY_TO_STAGE.
func recordKind(kind string) string {
	return strings.ToUpper(strings.ReplaceAll(kind, "-", "_"))
}

// syncMessage encodes the SYNC envelope for the current state. Caller holds mu.
func (m *match) syncMessage() ([]byte, error) {
	return json.Marshal(struct {
		Type      string               `json:"type"`
		Match     models.MatchSummary  `json:"match"`
		GameState *models.GameSnapshot `json:"gameState,omitempty"`
	}{Type: "SYNC", Match: m.summary, GameState: m.state})
}

func (m *match) subscribe() (int, <-chan []byte) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan []byte, 16)
	m.subs[id] = ch
	return id, ch
}

func (m *match) unsubscribe(id int) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	delete(m.subs, id)
}

// publish hands msg to every subscriber without blocking; a full subscriber misses it and
// catches up through polling.
func (m *match) publish(msg []byte) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
