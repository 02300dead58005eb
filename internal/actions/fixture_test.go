package actions

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/i18n"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	me    = "p-me"
	rival = "p-rival"
)

type staticPlayer string

func (p staticPlayer) PlayerID() string { return string(p) }

type submission struct {
	kind    string
	payload any
}

// fakeRemote is an in-memory server: it returns summary and snap and records submissions.
type fakeRemote struct {
	mu         sync.Mutex
	summary    *models.MatchSummary
	snap       *models.GameSnapshot
	submitErr  error
	block      chan struct{}
	entered    chan struct{}
	submitted  []submission
	matchCalls int
	stateCalls int
}

func (f *fakeRemote) current() *models.MatchSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summary == nil {
		return nil
	}
	s := *f.summary
	return &s
}

func (f *fakeRemote) CreateMatch(ctx context.Context) (*models.MatchSummary, error) {
	return f.current(), nil
}

func (f *fakeRemote) JoinMatch(ctx context.Context, code string) (*models.MatchSummary, error) {
	return f.current(), nil
}

func (f *fakeRemote) SetReady(ctx context.Context, matchID string, ready bool) (*models.MatchSummary, error) {
	return f.current(), nil
}

func (f *fakeRemote) StartMatch(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	return f.SubmitAction(ctx, matchID, kindStartMatch, nil)
}

func (f *fakeRemote) Concede(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	return f.SubmitAction(ctx, matchID, kindConcede, nil)
}

func (f *fakeRemote) SubmitAction(ctx context.Context, matchID, kind string, payload any) (*models.MatchSummary, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, submission{kind: kind, payload: payload})
	block, entered, submitErr := f.block, f.entered, f.submitErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if submitErr != nil {
		return nil, submitErr
	}
	return f.current(), nil
}

func (f *fakeRemote) GetMatch(ctx context.Context, matchID string) (*models.MatchSummary, error) {
	f.mu.Lock()
	f.matchCalls++
	f.mu.Unlock()
	return f.current(), nil
}

func (f *fakeRemote) GetState(ctx context.Context, matchID string) (*models.GameSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	if f.snap == nil {
		return nil, errors.New("no state yet")
	}
	s := *f.snap
	return &s, nil
}

func (f *fakeRemote) submissions() []submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submission(nil), f.submitted...)
}

// fakeCards is a fixed catalog.
type fakeCards map[string]models.CardInfo

func (c fakeCards) Lookup(ctx context.Context, templateID string) (models.CardInfo, bool) {
	info, ok := c[templateID]
	return info, ok
}

type memHistory struct {
	mu      sync.Mutex
	records []cache.ActionRecord
}

func (h *memHistory) Record(rec cache.ActionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
}

var testCards = fakeCards{
	"sora-debut":  {TemplateID: "sora-debut", Name: "Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankDebut)},
	"sora-first":  {TemplateID: "sora-first", Name: "Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankFirst)},
	"sora-second": {TemplateID: "sora-second", Name: "Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankSecond)},
	"azki-debut":  {TemplateID: "azki-debut", Name: "AZKi", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankDebut)},
	"friend-spot": {TemplateID: "friend-spot", Name: "Friend", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankSpot)},
	"mic":         {TemplateID: "mic", Name: "Microphone", Type: models.CardTypeSupport},
	"white-cheer": {TemplateID: "white-cheer", Name: "White Cheer", Type: models.CardTypeCheer},
}

type fixture struct {
	resolver *Resolver
	store    *store.Store
	gate     *gate.Gate
	remote   *fakeRemote
	history  *memHistory
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newFixture seats the local player in a started match at turn 3 where it is the local
// player's turn, with a debut Sora in center and a hand of assorted cards.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	summary := &models.MatchSummary{
		ID:             "m1",
		Code:           "ROOM1",
		Status:         models.StatusStarted,
		HostID:         me,
		ActivePlayerID: ptr(me),
		TurnNumber:     3,
		Players:        []models.MatchPlayer{{ID: me, Ready: true}, {ID: rival, Ready: true}},
	}
	snap := &models.GameSnapshot{
		MatchID:        "m1",
		Phase:          models.PhaseMain,
		TurnNumber:     3,
		ActivePlayerID: me,
		Players: map[string]models.PlayerState{
			me: {
				PlayerID: me,
				Center:   &models.ZoneCardInstance{InstanceID: "c-sora", TemplateID: "sora-debut", Zone: models.ZoneCenter},
				Hand: []models.ZoneCardInstance{
					{InstanceID: "h-azki", TemplateID: "azki-debut", Zone: models.ZoneHand},
					{InstanceID: "h-sora1", TemplateID: "sora-first", Zone: models.ZoneHand},
					{InstanceID: "h-sora2", TemplateID: "sora-second", Zone: models.ZoneHand},
					{InstanceID: "h-mic", TemplateID: "mic", Zone: models.ZoneHand},
				},
				DeckCount:      20,
				CheerDeckCount: 10,
			},
			rival: {
				PlayerID:       rival,
				Center:         &models.ZoneCardInstance{InstanceID: "r-azki", TemplateID: "azki-debut", Zone: models.ZoneCenter},
				DeckCount:      20,
				CheerDeckCount: 10,
			},
		},
	}

	st := store.New()
	st.Apply(summary, snap)

	remote := &fakeRemote{summary: summary, snap: snap}
	g := gate.New(st, staticPlayer(me))
	history := &memHistory{}
	r := New(Deps{
		Remote:  remote,
		Store:   st,
		Gate:    g,
		Cards:   testCards,
		History: history,
		Player:  staticPlayer(me),
		Printer: i18n.NewPrinter("zh-TW"),
		Logger:  quietLogger(),
		Timeout: time.Second,
	})
	return &fixture{resolver: r, store: st, gate: g, remote: remote, history: history}
}

// mutate replaces the stored snapshot with a modified copy of the local player's board.
func (f *fixture) mutate(fn func(snap *models.GameSnapshot, mine *models.PlayerState)) {
	cur := f.store.Snapshot()
	next := *cur
	next.Players = make(map[string]models.PlayerState, len(cur.Players))
	for id, p := range cur.Players {
		next.Players[id] = p
	}
	mine := next.Players[me]
	fn(&next, &mine)
	next.Players[me] = mine
	f.store.SetSnapshot(&next)
}

func ptr(s string) *string { return &s }
