// internal/actions/resolver.go
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/holosync/internal/api"
	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/i18n"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// MaxBackSlots is the back-row capacity.
const MaxBackSlots = 5

// DefaultTimeout bounds a submission when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Remote is the part of the API client used by resolvers. Every method is expected to run
// through the session guard.
type Remote interface {
	CreateMatch(ctx context.Context) (*models.MatchSummary, error)
	JoinMatch(ctx context.Context, code string) (*models.MatchSummary, error)
	SetReady(ctx context.Context, matchID string, ready bool) (*models.MatchSummary, error)
	StartMatch(ctx context.Context, matchID string) (*models.MatchSummary, error)
	Concede(ctx context.Context, matchID string) (*models.MatchSummary, error)
	SubmitAction(ctx context.Context, matchID, kind string, payload any) (*models.MatchSummary, error)
	GetMatch(ctx context.Context, matchID string) (*models.MatchSummary, error)
	GetState(ctx context.Context, matchID string) (*models.GameSnapshot, error)
}

// CardLookup resolves catalog metadata for a template id.
type CardLookup interface {
	Lookup(ctx context.Context, templateID string) (models.CardInfo, bool)
}

// HistoryRecorder receives one record per submitted action.
type HistoryRecorder interface {
	Record(rec cache.ActionRecord)
}

// Deps bundles what a Resolver needs.
type Deps struct {
	Remote  Remote
	Store   *store.Store
	Gate    *gate.Gate
	Cards   CardLookup
	History HistoryRecorder
	Player  gate.PlayerIdentity
	Printer *i18n.Printer
	Logger  *logrus.Logger
	Timeout time.Duration
}

// Resolver turns player intents into gated, validated server requests and folds the
// results back into the store.
type Resolver struct {
	remote  Remote
	store   *store.Store
	gate    *gate.Gate
	cards   CardLookup
	history HistoryRecorder
	player  gate.PlayerIdentity
	printer *i18n.Printer
	logger  *logrus.Logger
	timeout time.Duration
}

func New(d Deps) *Resolver {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.Printer == nil {
		d.Printer = i18n.NewPrinter("")
	}
	return &Resolver{
		remote:  d.Remote,
		store:   d.Store,
		gate:    d.Gate,
		cards:   d.Cards,
		history: d.History,
		player:  d.Player,
		printer: d.Printer,
		logger:  d.Logger,
		timeout: d.Timeout,
	}
}

// call is one request to the server made on behalf of an action.
type call func(ctx context.Context) (*models.MatchSummary, error)

// acquire claims the gate for mode or returns the refusal.
func (r *Resolver) acquire(mode gate.Mode) (func(), error) {
	release, reason := r.gate.Acquire(mode)
	if reason != gate.ReasonNone {
		return nil, r.refuse(reason, nil)
	}
	return release, nil
}

// refuse builds a RefusalError for reason and surfaces its message in the store.
func (r *Resolver) refuse(reason gate.Reason, details []string) *RefusalError {
	err := &RefusalError{Reason: reason, Message: r.ReasonMessage(reason), Details: details}
	r.store.SetError(err.Message)
	return err
}

// illegal refuses with ReasonIllegal and one or more detail lines.
func (r *Resolver) illegal(details ...string) *RefusalError {
	return r.refuse(ReasonIllegal, details)
}

// ReasonMessage is the localized text of a refusal reason.
func (r *Resolver) ReasonMessage(reason gate.Reason) string {
	key := i18n.KeyIllegal
	switch reason {
	case gate.ReasonBusy:
		key = i18n.KeyBusy
	case gate.ReasonNotYourTurn:
		key = i18n.KeyNotYourTurn
	case gate.ReasonNotStarted:
		key = i18n.KeyNotStarted
	case gate.ReasonDecisionPending:
		key = i18n.KeyDecisionPending
	case gate.ReasonInteractionPending:
		key = i18n.KeyInteractionPending
	case gate.ReasonProtocolViolation:
		key = i18n.KeyProtocolViolation
	case ReasonInspectOnly:
		key = i18n.KeyInspectOnly
	}
	return r.printer.Sprintf(key)
}

// dispatch validates payload, sends it with the action timeout and absorbs the result.
// The caller holds the gate; release is called before any post-failure re-sync so a slow
// re-sync never extends the in-flight window.
func (r *Resolver) dispatch(ctx context.Context, release func(), matchID, kind string, payload any, fn call) (*models.MatchSummary, error) {
	defer release()

	if v, ok := payload.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, r.illegal(err.Error())
		}
	}

	log := r.logger.WithFields(logrus.Fields{"match_id": matchID, "action": kind})

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	summary, err := fn(callCtx)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()

	if err == nil {
		r.record(matchID, kind, payload, "ok", "")
		log.Debug("action accepted")
		r.succeed(ctx, summary)
		return summary, nil
	}

	release()
	if timedOut {
		err = errors.Join(ErrActionTimeout, err)
		r.record(matchID, kind, payload, "timeout", err.Error())
		r.store.SetError(r.printer.Sprintf(i18n.KeyTimeout))
	} else {
		outcome := "error"
		var serr *api.ServerError
		if errors.As(err, &serr) {
			outcome = "rejected"
		}
		r.record(matchID, kind, payload, outcome, err.Error())
		r.store.SetError(api.UserMessage(err))
	}
	log.WithError(err).Warn("action failed, re-syncing")

	if matchID != "" {
		r.Resync(context.WithoutCancel(ctx), matchID)
	}
	return nil, err
}

// succeed stores the returned summary and eagerly re-fetches the snapshot of a started match.
func (r *Resolver) succeed(ctx context.Context, summary *models.MatchSummary) {
	r.store.ClearError()
	if summary == nil {
		return
	}
	r.store.Apply(summary, nil)
	if summary.Status != models.StatusStarted {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	snap, err := r.remote.GetState(ctx, summary.ID)
	if err != nil {
		r.logger.WithError(err).WithField("match_id", summary.ID).Warn("snapshot refresh after action failed")
		return
	}
	r.store.Apply(nil, snap)
}

// Resync unconditionally fetches both the summary and the snapshot of matchID and applies
// whatever arrived. Errors are logged; the polling loop will heal later.
func (r *Resolver) Resync(ctx context.Context, matchID string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		summary *models.MatchSummary
		snap    *models.GameSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = r.remote.GetMatch(gctx, matchID)
		return err
	})
	g.Go(func() error {
		s, err := r.remote.GetState(gctx, matchID)
		if err != nil {
			// No snapshot exists before the match starts.
			r.logger.WithError(err).WithField("match_id", matchID).Debug("re-sync snapshot unavailable")
			return nil
		}
		snap = s
		return nil
	})
	if err := g.Wait(); err != nil {
		r.logger.WithError(err).WithField("match_id", matchID).Warn("re-sync failed")
	}
	if summary != nil && summary.ID != matchID {
		summary = nil
	}
	if summary == nil && snap == nil {
		return
	}
	r.store.Apply(summary, snap)
}

// recordRefusal logs an action that was refused locally and never sent.
func (r *Resolver) recordRefusal(kind string, err error) {
	var refusal *RefusalError
	if !errors.As(err, &refusal) {
		return
	}
	var matchID string
	if m := r.store.Match(); m != nil {
		matchID = m.ID
	}
	r.record(matchID, kind, nil, "refused", refusal.Error())
}

func (r *Resolver) record(matchID, kind string, payload any, outcome, detail string) {
	if r.history == nil {
		return
	}
	var raw json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	r.history.Record(cache.ActionRecord{
		MatchID:    matchID,
		ActorID:    r.player.PlayerID(),
		ActionType: kind,
		Payload:    raw,
		Outcome:    outcome,
		Detail:     detail,
	})
}

// matchState returns the store view and the local player's board for an in-match action.
func (r *Resolver) matchState() (store.View, models.PlayerState, error) {
	v := r.store.View()
	if v.Match == nil {
		return v, models.PlayerState{}, r.refuse(gate.ReasonNotStarted, nil)
	}
	me, ok := v.Snapshot.Player(r.player.PlayerID())
	if !ok {
		return v, me, r.illegal("game state not loaded yet")
	}
	return v, me, nil
}
