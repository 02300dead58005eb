// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jason-s-yu/holosync/internal/actions"
	"github.com/jason-s-yu/holosync/internal/api"
	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/jason-s-yu/holosync/internal/catalog"
	"github.com/jason-s-yu/holosync/internal/config"
	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/i18n"
	"github.com/jason-s-yu/holosync/internal/matchsync"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/jason-s-yu/holosync/internal/turnusage"
	"github.com/sirupsen/logrus"
)

// Engine is one client instance: a signed-in player following at most one match.
// Action resolvers are promoted from the embedded Resolver.
type Engine struct {
	*actions.Resolver

	logger    *logrus.Logger
	session   *auth.Session
	client    *api.Client
	store     *store.Store
	gate      *gate.Gate
	cards     *catalog.Cache
	publisher cache.Publisher
	sync      *matchsync.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Option customizes New.
type Option func(*options)

type options struct {
	httpClient *http.Client
	publisher  cache.Publisher
	tokens     auth.TokenStore
}

// WithHTTPClient sets the HTTP client used for every REST call and the push dial.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithPublisher overrides the action-history publisher chosen from the config.
func WithPublisher(p cache.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithTokenStore overrides where the credential is persisted.
func WithTokenStore(ts auth.TokenStore) Option {
	return func(o *options) { o.tokens = ts }
}

// New wires an engine from cfg. A configured but unreachable Redis only disables the
// action history; it is not fatal.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.tokens == nil {
		o.tokens = auth.NewTokenStore(cfg.CredentialPath)
	}

	session, err := auth.NewSession(o.tokens)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	client, err := api.NewClient(cfg.APIURL, cfg.Identity, session, logger, o.httpClient)
	if err != nil {
		return nil, err
	}

	if o.publisher == nil {
		o.publisher = cache.NopPublisher{}
		if cfg.RedisAddr != "" {
			pub, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.HistoryQueue)
			if err != nil {
				logger.WithError(err).Warn("action history disabled")
			} else {
				o.publisher = pub
			}
		}
	}

	st := store.New()
	g := gate.New(st, session)
	cards := catalog.New(client, logger)
	printer := i18n.NewPrinter(cfg.Locale)

	e := &Engine{
		logger:    logger,
		session:   session,
		client:    client,
		store:     st,
		gate:      g,
		cards:     cards,
		publisher: o.publisher,
		sync: matchsync.NewManager(client, st, logger, matchsync.Intervals{
			Lobby: cfg.LobbyPollInterval,
			Match: cfg.MatchPollInterval,
		}),
	}
	e.Resolver = actions.New(actions.Deps{
		Remote:  client,
		Store:   st,
		Gate:    g,
		Cards:   cards,
		History: cache.NewRecorder(o.publisher, logger),
		Player:  session,
		Printer: printer,
		Logger:  logger,
		Timeout: cfg.ActionTimeout,
	})

	bg, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go e.decorate(bg)
	return e, nil
}

// decorate prefetches catalog entries for every newly observed snapshot.
func (e *Engine) decorate(ctx context.Context) {
	defer e.wg.Done()
	changes, unsubscribe := e.store.Subscribe()
	defer unsubscribe()

	var last *models.GameSnapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
		snap := e.store.Snapshot()
		if snap == nil || snap == last {
			continue
		}
		last = snap
		e.cards.Prefetch(ctx, snap)
	}
}

// SignIn obtains a fresh credential for the configured identity.
func (e *Engine) SignIn(ctx context.Context) error {
	_, err := e.client.Guard().SignIn(ctx)
	return err
}

// SignOut forgets the credential and leaves the active match.
func (e *Engine) SignOut() error {
	e.LeaveMatch()
	return e.session.Clear()
}

// CreateMatch opens a room and starts following it.
func (e *Engine) CreateMatch(ctx context.Context) (*models.MatchSummary, error) {
	e.LeaveMatch()
	m, err := e.Resolver.CreateMatch(ctx)
	if err != nil {
		return nil, err
	}
	e.sync.Enter(m.ID)
	return m, nil
}

// JoinMatch joins a room by code and starts following it.
func (e *Engine) JoinMatch(ctx context.Context, code string) (*models.MatchSummary, error) {
	e.LeaveMatch()
	m, err := e.Resolver.JoinMatch(ctx, code)
	if err != nil {
		return nil, err
	}
	e.sync.Enter(m.ID)
	return m, nil
}

// EnterMatch resumes following an existing match the player already belongs to.
func (e *Engine) EnterMatch(ctx context.Context, matchID string) error {
	e.LeaveMatch()
	m, err := e.client.GetMatch(ctx, matchID)
	if err != nil {
		return fmt.Errorf("load match %s: %w", matchID, err)
	}
	e.store.SetMatch(m)
	if m.Status == models.StatusStarted {
		e.Resync(ctx, matchID)
	}
	if !m.Status.Terminal() {
		e.sync.Enter(matchID)
	}
	return nil
}

// LeaveMatch stops syncing and forgets the match. It is safe to call at any time.
func (e *Engine) LeaveMatch() {
	e.sync.Leave()
	e.store.SetMatch(nil)
	e.store.ClearError()
}

// CanAct reports whether an ordinary in-turn action may be dispatched now.
func (e *Engine) CanAct() bool { return e.gate.CanAct() }

// BlockReason is the first reason an ordinary action would be refused.
func (e *Engine) BlockReason() gate.Reason { return e.gate.BlockReason() }

// BlockMessage is BlockReason localized, or "" when the player can act.
func (e *Engine) BlockMessage() string {
	reason := e.gate.BlockReason()
	if reason == gate.ReasonNone {
		return ""
	}
	return e.ReasonMessage(reason)
}

// Usage returns the local player's once-per-turn usage for the current snapshot.
func (e *Engine) Usage() turnusage.Usage {
	return turnusage.Derive(e.store.Snapshot(), e.session.PlayerID())
}

// View is a consistent read of the synced state.
func (e *Engine) View() store.View { return e.store.View() }

// Store exposes the state store for subscribers such as a UI.
func (e *Engine) Store() *store.Store { return e.store }

// Session exposes the credential holder.
func (e *Engine) Session() *auth.Session { return e.session }

// Card returns cached catalog metadata, fetching it on first use.
func (e *Engine) Card(ctx context.Context, templateID string) (models.CardInfo, error) {
	return e.cards.Get(ctx, templateID)
}

// Close leaves the active match and releases background resources. It is idempotent.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.LeaveMatch()
		e.cancel()
		e.wg.Wait()
		err = e.publisher.Close()
	})
	return err
}
