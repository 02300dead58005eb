// internal/matchsync/manager.go
package matchsync

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/holosync/internal/middleware"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/sirupsen/logrus"
)

// pushReadLimit bounds a single push message. Full snapshots exceed the library default.
const pushReadLimit = 4 << 20

// Remote is the slice of the API client the manager needs.
type Remote interface {
	GetMatch(ctx context.Context, matchID string) (*models.MatchSummary, error)
	GetState(ctx context.Context, matchID string) (*models.GameSnapshot, error)
	DialPush(ctx context.Context, matchID string) (*websocket.Conn, error)
}

// Intervals configures the polling fallback.
type Intervals struct {
	// Lobby is the summary poll period before the match starts.
	Lobby time.Duration
	// Match is the summary and snapshot poll period once the match is STARTED.
	Match time.Duration
}

// Manager keeps the state store in sync with one match at a time, using the push channel
// and a polling fallback that run side by side. Both loops stop on their own when the
// match disappears or reaches a terminal status, and Leave tears them down explicitly.
type Manager struct {
	remote    Remote
	store     *store.Store
	logger    *logrus.Logger
	intervals Intervals

	mu      sync.Mutex
	matchID string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager creates a manager writing into st.
func NewManager(remote Remote, st *store.Store, logger *logrus.Logger, intervals Intervals) *Manager {
	if intervals.Lobby <= 0 {
		intervals.Lobby = 2 * time.Second
	}
	if intervals.Match <= 0 {
		intervals.Match = 1500 * time.Millisecond
	}
	return &Manager{remote: remote, store: st, logger: logger, intervals: intervals}
}

// Enter starts syncing matchID, tearing down whatever was being synced before.
func (m *Manager) Enter(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	m.matchID = matchID
	m.cancel = cancel

	m.wg.Add(2)
	go m.runPush(ctx, cancel, matchID)
	go m.runPoll(ctx, cancel, matchID)

	m.logger.WithField("match_id", matchID).Debug("match sync started")
}

// Leave stops both loops and waits for them to exit. It is safe to call repeatedly and
// when nothing is being synced.
func (m *Manager) Leave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// MatchID returns the match currently being synced, or "".
func (m *Manager) MatchID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchID
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.WithField("match_id", m.matchID).Debug("match sync stopped")
	m.cancel = nil
	m.matchID = ""
	m.store.SetChannelStatus(store.ChannelDisconnected)
}

// runPush holds the push channel open and applies every well-formed envelope.
func (m *Manager) runPush(ctx context.Context, stop context.CancelFunc, matchID string) {
	defer m.wg.Done()

	conn, err := m.remote.DialPush(ctx, matchID)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.WithError(err).WithField("match_id", matchID).Warn("push channel unavailable, relying on polling")
			m.store.SetChannelStatus(store.ChannelError)
		}
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(pushReadLimit)

	m.store.SetChannelStatus(store.ChannelConnected)
	middleware.LogWebSocketConnect(m.logger, "", matchID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			m.closed(ctx, matchID, err)
			return
		}
		if typ != websocket.MessageText {
			m.logger.WithField("match_id", matchID).Warn("dropping binary push message")
			continue
		}
		if m.apply(ctx, matchID, Decode(data)) {
			if ctx.Err() == nil {
				conn.Close(websocket.StatusNormalClosure, "match over")
				m.store.SetChannelStatus(store.ChannelDisconnected)
				stop()
			}
			return
		}
	}
}

func (m *Manager) closed(ctx context.Context, matchID string, err error) {
	if ctx.Err() != nil {
		middleware.LogWebSocketDisconnect(m.logger, "", matchID, nil)
		return
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		middleware.LogWebSocketDisconnect(m.logger, "", matchID, nil)
		m.store.SetChannelStatus(store.ChannelDisconnected)
	default:
		middleware.LogWebSocketDisconnect(m.logger, "", matchID, err)
		m.store.SetChannelStatus(store.ChannelError)
	}
}

// apply writes env into the store and reports whether syncing should stop.
func (m *Manager) apply(ctx context.Context, matchID string, env Envelope) bool {
	log := m.logger.WithField("match_id", matchID)
	var (
		match *models.MatchSummary
		state *models.GameSnapshot
	)
	switch e := env.(type) {
	case MatchEnvelope:
		match = e.Match
	case StateEnvelope:
		state = e.State
	case SyncEnvelope:
		match, state = e.Match, e.State
	case PingEnvelope:
		return false
	case Unparseable:
		log.WithError(e.Err).Warn("dropping malformed push message")
		return false
	default:
		log.Warnf("dropping push message of unexpected type %T", env)
		return false
	}

	if (match != nil && match.ID != matchID) || (state != nil && state.MatchID != matchID) {
		log.Debug("dropping push message for another match")
		return false
	}
	// A message that arrives after Leave must never reach the store.
	if ctx.Err() != nil {
		return true
	}
	m.store.Apply(match, state)
	return m.finished(matchID)
}

// runPoll refreshes the summary (and, once STARTED, the snapshot) on a fixed cadence.
func (m *Manager) runPoll(ctx context.Context, stop context.CancelFunc, matchID string) {
	defer m.wg.Done()

	timer := time.NewTimer(m.interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		m.pollOnce(ctx, matchID)
		if ctx.Err() != nil {
			return
		}
		if m.finished(matchID) {
			stop()
			return
		}
		timer.Reset(m.interval())
	}
}

func (m *Manager) pollOnce(ctx context.Context, matchID string) {
	log := m.logger.WithField("match_id", matchID)

	summary, err := m.remote.GetMatch(ctx, matchID)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("match poll failed")
		}
		return
	}

	var snap *models.GameSnapshot
	if summary.Status == models.StatusStarted {
		snap, err = m.remote.GetState(ctx, matchID)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("state poll failed")
		}
	}
	if ctx.Err() != nil {
		return
	}
	m.store.Apply(summary, snap)
}

func (m *Manager) interval() time.Duration {
	if cur := m.store.Match(); cur != nil && cur.Status == models.StatusStarted {
		return m.intervals.Match
	}
	return m.intervals.Lobby
}

// finished reports whether the stored match is gone, replaced or over.
func (m *Manager) finished(matchID string) bool {
	cur := m.store.Match()
	return cur == nil || cur.ID != matchID || cur.Status.Terminal()
}
