// Package store holds the single source of truth for the active match: the last observed
// MatchSummary and GameSnapshot, the push channel status, and the single-slot user error.
//
// Every write replaces a whole object. Writers never mutate a stored value in place and
// readers must treat returned pointers as read-only, so the last write wins without torn reads.
package store

import (
	"reflect"
	"sync"

	"github.com/jason-s-yu/holosync/internal/models"
)

// ChannelStatus is the state of the push channel.
type ChannelStatus string

const (
	ChannelDisconnected ChannelStatus = "Disconnected"
	ChannelConnected    ChannelStatus = "Connected"
	ChannelError        ChannelStatus = "Error"
)

// View is a consistent read of the store.
type View struct {
	Match    *models.MatchSummary
	Snapshot *models.GameSnapshot
	Channel  ChannelStatus
	Error    string
	Version  uint64
}

type Store struct {
	mu       sync.RWMutex
	match    *models.MatchSummary
	snapshot *models.GameSnapshot
	channel  ChannelStatus
	errMsg   string
	version  uint64

	subs    map[int]chan struct{}
	nextSub int
}

func New() *Store {
	return &Store{
		channel: ChannelDisconnected,
		subs:    make(map[int]chan struct{}),
	}
}

// SetMatch replaces the match summary. nil clears the active match together with its snapshot.
func (s *Store) SetMatch(m *models.MatchSummary) {
	if m != nil {
		s.Apply(m, nil)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked(s.match != nil || s.snapshot != nil)
	s.match, s.snapshot = nil, nil
}

// SetSnapshot replaces the game snapshot.
func (s *Store) SetSnapshot(snap *models.GameSnapshot) {
	s.Apply(nil, snap)
}

// Apply replaces whichever of m and snap is non-nil in one step. A snapshot belonging to a
// different match than the stored one is ignored. It reports whether anything changed;
// applying the same objects twice is a no-op.
func (s *Store) Apply(m *models.MatchSummary, snap *models.GameSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	if m != nil && !reflect.DeepEqual(s.match, m) {
		if s.match != nil && s.match.ID != m.ID {
			s.snapshot = nil
		}
		s.match = m
		changed = true
	}
	if snap != nil && (s.match == nil || snap.MatchID == s.match.ID) && !reflect.DeepEqual(s.snapshot, snap) {
		s.snapshot = snap
		changed = true
	}
	s.bumpLocked(changed)
	return changed
}

func (s *Store) Match() *models.MatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.match
}

func (s *Store) Snapshot() *models.GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// View returns match, snapshot and status as observed at one instant.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		Match:    s.match,
		Snapshot: s.snapshot,
		Channel:  s.channel,
		Error:    s.errMsg,
		Version:  s.version,
	}
}

func (s *Store) SetChannelStatus(status ChannelStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked(s.channel != status)
	s.channel = status
}

func (s *Store) ChannelStatus() ChannelStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// SetError replaces the user-visible error. Errors do not accumulate.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpLocked(s.errMsg != msg)
	s.errMsg = msg
}

func (s *Store) ClearError() { s.SetError("") }

func (s *Store) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Subscribe returns a channel signalled after every change. Signals coalesce: a slow reader
// sees one pending notification, not one per write. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// bumpLocked advances the version and notifies subscribers. Caller holds mu.
func (s *Store) bumpLocked(changed bool) {
	if !changed {
		return
	}
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
