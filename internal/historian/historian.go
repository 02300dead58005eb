// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/sirupsen/logrus"
)

// Source yields raw action records; (nil, nil) means the wait timed out empty.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Options tunes batching and idle detection. Zero values take the defaults.
type Options struct {
	BatchSize  int
	FlushDelay time.Duration
	Inactivity time.Duration
	PopTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.FlushDelay <= 0 {
		o.FlushDelay = 500 * time.Millisecond
	}
	if o.Inactivity <= 0 {
		o.Inactivity = 10 * time.Minute
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 3 * time.Second
	}
	return o
}

// Service drains the action-history queue and appends each record to sink as one JSON
// line. Matches with no records for Options.Inactivity are reported idle once.
type Service struct {
	source Source
	sink   io.Writer
	logger *logrus.Logger
	opts   Options

	lastActivity sync.Map // match id -> time.Time

	batchMu sync.Mutex
	batch   []cache.ActionRecord

	now func() time.Time
}

func New(source Source, sink io.Writer, logger *logrus.Logger, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		source: source,
		sink:   sink,
		logger: logger,
		opts:   opts,
		batch:  make([]cache.ActionRecord, 0, opts.BatchSize),
		now:    time.Now,
	}
}

// Run blocks until ctx is done, then flushes whatever is still batched.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.logger.Info("historian started")
	wg.Wait()
	s.flush()
	s.logger.Info("historian stopped")
}

func (s *Service) readLoop(ctx context.Context) {
	lastFlush := s.now()
	for ctx.Err() == nil {
		payload, err := s.source.Pop(ctx, s.opts.PopTimeout)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.WithError(err).Error("pop action record")
			}
			continue
		}
		if payload != nil {
			s.ingest(payload)
		}
		if s.now().Sub(lastFlush) >= s.opts.FlushDelay {
			s.flush()
			lastFlush = s.now()
		}
	}
}

// ingest decodes one payload and batches it; malformed records are logged and dropped.
func (s *Service) ingest(payload []byte) {
	var rec cache.ActionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.WithError(err).Warn("invalid action record")
		return
	}
	if rec.MatchID != "" {
		s.lastActivity.Store(rec.MatchID, s.now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()
	if full {
		s.flush()
	}
}

// flush writes the current batch to the sink.
func (s *Service) flush() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]cache.ActionRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	enc := json.NewEncoder(s.sink)
	for _, rec := range pending {
		if err := enc.Encode(rec); err != nil {
			s.logger.WithError(err).Error("write action record")
			return
		}
	}
	s.logger.Debugf("flushed %d action records", len(pending))
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(min(time.Minute, s.opts.Inactivity))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepIdle()
		}
	}
}

// sweepIdle reports and forgets every match idle for longer than Options.Inactivity.
func (s *Service) sweepIdle() []string {
	var idle []string
	now := s.now()
	s.lastActivity.Range(func(key, val any) bool {
		matchID, ok1 := key.(string)
		last, ok2 := val.(time.Time)
		if ok1 && ok2 && now.Sub(last) > s.opts.Inactivity {
			idle = append(idle, matchID)
			s.lastActivity.Delete(matchID)
			s.logger.WithField("match_id", matchID).
				Infof("no actions for %s; match considered idle", s.opts.Inactivity)
		}
		return true
	})
	return idle
}
