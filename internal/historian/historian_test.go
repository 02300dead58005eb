// internal/historian/historian_test.go
package historian

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource hands out queued payloads and otherwise waits like BLPop would.
type chanSource struct {
	ch chan []byte
}

func (c *chanSource) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case p := <-c.ch:
		return p, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lockedBuffer lets the test read while the service writes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) records(t *testing.T) []cache.ActionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []cache.ActionRecord
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var rec cache.ActionRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func encode(t *testing.T, rec cache.ActionRecord) []byte {
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return data
}

func TestRunWritesRecordsAsJSONLines(t *testing.T) {
	src := &chanSource{ch: make(chan []byte, 8)}
	sink := &lockedBuffer{}
	svc := New(src, sink, quietLogger(), Options{BatchSize: 2, FlushDelay: 20 * time.Millisecond, PopTimeout: 10 * time.Millisecond})

	src.ch <- encode(t, cache.ActionRecord{MatchID: "m1", ActionIndex: 1, ActionType: "draw", Outcome: "ok"})
	src.ch <- []byte("{not json")
	src.ch <- encode(t, cache.ActionRecord{MatchID: "m1", ActionIndex: 2, ActionType: "end-turn", Outcome: "rejected"})
	src.ch <- encode(t, cache.ActionRecord{MatchID: "m2", ActionIndex: 3, ActionType: "concede", Outcome: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(sink.records(t)) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	recs := sink.records(t)
	assert.Equal(t, []int{1, 2, 3}, []int{recs[0].ActionIndex, recs[1].ActionIndex, recs[2].ActionIndex})
	assert.Equal(t, "rejected", recs[1].Outcome)
}

func TestRunFlushesRemainderOnShutdown(t *testing.T) {
	src := &chanSource{ch: make(chan []byte, 1)}
	sink := &lockedBuffer{}
	svc := New(src, sink, quietLogger(), Options{BatchSize: 100, FlushDelay: time.Hour, PopTimeout: 10 * time.Millisecond})
	src.ch <- encode(t, cache.ActionRecord{MatchID: "m1", ActionIndex: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(src.ch) == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	assert.Len(t, sink.records(t), 1)
}

func TestSweepIdleReportsEachMatchOnce(t *testing.T) {
	svc := New(&chanSource{}, io.Discard, quietLogger(), Options{Inactivity: time.Minute})
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	svc.ingest(encode(t, cache.ActionRecord{MatchID: "old"}))
	base = base.Add(50 * time.Second)
	svc.ingest(encode(t, cache.ActionRecord{MatchID: "fresh"}))

	base = base.Add(20 * time.Second)
	assert.Equal(t, []string{"old"}, svc.sweepIdle())
	assert.Empty(t, svc.sweepIdle())

	base = base.Add(time.Minute)
	assert.Equal(t, []string{"fresh"}, svc.sweepIdle())
}
