package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	mu      sync.Mutex
	batches [][]Entry
	err     error
}

func (m *memSink) Write(batch []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]Entry(nil), batch...))
	return m.err
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func TestLog_FlushedOnStop(t *testing.T) {
	sink := &memSink{}
	svc := New(Config{FlushInterval: time.Hour}, zap.NewNop(), sink)

	svc.Log(Entry{TraceID: "trace-123", Source: "http", Action: "POST /api/towers", Client: "127.0.0.1", Status: 201, DurationMs: 4})
	svc.Stop()

	require.Equal(t, 1, sink.count())
	e := sink.batches[0][0]
	assert.Equal(t, "trace-123", e.TraceID)
	assert.Equal(t, "POST /api/towers", e.Action)
	assert.False(t, e.At.IsZero(), "At is stamped on Log")

	svc.Log(Entry{Action: "late"})
	assert.Equal(t, 1, sink.count(), "entries after Stop are ignored")
	svc.Stop()
}

func TestLog_BatchFlush(t *testing.T) {
	sink := &memSink{}
	svc := New(Config{BatchSize: 10, FlushInterval: time.Hour}, zap.NewNop(), sink)
	defer svc.Stop()

	for i := 0; i < 10; i++ {
		svc.Log(Entry{Action: "batch"})
	}
	assert.Eventually(t, func() bool { return sink.count() == 10 }, time.Second, 5*time.Millisecond)
}

func TestLog_TickerFlush(t *testing.T) {
	sink := &memSink{}
	svc := New(Config{FlushInterval: 10 * time.Millisecond}, zap.NewNop(), sink)
	defer svc.Stop()

	svc.Log(Entry{Action: "tick"})
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFlush_DeliversQueued(t *testing.T) {
	svc := New(Config{FlushInterval: time.Hour}, zap.NewNop())
	defer svc.Stop()

	for i := 0; i < 3; i++ {
		svc.Log(Entry{Action: "a"})
	}
	require.NoError(t, svc.Flush(context.Background()))
	assert.Len(t, svc.Recent(0), 3)
}

func TestFlush_Cancelled(t *testing.T) {
	svc := New(Config{}, zap.NewNop())
	svc.Stop()
	assert.NoError(t, svc.Flush(context.Background()), "flush after stop is a no-op")

	svc = New(Config{}, zap.NewNop())
	defer svc.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Either branch may win; neither may block.
	_ = svc.Flush(ctx)
}

func TestLog_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := sinkFunc(func([]Entry) error { <-block; return nil })
	svc := New(Config{Buffer: 1, BatchSize: 1, FlushInterval: time.Hour}, zap.NewNop(), sink)

	for i := 0; i < 10; i++ {
		svc.Log(Entry{Action: "spam"})
	}
	assert.Positive(t, svc.Dropped())
	close(block)
	svc.Stop()
}

func TestSinkError_Logged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := &memSink{err: errors.New("disk full")}
	svc := New(Config{FlushInterval: time.Hour}, zap.New(core), sink)

	svc.Log(Entry{Action: "x"})
	svc.Stop()

	assert.Equal(t, 1, logs.FilterMessage("audit batch write failed").Len())
	assert.Len(t, svc.Recent(0), 1, "other sinks still receive the batch")
}

type sinkFunc func([]Entry) error

func (f sinkFunc) Write(b []Entry) error { return f(b) }
