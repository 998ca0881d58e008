package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kasuganosora/towerdefense/cache"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Ring keeps the last cap entries in memory.
type Ring struct {
	mu   sync.RWMutex
	buf  []Entry
	next int
	full bool
}

func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]Entry, capacity)}
}

func (r *Ring) Write(batch []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range batch {
		r.buf[r.next] = e
		r.next = (r.next + 1) % len(r.buf)
		if r.next == 0 {
			r.full = true
		}
	}
	return nil
}

// Len is the number of entries held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Recent returns up to n entries, newest first. n <= 0 means all.
func (r *Ring) Recent(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}

// LogSink writes each entry as a structured log line. Failed intents log at
// warn.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Write(batch []Entry) error {
	for _, e := range batch {
		level := zapcore.InfoLevel
		if e.Error != "" {
			level = zapcore.WarnLevel
		}
		s.Logger.Log(level, "intent",
			zap.Time("at", e.At),
			zap.String("trace_id", e.TraceID),
			zap.String("source", e.Source),
			zap.String("action", e.Action),
			zap.String("client", e.Client),
			zap.Int("status", e.Status),
			zap.String("error", e.Error),
			zap.Float64("duration_ms", e.DurationMs))
	}
	return nil
}

// StoreSink appends entries as JSON to a cache list, newest first, keeping
// at most Max of them.
type StoreSink struct {
	Store   cache.List
	Key     string
	Max     int64
	Timeout time.Duration
}

func (s StoreSink) Write(batch []Entry) error {
	vals := make([]string, len(batch))
	for i, e := range batch {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		vals[i] = string(b)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.Store.LPush(ctx, s.Key, vals...); err != nil {
		return fmt.Errorf("audit store push: %w", err)
	}
	if s.Max > 0 {
		if err := s.Store.LTrim(ctx, s.Key, 0, s.Max-1); err != nil {
			return fmt.Errorf("audit store trim: %w", err)
		}
	}
	return nil
}

// ReadStore returns up to n stored entries, newest first.
func ReadStore(ctx context.Context, store cache.List, key string, n int64) ([]Entry, error) {
	raw, err := store.LRange(ctx, key, 0, n-1)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, r := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("audit store entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
