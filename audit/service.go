// Package audit keeps a trail of the intents clients send to a room.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Entry holds one intent outcome.
type Entry struct {
	At         time.Time `json:"at"`
	TraceID    string    `json:"trace_id"`
	Source     string    `json:"source"` // "http" or "ws"
	Action     string    `json:"action"`
	Client     string    `json:"client"`
	Status     int       `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs float64   `json:"duration_ms"`
}

// Sink receives flushed batches. Write is only called from the worker.
type Sink interface {
	Write(batch []Entry) error
}

type Config struct {
	Buffer        int           `mapstructure:"buffer"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Keep          int           `mapstructure:"keep"` // entries served by Recent
	StoreKey      string        `mapstructure:"store_key"`
	StoreMax      int64         `mapstructure:"store_max"`
}

func DefaultConfig() Config {
	return Config{
		Buffer:        1024,
		BatchSize:     100,
		FlushInterval: 2 * time.Second,
		Keep:          200,
		StoreKey:      "towerdefense:audit",
		StoreMax:      10000,
	}
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	cfg     Config
	sinks   []Sink
	recent  *Ring
	ch      chan Entry
	flushCh chan chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	logger  *zap.Logger
}

// New creates a Service and starts its background worker. Every batch goes
// to an in-memory ring of cfg.Keep entries and then to sinks.
func New(cfg Config, logger *zap.Logger, sinks ...Sink) *Service {
	d := DefaultConfig()
	if cfg.Buffer <= 0 {
		cfg.Buffer = d.Buffer
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.Keep <= 0 {
		cfg.Keep = d.Keep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		cfg:     cfg,
		recent:  NewRing(cfg.Keep),
		ch:      make(chan Entry, cfg.Buffer),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
	svc.sinks = append([]Sink{svc.recent}, sinks...)
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues e. A full buffer drops the entry.
func (svc *Service) Log(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case <-svc.stopCh:
		return
	default:
	}
	select {
	case svc.ch <- e:
	default:
		svc.dropped.Add(1)
		svc.logger.Warn("audit channel full, dropping entry", zap.String("action", e.Action))
	}
}

// Recent returns up to n flushed entries, newest first.
func (svc *Service) Recent(n int) []Entry { return svc.recent.Recent(n) }

// Dropped counts entries lost to a full buffer.
func (svc *Service) Dropped() uint64 { return svc.dropped.Load() }

// Flush hands everything logged before the call to the sinks.
func (svc *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case svc.flushCh <- done:
	case <-svc.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop() {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, svc.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, s := range svc.sinks {
			if err := s.Write(batch); err != nil {
				svc.logger.Error("audit batch write failed", zap.Error(err))
			}
		}
		batch = batch[:0]
	}

	drain := func() {
		for {
			select {
			case e := <-svc.ch:
				batch = append(batch, e)
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case e := <-svc.ch:
			batch = append(batch, e)
			if len(batch) >= svc.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case done := <-svc.flushCh:
			drain()
			close(done)
		case <-svc.stopCh:
			drain()
			return
		}
	}
}
