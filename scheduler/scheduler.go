package scheduler

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TaskFn is the function signature for scheduled tasks.
type TaskFn func()

// Scheduler runs housekeeping next to the room loop: periodic stats,
// limiter pruning and one-shot delays.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*task
	timers map[string]*time.Timer
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type task struct {
	cancel context.CancelFunc
	runs   atomic.Uint64
}

// New creates a scheduler whose tasks stop when ctx ends or Stop is called.
func New(ctx context.Context, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		tasks:  make(map[string]*task),
		timers: make(map[string]*time.Timer),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every runs fn on a fixed interval. A task with the same name is replaced.
func (s *Scheduler) Every(name string, interval time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel}
	s.tasks[name] = t

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(name, fn)
				t.runs.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("interval", interval))
}

// After runs fn once after delay. A pending delay with the same name is
// cancelled.
func (s *Scheduler) After(name string, delay time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer func() {
			s.mu.Lock()
			if s.timers[name] == timer {
				delete(s.timers, name)
			}
			s.mu.Unlock()
		}()
		if s.ctx.Err() != nil {
			return
		}
		s.run(name, fn)
	})
	s.timers[name] = timer
}

func (s *Scheduler) run(name string, fn TaskFn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler task panicked",
				zap.String("task", name),
				zap.Any("recover", r))
		}
	}()
	fn()
}

// Remove stops a periodic or delayed task by name.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		t.cancel()
		delete(s.tasks, name)
	}
	if timer, ok := s.timers[name]; ok {
		timer.Stop()
		delete(s.timers, name)
	}
}

// Stop ends every task. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, timer := range s.timers {
		timer.Stop()
		delete(s.timers, name)
	}
}

// Names returns the periodic task names, sorted.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Runs reports how many times the periodic task name has completed.
func (s *Scheduler) Runs(name string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[name]; ok {
		return t.runs.Load()
	}
	return 0
}
