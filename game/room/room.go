package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/sim"
	"go.uber.org/zap"
)

// Config controls the real-time loop.
type Config struct {
	TickMs             int `mapstructure:"tick_ms"`
	SnapshotEveryTicks int `mapstructure:"snapshot_every_ticks"`
	SubscriberBuffer   int `mapstructure:"subscriber_buffer"`
}

func DefaultConfig() Config {
	return Config{TickMs: 50, SnapshotEveryTicks: 2, SubscriberBuffer: 64}
}

// Packet is the envelope pushed to subscribers.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"` // "snapshot" or "event"
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	PacketSnapshot = "snapshot"
	PacketEvent    = "event"
)

// Room runs one game session on a wall-clock ticker and serialises intents
// against ticks. It is the only concurrency boundary around a Controller.
type Room struct {
	ID string

	cfg    Config
	mu     sync.Mutex
	ctrl   *sim.Controller
	ticks  uint64
	logger *zap.Logger

	subMu   sync.Mutex
	subs    map[uint64]chan []byte
	nextSub uint64
	seq     uint64
	dropped uint64

	stopCh chan struct{}
}

// New wraps ctrl. Events from the controller's bus are forwarded to
// subscribers until Stop.
func New(ctrl *sim.Controller, cfg Config, logger *zap.Logger) *Room {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickMs <= 0 {
		cfg.TickMs = DefaultConfig().TickMs
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultConfig().SubscriberBuffer
	}
	id := uuid.NewString()
	r := &Room{
		ID:     id,
		cfg:    cfg,
		ctrl:   ctrl,
		logger: logger.With(zap.String("room", id)),
		subs:   make(map[uint64]chan []byte),
		stopCh: make(chan struct{}),
	}
	for _, typ := range event.All() {
		ctrl.Bus().Register(typ, 100, r.hookName(), r.onEvent)
	}
	return r
}

func (r *Room) hookName() string { return "room:" + r.ID }

// Run drives the controller until ctx is cancelled or Stop is called.
func (r *Room) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(r.cfg.TickMs) * time.Millisecond)
	defer ticker.Stop()
	last := time.Now()
	r.logger.Info("room loop started", zap.Int("tick_ms", r.cfg.TickMs))
	for {
		select {
		case now := <-ticker.C:
			r.step(now.Sub(last))
			last = now
		case <-ctx.Done():
			r.Stop()
			return
		case <-r.stopCh:
			return
		}
	}
}

// step advances the controller by elapsed. A panic in the simulation is
// logged and the loop keeps running.
func (r *Room) step(elapsed time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("room tick panicked", zap.Any("recover", rec), zap.Stack("stack"))
		}
	}()
	if snap, due := r.advance(elapsed); due {
		r.publish(PacketSnapshot, snap)
	}
}

func (r *Room) advance(elapsed time.Duration) (sim.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctrl.Tick(float64(elapsed) / float64(time.Millisecond))
	r.ticks++
	every := uint64(r.cfg.SnapshotEveryTicks)
	if every == 0 || r.ticks%every != 0 || r.ctrl.State() != sim.Running {
		return sim.Snapshot{}, false
	}
	return r.ctrl.Snapshot(), true
}

// Stop ends the loop, detaches from the event bus and closes subscriber
// channels. It is safe to call more than once.
func (r *Room) Stop() {
	select {
	case <-r.stopCh:
		return
	default:
		close(r.stopCh)
	}
	r.ctrl.Bus().UnregisterAll(r.hookName())
	r.subMu.Lock()
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	r.subMu.Unlock()
	r.logger.Info("room stopped")
}

// Done is closed once the room has stopped.
func (r *Room) Done() <-chan struct{} { return r.stopCh }

// ---- Subscribers ----

// Subscribe returns a channel of encoded packets and a cancel func. The
// current snapshot is queued first. Slow subscribers lose packets instead
// of stalling the loop.
func (r *Room) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, r.cfg.SubscriberBuffer)
	r.subMu.Lock()
	select {
	case <-r.stopCh:
		r.subMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	r.nextSub++
	id := r.nextSub
	r.subs[id] = ch
	r.subMu.Unlock()

	r.publishTo(id, PacketSnapshot, r.Snapshot())

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.subMu.Lock()
			if c, ok := r.subs[id]; ok {
				close(c)
				delete(r.subs, id)
			}
			r.subMu.Unlock()
		})
	}
}

func (r *Room) SubscriberCount() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subs)
}

// Dropped returns how many packets were discarded for slow subscribers.
func (r *Room) Dropped() uint64 {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return r.dropped
}

func (r *Room) onEvent(ev event.Event) { r.publish(PacketEvent, ev) }

func (r *Room) encode(typ string, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	r.seq++
	return json.Marshal(&Packet{Seq: r.seq, Type: typ, Payload: payload})
}

func (r *Room) publish(typ string, v any) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if len(r.subs) == 0 {
		return
	}
	pkt, err := r.encode(typ, v)
	if err != nil {
		r.logger.Error("encode packet", zap.String("type", typ), zap.Error(err))
		return
	}
	for _, ch := range r.subs {
		r.send(ch, pkt)
	}
}

func (r *Room) publishTo(id uint64, typ string, v any) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	ch, ok := r.subs[id]
	if !ok {
		return
	}
	pkt, err := r.encode(typ, v)
	if err != nil {
		r.logger.Error("encode packet", zap.String("type", typ), zap.Error(err))
		return
	}
	r.send(ch, pkt)
}

// send must be called with subMu held.
func (r *Room) send(ch chan []byte, pkt []byte) {
	select {
	case ch <- pkt:
	default:
		r.dropped++
		if r.dropped%100 == 1 {
			r.logger.Warn("subscriber queue full, dropping packet", zap.Uint64("dropped", r.dropped))
		}
	}
}

// ---- Intents ----

// do runs fn under the room lock and pushes a fresh snapshot afterwards so
// subscribers see the change even while paused.
func (r *Room) do(fn func(c *sim.Controller) error) error {
	snap, err := r.locked(fn)
	if err == nil {
		r.publish(PacketSnapshot, snap)
	}
	return err
}

func (r *Room) locked(fn func(c *sim.Controller) error) (sim.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fn(r.ctrl); err != nil {
		return sim.Snapshot{}, err
	}
	return r.ctrl.Snapshot(), nil
}

func (r *Room) Start() error { return r.do(func(c *sim.Controller) error { return c.Start() }) }
func (r *Room) Pause() error { return r.do(func(c *sim.Controller) error { return c.Pause() }) }

func (r *Room) Reset() {
	_ = r.do(func(c *sim.Controller) error { c.Reset(); return nil })
}

func (r *Room) SetSpeed(factor float64) error {
	return r.do(func(c *sim.Controller) error { return c.SetSpeed(factor) })
}

// PlaceTower returns a copy of the placed tower.
func (r *Room) PlaceTower(cell grid.Cell, k entity.Kind) (entity.Tower, error) {
	var out entity.Tower
	err := r.do(func(c *sim.Controller) error {
		t, err := c.PlaceTower(cell, k)
		if err == nil {
			out = *t
		}
		return err
	})
	return out, err
}

func (r *Room) SellTower(id int64) (refund int, err error) {
	err = r.do(func(c *sim.Controller) error {
		var err error
		refund, err = c.SellTower(id)
		return err
	})
	return refund, err
}

// UpgradeTower returns a copy of the upgraded tower.
func (r *Room) UpgradeTower(id int64) (entity.Tower, error) {
	var out entity.Tower
	err := r.do(func(c *sim.Controller) error {
		t, err := c.UpgradeTower(id)
		if err == nil {
			out = *t
		}
		return err
	})
	return out, err
}

// Table is fixed at construction and safe to read without the lock.
func (r *Room) Table() *entity.Table { return r.ctrl.Table() }

func (r *Room) CheckPlacement(cell grid.Cell) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctrl.CheckPlacement(cell)
}

func (r *Room) Snapshot() sim.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctrl.Snapshot()
}

// Stats is a summary for periodic logging.
type Stats struct {
	Ticks       uint64
	State       sim.GameState
	Creatures   int
	Towers      int
	Projectiles int
	Subscribers int
	Dropped     uint64
}

func (r *Room) Stats() Stats {
	r.mu.Lock()
	reg := r.ctrl.Sim().Registry
	st := Stats{
		Ticks:       r.ticks,
		State:       r.ctrl.State(),
		Creatures:   reg.CreatureCount(),
		Towers:      reg.TowerCount(),
		Projectiles: reg.ProjectileCount(),
	}
	r.mu.Unlock()
	r.subMu.Lock()
	st.Subscribers = len(r.subs)
	st.Dropped = r.dropped
	r.subMu.Unlock()
	return st
}

// LogStats writes Stats at info level.
func (r *Room) LogStats() {
	st := r.Stats()
	r.logger.Info("room stats",
		zap.Uint64("ticks", st.Ticks),
		zap.Stringer("state", st.State),
		zap.Int("creatures", st.Creatures),
		zap.Int("towers", st.Towers),
		zap.Int("projectiles", st.Projectiles),
		zap.Int("subscribers", st.Subscribers),
		zap.Uint64("dropped", st.Dropped))
}
