package event

import (
	"sort"
	"sync"
)

// Type names an event emitted by the simulation.
type Type string

const (
	TowerPlaced      Type = "tower_placed"
	TowerSold        Type = "tower_sold"
	TowerUpgraded    Type = "tower_upgraded"
	CreatureSpawned  Type = "creature_spawned"
	CreatureKilled   Type = "creature_killed"
	CreatureLeaked   Type = "creature_leaked"
	CreatureEvicted  Type = "creature_evicted"
	GameOver         Type = "game_over"
	PathRecalculated Type = "path_recalculated"
	StateChanged     Type = "state_changed"
	SpeedChanged     Type = "speed_changed"
)

// All lists every event type in declaration order.
func All() []Type {
	return []Type{
		TowerPlaced, TowerSold, TowerUpgraded,
		CreatureSpawned, CreatureKilled, CreatureLeaked, CreatureEvicted,
		GameOver, PathRecalculated, StateChanged, SpeedChanged,
	}
}

// Event is one notification. At is simulation time in milliseconds.
type Event struct {
	Type Type    `json:"type"`
	At   float64 `json:"at"`
	Data any     `json:"data,omitempty"`
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type entry struct {
	priority int
	name     string
	fn       Handler
}

// Bus dispatches events to handlers registered per type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]*entry
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]*entry)}
}

// Register adds fn for typ. Lower priority runs first; equal priorities run in
// registration order. name is the key for Unregister.
func (b *Bus) Register(typ Type, priority int, name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := append(b.handlers[typ], &entry{priority: priority, name: name, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	b.handlers[typ] = entries
}

// Unregister removes every handler called name for typ.
func (b *Bus) Unregister(typ Type, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[typ] = without(b.handlers[typ], name)
}

// UnregisterAll removes every handler called name across all types.
func (b *Bus) UnregisterAll(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for typ, entries := range b.handlers {
		b.handlers[typ] = without(entries, name)
	}
}

func without(entries []*entry, name string) []*entry {
	n := 0
	for _, e := range entries {
		if e.name != name {
			entries[n] = e
			n++
		}
	}
	return entries[:n]
}

// Emit runs the handlers for ev.Type in priority order. Handlers may
// register or unregister without deadlocking; changes apply to the next Emit.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	entries := make([]*entry, len(b.handlers[ev.Type]))
	copy(entries, b.handlers[ev.Type])
	b.mu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Len returns the number of handlers registered for typ.
func (b *Bus) Len(typ Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[typ])
}
