// Package realtime delivers row change events to subscribers keyed by table
// and an optional column filter.
package realtime

import (
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event describes one row change. Keys carries the filterable column values
// of the row (e.g. "user_id").
type Event struct {
	Table  string
	Type   EventType
	Record any
	Keys   map[string]string
	At     time.Time
}

// Filter restricts a subscription to rows whose Column equals Value.
// The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

// Eq is shorthand for Filter{Column: column, Value: value}.
func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func (f Filter) matches(keys map[string]string) bool {
	if f.Column == "" {
		return true
	}
	v, ok := keys[f.Column]
	return ok && v == f.Value
}

// Publisher is implemented by Bus and Buffer.
type Publisher interface {
	Publish(ev Event)
}

const defaultBufferSize = 64

type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	size   int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		size:   defaultBufferSize,
		logger: logger,
	}
}

// Subscribe registers interest in table rows matching filter. With no types,
// every event type is delivered.
func (b *Bus) Subscribe(table string, filter Filter, types ...EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		bus:    b,
		table:  table,
		filter: filter,
		types:  make(map[EventType]bool, len(types)),
		ch:     make(chan Event, b.size),
	}
	for _, t := range types {
		s.types[t] = true
	}
	b.subs[s.id] = s
	return s
}

// Publish fans ev out to matching subscriptions. It never blocks: a
// subscriber whose buffer is full misses the event.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.wants(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			b.logger.Warn("realtime subscriber buffer full, dropping event",
				"table", ev.Table, "type", ev.Type, "subscription", s.id)
		}
	}
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(s.ch)
	}
}

type Subscription struct {
	id     uint64
	bus    *Bus
	table  string
	filter Filter
	types  map[EventType]bool
	ch     chan Event
	once   sync.Once
}

// C returns the delivery channel. It is closed by Unsubscribe.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe detaches the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.bus.remove(s.id) })
}

func (s *Subscription) wants(ev Event) bool {
	if ev.Table != s.table {
		return false
	}
	if len(s.types) > 0 && !s.types[ev.Type] {
		return false
	}
	return s.filter.matches(ev.Keys)
}

// Buffer holds events produced inside a database transaction until commit.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

// Flush hands every buffered event to p in publish order and empties the buffer.
func (b *Buffer) Flush(p Publisher) {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	for _, ev := range events {
		p.Publish(ev)
	}
}

// Discard drops buffered events, used when the transaction rolls back.
func (b *Buffer) Discard() {
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// Nop discards everything published to it.
type Nop struct{}

func (Nop) Publish(Event) {}
