package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, s *Subscription) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		return ev, ok
	default:
		return Event{}, false
	}
}

func TestBus_FilterAndTypes(t *testing.T) {
	bus := NewBus(nil)
	mine := bus.Subscribe("notifications", Eq("user_id", "u1"))
	inserts := bus.Subscribe("notifications", Filter{}, Insert)
	other := bus.Subscribe("messages", Eq("receiver_id", "u1"))

	bus.Publish(Event{Table: "notifications", Type: Insert, Keys: map[string]string{"user_id": "u1"}, Record: 1})
	bus.Publish(Event{Table: "notifications", Type: Update, Keys: map[string]string{"user_id": "u2"}, Record: 2})

	ev, ok := recv(t, mine)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Record)
	assert.False(t, ev.At.IsZero())
	_, ok = recv(t, mine)
	assert.False(t, ok, "u2 update must not reach u1")

	ev, ok = recv(t, inserts)
	require.True(t, ok)
	assert.Equal(t, Insert, ev.Type)
	_, ok = recv(t, inserts)
	assert.False(t, ok, "update must not reach insert-only subscription")

	_, ok = recv(t, other)
	assert.False(t, ok)
}

func TestBus_UnsubscribeIdempotent(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe("notifications", Filter{})
	require.Equal(t, 1, bus.Len())

	s.Unsubscribe()
	s.Unsubscribe()
	assert.Equal(t, 0, bus.Len())

	_, open := <-s.C()
	assert.False(t, open)

	// publishing after unsubscribe must not panic on the closed channel
	bus.Publish(Event{Table: "notifications", Type: Insert})
}

func TestBus_FullBufferDrops(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe("t", Filter{})
	for i := 0; i < defaultBufferSize+10; i++ {
		bus.Publish(Event{Table: "t", Type: Insert, Record: i})
	}
	assert.Len(t, s.C(), defaultBufferSize)
}

func TestBuffer_FlushAndDiscard(t *testing.T) {
	bus := NewBus(nil)
	s := bus.Subscribe("t", Filter{})

	var buf Buffer
	buf.Publish(Event{Table: "t", Type: Insert, Record: "a"})
	buf.Publish(Event{Table: "t", Type: Update, Record: "b"})
	assert.Len(t, s.C(), 0)

	buf.Flush(bus)
	first, _ := recv(t, s)
	second, _ := recv(t, s)
	assert.Equal(t, "a", first.Record)
	assert.Equal(t, "b", second.Record)

	buf.Publish(Event{Table: "t", Type: Delete})
	buf.Discard()
	buf.Flush(bus)
	assert.Len(t, s.C(), 0)
}
