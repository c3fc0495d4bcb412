package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	list     []model.Notification
	err      error
	markRead []uint64
	allRead  int
	deleted  []uint64
	cleared  int
}

func (f *fakeStore) Recent(_ context.Context, _ string, limit int) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.list) {
		return append([]model.Notification(nil), f.list[:limit]...), nil
	}
	return append([]model.Notification(nil), f.list...), nil
}

func (f *fakeStore) MarkRead(_ context.Context, _ string, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markRead = append(f.markRead, id)
	return f.err
}

func (f *fakeStore) MarkAllRead(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allRead++
	return f.err
}

func (f *fakeStore) Delete(_ context.Context, _ string, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeStore) ClearAll(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return f.err
}

type recorder struct {
	mu     sync.Mutex
	snaps  []Snapshot
	toasts []Toast
}

func (r *recorder) FeedChanged(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) Toast(t Toast) {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
}

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func note(id uint64, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      "like",
		Title:     "title",
		Message:   "message",
		Read:      read,
		CreatedAt: base.Add(time.Duration(id) * time.Minute),
	}
}

func ids(s Snapshot) []uint64 {
	out := make([]uint64, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		out = append(out, n.ID)
	}
	return out
}

func newTestController(store Store) (*Controller, *recorder) {
	rec := &recorder{}
	return NewController("u1", store, rec, nil), rec
}

func TestInitialize_UnreadMatchesList(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(5, false), note(4, true), note(3, false), note(2, false), note(1, true)}}
	c, rec := newTestController(store)

	c.Initialize(context.Background())

	snap := c.Snapshot()
	assert.Equal(t, []uint64{5, 4, 3, 2, 1}, ids(snap))
	assert.Equal(t, 3, snap.Unread)
	require.Len(t, rec.snaps, 1)
}

func TestInitialize_FetchErrorLeavesEmptyFeed(t *testing.T) {
	c, _ := newTestController(&fakeStore{err: errors.New("network down")})
	c.Initialize(context.Background())

	snap := c.Snapshot()
	assert.Empty(t, snap.Notifications)
	assert.Zero(t, snap.Unread)
}

func TestInsert_PrependsAndCounts(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(1, false), note(2, true)}}
	c, rec := newTestController(store)
	c.Initialize(context.Background())
	require.Equal(t, 1, c.Unread())

	assert.Equal(t, Applied, c.OnInsertEvent(note(3, false)))

	snap := c.Snapshot()
	assert.Equal(t, []uint64{3, 2, 1}, ids(snap))
	assert.Equal(t, 2, snap.Unread)
	require.Len(t, rec.toasts, 1)
	assert.Equal(t, uint64(3), rec.toasts[0].NotificationID)
	assert.Equal(t, "title", rec.toasts[0].Title)
}

func TestInsert_DistinctIdsGrowListNewestFirst(t *testing.T) {
	c, _ := newTestController(&fakeStore{list: []model.Notification{note(1, true)}})
	c.Initialize(context.Background())

	for _, id := range []uint64{4, 2, 7, 3} {
		c.OnInsertEvent(note(id, false))
	}
	snap := c.Snapshot()
	assert.Equal(t, []uint64{7, 4, 3, 2, 1}, ids(snap))
	assert.Equal(t, 4, snap.Unread)
}

func TestInsert_DuplicateDeliveryIsMerged(t *testing.T) {
	c, rec := newTestController(&fakeStore{})
	c.Initialize(context.Background())

	assert.Equal(t, Applied, c.OnInsertEvent(note(1, false)))
	assert.Equal(t, Duplicate, c.OnInsertEvent(note(1, false)))

	snap := c.Snapshot()
	assert.Len(t, snap.Notifications, 1)
	assert.Equal(t, 1, snap.Unread)
	assert.Len(t, rec.toasts, 1)
}

func TestInsert_OtherUserIgnored(t *testing.T) {
	c, rec := newTestController(&fakeStore{})
	n := note(1, false)
	n.UserID = "u2"
	assert.Equal(t, Ignored, c.OnInsertEvent(n))
	assert.Empty(t, c.Snapshot().Notifications)
	assert.Empty(t, rec.toasts)
}

func TestUpdate_RecountsAndKeepsReadMonotonic(t *testing.T) {
	c, _ := newTestController(&fakeStore{list: []model.Notification{note(2, false), note(1, false)}})
	c.Initialize(context.Background())

	assert.Equal(t, Applied, c.OnUpdateEvent(note(1, true)))
	assert.Equal(t, 1, c.Unread())

	// a stale unread update must not revert the read flag
	assert.Equal(t, Applied, c.OnUpdateEvent(note(1, false)))
	assert.Equal(t, 1, c.Unread())
	assert.True(t, c.Snapshot().Notifications[1].Read)
}

func TestUpdate_UnknownIdUpsertedWithoutToast(t *testing.T) {
	c, rec := newTestController(&fakeStore{})
	c.Initialize(context.Background())

	assert.Equal(t, Upserted, c.OnUpdateEvent(note(9, false)))
	assert.Equal(t, 1, c.Unread())
	assert.Empty(t, rec.toasts)
}

func TestDelete_RecomputesUnread(t *testing.T) {
	c, _ := newTestController(&fakeStore{list: []model.Notification{note(3, false), note(2, false), note(1, true)}})
	c.Initialize(context.Background())
	require.Equal(t, 2, c.Unread())

	assert.Equal(t, Applied, c.OnDeleteEvent(note(3, false)))
	assert.Equal(t, 1, c.Unread())
	assert.Equal(t, []uint64{2, 1}, ids(c.Snapshot()))

	assert.Equal(t, Missing, c.OnDeleteEvent(note(42, false)))
}

func TestDelete_LateEventsForDeletedIdIgnored(t *testing.T) {
	c, _ := newTestController(&fakeStore{list: []model.Notification{note(1, false)}})
	c.Initialize(context.Background())

	c.OnDeleteEvent(model.Notification{ID: 1})
	assert.Equal(t, Ignored, c.OnUpdateEvent(note(1, true)))
	assert.Equal(t, Ignored, c.OnInsertEvent(note(1, false)))
	assert.Empty(t, c.Snapshot().Notifications)
	assert.Zero(t, c.Unread())
}

func TestDelete_TombstonesEvictOldestFirst(t *testing.T) {
	c, _ := newTestController(&fakeStore{})
	c.Initialize(context.Background())

	for id := uint64(1); id <= maxTombstones+1; id++ {
		c.OnDeleteEvent(model.Notification{ID: id})
	}
	c.mu.Lock()
	assert.Len(t, c.v.tombstones, maxTombstones)
	assert.Len(t, c.v.buried, maxTombstones)
	c.mu.Unlock()

	assert.Equal(t, Ignored, c.OnUpdateEvent(note(2, false)), "recent tombstones survive eviction")
	assert.Equal(t, Ignored, c.OnUpdateEvent(note(maxTombstones+1, false)))
	assert.Equal(t, Upserted, c.OnUpdateEvent(note(1, false)), "only the oldest is evicted")

	// deleting an id twice does not take a second slot
	c.OnDeleteEvent(model.Notification{ID: 3})
	assert.Equal(t, Ignored, c.OnUpdateEvent(note(4, false)))
}

func TestClearAll_TombstonesRespectCap(t *testing.T) {
	list := make([]model.Notification, 0, 10)
	for id := uint64(10); id >= 1; id-- {
		list = append(list, note(id, false))
	}
	c, _ := newTestController(&fakeStore{list: list})
	c.Initialize(context.Background())
	for id := uint64(100); id < 100+maxTombstones; id++ {
		c.OnDeleteEvent(model.Notification{ID: id})
	}

	require.NoError(t, c.ClearAll(context.Background()))
	c.mu.Lock()
	assert.Len(t, c.v.tombstones, maxTombstones)
	c.mu.Unlock()
	assert.Equal(t, Ignored, c.OnUpdateEvent(note(10, false)), "cleared rows stay deleted")
	assert.Equal(t, Upserted, c.OnUpdateEvent(note(100, false)))
}

func TestMarkRead_RemoteOnly(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(1, false)}}
	c, _ := newTestController(store)
	c.Initialize(context.Background())

	require.NoError(t, c.MarkRead(context.Background(), 1))
	assert.Equal(t, []uint64{1}, store.markRead)
	assert.Equal(t, 1, c.Unread(), "local view waits for the update event")

	c.OnUpdateEvent(note(1, true))
	assert.Zero(t, c.Unread())
}

func TestMarkAllRead_Idempotent(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(3, false), note(2, true), note(1, false)}}
	c, _ := newTestController(store)
	c.Initialize(context.Background())

	for i := 0; i < 2; i++ {
		require.NoError(t, c.MarkAllRead(context.Background()))
		snap := c.Snapshot()
		assert.Zero(t, snap.Unread)
		for _, n := range snap.Notifications {
			assert.True(t, n.Read)
		}
	}
	assert.Equal(t, 2, store.allRead)
}

func TestMarkAllRead_RemoteFailureKeepsState(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(1, false)}}
	c, _ := newTestController(store)
	c.Initialize(context.Background())

	store.err = errors.New("denied")
	assert.Error(t, c.MarkAllRead(context.Background()))
	assert.Equal(t, 1, c.Unread())
}

func TestDeleteAndClearAll(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(2, false), note(1, false)}}
	c, _ := newTestController(store)
	c.Initialize(context.Background())

	require.NoError(t, c.Delete(context.Background(), 2))
	assert.Equal(t, []uint64{2}, store.deleted)
	assert.Len(t, c.Snapshot().Notifications, 2, "delete converges through the event")

	require.NoError(t, c.ClearAll(context.Background()))
	assert.Equal(t, 1, store.cleared)
	assert.Empty(t, c.Snapshot().Notifications)
	assert.Zero(t, c.Unread())
	assert.Equal(t, Ignored, c.OnUpdateEvent(note(1, false)))
}

func TestRefresh_ReplacesViewKeepingReadFlags(t *testing.T) {
	store := &fakeStore{list: []model.Notification{note(1, false)}}
	c, _ := newTestController(store)
	c.Initialize(context.Background())
	c.OnUpdateEvent(note(1, true))

	store.list = []model.Notification{note(5, false), note(1, false)}
	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, []uint64{5, 1}, ids(snap))
	assert.Equal(t, 1, snap.Unread)

	store.err = errors.New("timeout")
	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, []uint64{5, 1}, ids(c.Snapshot()))
}

func TestConcurrentEvents(t *testing.T) {
	c, _ := newTestController(&fakeStore{})
	c.Initialize(context.Background())

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			c.OnInsertEvent(note(id, false))
			c.OnInsertEvent(note(id, false))
		}(uint64(i))
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Len(t, snap.Notifications, 50)
	assert.Equal(t, 50, snap.Unread)
	assert.Equal(t, uint64(50), snap.Notifications[0].ID)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
