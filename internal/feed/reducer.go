package feed

import (
	"sort"

	"github.com/shinyyama/herald-backend/internal/model"
)

// Outcome reports how a change was folded into the local view.
type Outcome int

const (
	// Applied means the change was new and took effect.
	Applied Outcome = iota
	// Duplicate means an insert arrived for an id already present; it was
	// merged like an update.
	Duplicate
	// Upserted means an update arrived for an unknown id and was inserted.
	Upserted
	// Ignored means the change targets a deleted id or another user.
	Ignored
	// Missing means a delete arrived for an id not present locally.
	Missing
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Duplicate:
		return "duplicate"
	case Upserted:
		return "upserted"
	case Ignored:
		return "ignored"
	case Missing:
		return "missing"
	}
	return "unknown"
}

const maxTombstones = 1024

// view is an ordered map of notifications keyed by id, newest first.
type view struct {
	items      map[uint64]model.Notification
	order      []uint64
	tombstones map[uint64]struct{}
	// buried holds tombstoned ids oldest first; the oldest is evicted once
	// maxTombstones is reached.
	buried []uint64
	unread int
}

func newView() view {
	return view{
		items:      map[uint64]model.Notification{},
		tombstones: map[uint64]struct{}{},
	}
}

func newer(a, b model.Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (v *view) deleted(id uint64) bool {
	_, ok := v.tombstones[id]
	return ok
}

func (v *view) bury(id uint64) {
	if v.deleted(id) {
		return
	}
	if len(v.buried) >= maxTombstones {
		delete(v.tombstones, v.buried[0])
		v.buried = append(v.buried[:0], v.buried[1:]...)
	}
	v.tombstones[id] = struct{}{}
	v.buried = append(v.buried, id)
}

func (v *view) recount() {
	v.unread = 0
	for _, n := range v.items {
		if !n.Read {
			v.unread++
		}
	}
}

func (v *view) place(n model.Notification) {
	v.items[n.ID] = n
	i := sort.Search(len(v.order), func(i int) bool {
		return newer(n, v.items[v.order[i]])
	})
	v.order = append(v.order, 0)
	copy(v.order[i+1:], v.order[i:])
	v.order[i] = n.ID
}

func (v *view) unplace(id uint64) {
	delete(v.items, id)
	for i, cur := range v.order {
		if cur == id {
			v.order = append(v.order[:i], v.order[i+1:]...)
			return
		}
	}
}

// merge replaces the stored row keeping the read flag monotonic.
func (v *view) merge(n model.Notification) {
	old := v.items[n.ID]
	if old.Read {
		n.Read = true
	}
	if !n.CreatedAt.Equal(old.CreatedAt) {
		v.unplace(n.ID)
		v.place(n)
		return
	}
	v.items[n.ID] = n
}

func (v *view) reset(list []model.Notification) {
	prev := v.items
	v.items = make(map[uint64]model.Notification, len(list))
	v.order = v.order[:0]
	for _, n := range list {
		if v.deleted(n.ID) {
			continue
		}
		if old, ok := prev[n.ID]; ok && old.Read {
			n.Read = true
		}
		if _, dup := v.items[n.ID]; dup {
			continue
		}
		v.place(n)
	}
	v.recount()
}

func (v *view) insert(n model.Notification) Outcome {
	if v.deleted(n.ID) {
		return Ignored
	}
	if _, ok := v.items[n.ID]; ok {
		v.merge(n)
		v.recount()
		return Duplicate
	}
	v.place(n)
	if !n.Read {
		v.unread++
	}
	return Applied
}

func (v *view) update(n model.Notification) Outcome {
	if v.deleted(n.ID) {
		return Ignored
	}
	out := Applied
	if _, ok := v.items[n.ID]; ok {
		v.merge(n)
	} else {
		v.place(n)
		out = Upserted
	}
	v.recount()
	return out
}

func (v *view) remove(id uint64) Outcome {
	v.bury(id)
	if _, ok := v.items[id]; !ok {
		return Missing
	}
	v.unplace(id)
	v.recount()
	return Applied
}

// clear empties the view and tombstones every id it held.
func (v *view) clear() {
	for _, id := range v.order {
		v.bury(id)
	}
	v.items = map[uint64]model.Notification{}
	v.order = nil
	v.unread = 0
}

func (v *view) markAllRead() {
	for id, n := range v.items {
		n.Read = true
		v.items[id] = n
	}
	v.unread = 0
}

func (v *view) list() []model.Notification {
	out := make([]model.Notification, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.items[id])
	}
	return out
}
