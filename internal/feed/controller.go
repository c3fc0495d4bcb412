// Package feed keeps a per-session view of a user's notifications: an
// initial fetch, realtime insert/update/delete events folded in by id, and
// an unread counter derived from the view.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shinyyama/herald-backend/internal/model"
)

// PageSize is how many notifications Initialize and Refresh fetch.
const PageSize = 50

// Store is the remote side of the feed.
type Store interface {
	Recent(ctx context.Context, uid string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, uid string, id uint64) error
	MarkAllRead(ctx context.Context, uid string) error
	Delete(ctx context.Context, uid string, id uint64) error
	ClearAll(ctx context.Context, uid string) error
}

type Toast struct {
	NotificationID uint64 `json:"notificationId"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
}

type Snapshot struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

// Listener observes the feed. Calls are made without the controller lock held.
type Listener interface {
	FeedChanged(Snapshot)
	Toast(Toast)
}

type Controller struct {
	uid      string
	store    Store
	listener Listener
	logger   *slog.Logger

	mu sync.Mutex
	v  view
}

func NewController(uid string, store Store, listener Listener, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		uid:      uid,
		store:    store,
		listener: listener,
		logger:   logger.With("component", "feed", "uid", uid),
		v:        newView(),
	}
}

// Initialize loads the newest notifications. A fetch error is logged and
// leaves the feed empty; it is not retried.
func (c *Controller) Initialize(ctx context.Context) {
	list, err := c.store.Recent(ctx, c.uid, PageSize)
	if err != nil {
		c.logger.Error("initial notification fetch failed", "error", err)
		list = nil
	}
	c.mu.Lock()
	c.v = newView()
	c.v.reset(list)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

// Refresh refetches the newest page and replaces the local view. Read flags
// already seen locally are kept.
func (c *Controller) Refresh(ctx context.Context) error {
	list, err := c.store.Recent(ctx, c.uid, PageSize)
	if err != nil {
		c.logger.Warn("notification refresh failed", "error", err)
		return err
	}
	c.mu.Lock()
	c.v.reset(list)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

func (c *Controller) OnInsertEvent(n model.Notification) Outcome {
	if n.UserID != c.uid {
		return Ignored
	}
	c.mu.Lock()
	out := c.v.insert(n)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if out == Applied {
		c.publish(snap)
		if c.listener != nil {
			c.listener.Toast(Toast{NotificationID: n.ID, Type: n.Type, Title: n.Title, Message: n.Message})
		}
	} else if out == Duplicate {
		c.publish(snap)
	}
	c.logger.Debug("notification insert", "id", n.ID, "outcome", out.String())
	return out
}

func (c *Controller) OnUpdateEvent(n model.Notification) Outcome {
	if n.UserID != c.uid {
		return Ignored
	}
	c.mu.Lock()
	out := c.v.update(n)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if out != Ignored {
		c.publish(snap)
	}
	c.logger.Debug("notification update", "id", n.ID, "outcome", out.String())
	return out
}

// OnDeleteEvent drops the row and recomputes the unread count from what is left.
func (c *Controller) OnDeleteEvent(n model.Notification) Outcome {
	if n.UserID != "" && n.UserID != c.uid {
		return Ignored
	}
	c.mu.Lock()
	out := c.v.remove(n.ID)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if out == Applied {
		c.publish(snap)
	}
	c.logger.Debug("notification delete", "id", n.ID, "outcome", out.String())
	return out
}

// MarkRead only writes remotely; the update event converges the view.
func (c *Controller) MarkRead(ctx context.Context, id uint64) error {
	return c.store.MarkRead(ctx, c.uid, id)
}

// MarkAllRead writes remotely and then marks the local view read without
// waiting for the per-row update events.
func (c *Controller) MarkAllRead(ctx context.Context) error {
	if err := c.store.MarkAllRead(ctx, c.uid); err != nil {
		return err
	}
	c.mu.Lock()
	c.v.markAllRead()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
	return nil
}

// Delete only writes remotely; the delete event converges the view.
func (c *Controller) Delete(ctx context.Context, id uint64) error {
	return c.store.Delete(ctx, c.uid, id)
}

func (c *Controller) ClearAll(ctx context.Context) error {
	if err := c.store.ClearAll(ctx, c.uid); err != nil {
		return err
	}
	c.Reset()
	return nil
}

// Reset empties the local view. Tombstones survive so late events for
// cleared rows stay ignored.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.v.clear()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v.unread
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{Notifications: c.v.list(), Unread: c.v.unread}
}

func (c *Controller) publish(s Snapshot) {
	if c.listener != nil {
		c.listener.FeedChanged(s)
	}
}
