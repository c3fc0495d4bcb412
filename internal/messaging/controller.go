package messaging

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/shinyyama/herald-backend/internal/model"
)

// Store is the remote side of messaging.
type Store interface {
	ListForUser(ctx context.Context, uid string) ([]model.Message, error)
	ListWith(ctx context.Context, uid, peerID string) ([]model.Message, error)
	MarkReadFrom(ctx context.Context, uid, peerID string) error
	Send(ctx context.Context, uid, peerID, content string) (*model.Message, error)
}

type Listener interface {
	ConversationsChanged([]Conversation)
	MessagesChanged(peerID string, msgs []model.Message)
}

// Controller tracks the conversation list of one user and the messages of
// the conversation currently open.
type Controller struct {
	uid      string
	store    Store
	listener Listener
	logger   *slog.Logger

	mu            sync.Mutex
	conversations []Conversation
	openPeer      string
	messages      []model.Message
}

func NewController(uid string, store Store, listener Listener, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		uid:      uid,
		store:    store,
		listener: listener,
		logger:   logger.With("component", "messaging", "uid", uid),
	}
}

// Load refetches every message of the user and rebuilds the conversation list.
func (c *Controller) Load(ctx context.Context) error {
	msgs, err := c.store.ListForUser(ctx, c.uid)
	if err != nil {
		c.logger.Error("conversation fetch failed", "error", err)
		return err
	}
	convs := BuildConversations(c.uid, msgs)
	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	if c.listener != nil {
		c.listener.ConversationsChanged(convs)
	}
	return nil
}

// Open makes peerID the open conversation, fetches the thread and marks the
// peer's messages to the user read. The peer is open before the fetch, so
// messages delivered while it runs are merged in by id.
func (c *Controller) Open(ctx context.Context, peerID string) error {
	c.mu.Lock()
	c.openPeer = peerID
	c.messages = nil
	c.mu.Unlock()

	msgs, err := c.store.ListWith(ctx, c.uid, peerID)
	if err != nil {
		c.mu.Lock()
		if c.openPeer == peerID {
			c.openPeer = ""
		}
		c.mu.Unlock()
		return err
	}
	if err := c.store.MarkReadFrom(ctx, c.uid, peerID); err != nil {
		c.logger.Warn("mark read failed", "peer", peerID, "error", err)
	} else {
		for i := range msgs {
			if msgs[i].ReceiverID == c.uid {
				msgs[i].Read = true
			}
		}
	}
	c.mu.Lock()
	if c.openPeer != peerID {
		// closed or switched while fetching
		c.mu.Unlock()
		return c.Load(ctx)
	}
	c.messages = mergeByID(msgs, c.messages)
	snap := append([]model.Message(nil), c.messages...)
	c.mu.Unlock()
	if c.listener != nil {
		c.listener.MessagesChanged(peerID, snap)
	}
	return c.Load(ctx)
}

// mergeByID adds the messages of extra missing from base and keeps the
// result in chronological order.
func mergeByID(base, extra []model.Message) []model.Message {
	seen := make(map[uint64]struct{}, len(base))
	for _, m := range base {
		seen[m.ID] = struct{}{}
	}
	out := base
	added := false
	for _, m := range extra {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
		added = true
	}
	if added {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
	}
	return out
}

func (c *Controller) Close() {
	c.mu.Lock()
	c.openPeer = ""
	c.messages = nil
	c.mu.Unlock()
}

// Send writes a message to peerID and appends it when that conversation is open.
func (c *Controller) Send(ctx context.Context, peerID, content string) (*model.Message, error) {
	m, err := c.store.Send(ctx, c.uid, peerID, content)
	if err != nil {
		return nil, err
	}
	c.appendIfOpen(*m, peerID)
	return m, nil
}

// OnInsertEvent appends a message from the open peer and then always
// refetches the conversation list.
func (c *Controller) OnInsertEvent(ctx context.Context, m model.Message) {
	if m.ReceiverID != c.uid && m.SenderID != c.uid {
		return
	}
	c.appendIfOpen(m, m.SenderID)
	_ = c.Load(ctx)
}

func (c *Controller) appendIfOpen(m model.Message, peerID string) {
	c.mu.Lock()
	if c.openPeer == "" || c.openPeer != peerID {
		c.mu.Unlock()
		return
	}
	for _, cur := range c.messages {
		if cur.ID == m.ID {
			c.mu.Unlock()
			return
		}
	}
	c.messages = append(c.messages, m)
	snap := append([]model.Message(nil), c.messages...)
	c.mu.Unlock()
	if c.listener != nil {
		c.listener.MessagesChanged(peerID, snap)
	}
}

func (c *Controller) Conversations() []Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Conversation(nil), c.conversations...)
}

func (c *Controller) OpenPeer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openPeer
}

func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.messages...)
}

// Unread sums the unread counts of every conversation.
func (c *Controller) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, conv := range c.conversations {
		total += conv.Unread
	}
	return total
}
