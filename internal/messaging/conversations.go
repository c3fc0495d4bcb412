package messaging

import (
	"sort"

	"github.com/shinyyama/herald-backend/internal/model"
)

// Conversation is derived from messages; it is never stored.
type Conversation struct {
	PeerID      string        `json:"peerId"`
	LastMessage model.Message `json:"lastMessage"`
	Unread      int           `json:"unread"`
}

// BuildConversations groups the messages of uid by the other participant,
// newest conversation first. Unread counts only messages uid received.
func BuildConversations(uid string, msgs []model.Message) []Conversation {
	byPeer := map[string]*Conversation{}
	for _, m := range msgs {
		if m.SenderID != uid && m.ReceiverID != uid {
			continue
		}
		peer := m.Peer(uid)
		c, ok := byPeer[peer]
		if !ok {
			c = &Conversation{PeerID: peer, LastMessage: m}
			byPeer[peer] = c
		} else if later(m, c.LastMessage) {
			c.LastMessage = m
		}
		if m.ReceiverID == uid && !m.Read {
			c.Unread++
		}
	}
	out := make([]Conversation, 0, len(byPeer))
	for _, c := range byPeer {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return later(out[i].LastMessage, out[j].LastMessage)
	})
	return out
}

func later(a, b model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
