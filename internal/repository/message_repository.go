package repository

import (
	"context"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"gorm.io/gorm"
)

const TableMessages = "messages"

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	ListForUser(ctx context.Context, userID string, limit int) ([]model.Message, error)
	ListBetween(ctx context.Context, userID, peerID string, limit int) ([]model.Message, error)
	MarkReadFrom(ctx context.Context, receiverID, senderID string) (int64, error)
}

type messageRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewMessageRepository(db *gorm.DB, pub realtime.Publisher) MessageRepository {
	return &messageRepository{db: db, pub: pub}
}

func messageEvent(typ realtime.EventType, m model.Message) realtime.Event {
	return realtime.Event{
		Table:  TableMessages,
		Type:   typ,
		Record: m,
		Keys:   map[string]string{"sender_id": m.SenderID, "receiver_id": m.ReceiverID},
	}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	r.pub.Publish(messageEvent(realtime.Insert, *msg))
	return nil
}

// ListForUser returns the newest messages the user sent or received.
func (r *messageRepository) ListForUser(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListBetween returns the conversation of two users oldest first.
func (r *messageRepository) ListBetween(ctx context.Context, userID, peerID string, limit int) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, peerID, peerID, userID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkReadFrom marks every unread message from senderID to receiverID as read.
// Only the receiver's side is ever touched.
func (r *messageRepository) MarkReadFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var unread []model.Message
	if err := r.db.WithContext(ctx).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Find(&unread).Error; err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}
	ids := make([]uint64, 0, len(unread))
	for _, m := range unread {
		ids = append(ids, m.ID)
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_id = ? AND id IN ?", receiverID, ids).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	for _, m := range unread {
		m.Read = true
		r.pub.Publish(messageEvent(realtime.Update, m))
	}
	return res.RowsAffected, nil
}
