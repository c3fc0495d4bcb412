package repository

import (
	"context"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"gorm.io/gorm"
)

const (
	TableNotifications  = "notifications"
	MaxNotificationPage = 50
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, id uint64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID string, id uint64) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type notificationRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewNotificationRepository(db *gorm.DB, pub realtime.Publisher) NotificationRepository {
	return &notificationRepository{db: db, pub: pub}
}

func notificationEvent(typ realtime.EventType, n model.Notification) realtime.Event {
	return realtime.Event{
		Table:  TableNotifications,
		Type:   typ,
		Record: n,
		Keys:   map[string]string{"user_id": n.UserID},
	}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return err
	}
	r.pub.Publish(notificationEvent(realtime.Insert, *n))
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Notification
	if limit <= 0 || limit > MaxNotificationPage {
		limit = MaxNotificationPage
	}
	q := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// MarkRead sets the read flag of one notification owned by userID. It returns
// gorm.ErrRecordNotFound when the row does not exist for that user.
func (r *notificationRepository) MarkRead(ctx context.Context, userID string, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true).Error; err != nil {
		return err
	}
	n.Read = true
	r.pub.Publish(notificationEvent(realtime.Update, n))
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var unread []model.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Find(&unread).Error; err != nil {
		return 0, err
	}
	if len(unread) == 0 {
		return 0, nil
	}
	ids := make([]uint64, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.ID)
	}
	res := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	for _, n := range unread {
		n.Read = true
		r.pub.Publish(notificationEvent(realtime.Update, n))
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID string, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&model.Notification{}, n.ID).Error; err != nil {
		return err
	}
	r.pub.Publish(notificationEvent(realtime.Delete, n))
	return nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var rows []model.Notification
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]uint64, 0, len(rows))
	for _, n := range rows {
		ids = append(ids, n.ID)
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.Notification{})
	if res.Error != nil {
		return 0, res.Error
	}
	for _, n := range rows {
		r.pub.Publish(notificationEvent(realtime.Delete, n))
	}
	return res.RowsAffected, nil
}
