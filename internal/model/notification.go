package model

import "time"

type Notification struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        string    `gorm:"column:user_id;size:128;index:idx_notifications_user_created,priority:1;not null" json:"userId"`
	Type          string    `gorm:"column:type;size:64;not null" json:"type"`
	Title         string    `gorm:"column:title;size:255" json:"title"`
	Message       string    `gorm:"column:message;type:text" json:"message"`
	ActorID       *string   `gorm:"column:actor_id;size:128" json:"actorId,omitempty"`
	ActorName     string    `gorm:"column:actor_name;size:255" json:"actorName,omitempty"`
	ActorAvatar   string    `gorm:"column:actor_avatar;size:512" json:"actorAvatar,omitempty"`
	ActorVerified bool      `gorm:"column:actor_verified;not null;default:false" json:"actorVerified"`
	ReferenceID   *string   `gorm:"column:reference_id;size:128" json:"referenceId,omitempty"`
	ReferenceType string    `gorm:"column:reference_type;size:32" json:"referenceType,omitempty"`
	Read          bool      `gorm:"column:is_read;not null;default:false;index" json:"read"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_notifications_user_created,priority:2" json:"createdAt"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Notification type tags written by this backend.
const (
	NotificationTypeTransfer = "transfer"
	NotificationTypeTip      = "tip"
)
