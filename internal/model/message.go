package model

import "time"

type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   string    `gorm:"column:sender_id;size:128;index;not null" json:"senderId"`
	ReceiverID string    `gorm:"column:receiver_id;size:128;index;not null" json:"receiverId"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	Read       bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// Peer returns the participant of m that is not uid.
func (m Message) Peer(uid string) string {
	if m.SenderID == uid {
		return m.ReceiverID
	}
	return m.SenderID
}
