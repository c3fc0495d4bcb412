package model

import "time"

type StreamDonation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	StreamID  string    `gorm:"column:stream_id;size:128;index;not null" json:"streamId"`
	DonorID   string    `gorm:"column:donor_id;size:128;index;not null" json:"donorId"`
	HostID    string    `gorm:"column:host_id;size:128;index;not null" json:"hostId"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	Message   string    `gorm:"column:message;size:255" json:"message,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (StreamDonation) TableName() string {
	return "stream_donations"
}

type CauseDonation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CauseID   string    `gorm:"column:cause_id;size:128;index;not null" json:"causeId"`
	DonorID   string    `gorm:"column:donor_id;size:128;index;not null" json:"donorId"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (CauseDonation) TableName() string {
	return "cause_donations"
}
