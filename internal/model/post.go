package model

import "time"

type Post struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"column:user_id;size:128;index;not null" json:"userId"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	MediaURL  *string   `gorm:"column:media_url;size:512" json:"mediaUrl,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Post) TableName() string {
	return "posts"
}

// TaskCompletion marks a task as done for a user; the pair is unique.
type TaskCompletion struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"column:user_id;size:128;not null;uniqueIndex:idx_task_completions_user_task,priority:1" json:"userId"`
	TaskID    string    `gorm:"column:task_id;size:128;not null;uniqueIndex:idx_task_completions_user_task,priority:2" json:"taskId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (TaskCompletion) TableName() string {
	return "task_completions"
}
