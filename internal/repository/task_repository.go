package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/herald-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAlreadyCompleted = errors.New("task already completed")

type TaskRepository interface {
	Complete(ctx context.Context, userID, taskID string) error
	IsCompleted(ctx context.Context, userID, taskID string) (bool, error)
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Complete inserts the (userID, taskID) pair. It returns ErrAlreadyCompleted
// when the pair already exists.
func (r *taskRepository) Complete(ctx context.Context, userID, taskID string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.TaskCompletion{UserID: userID, TaskID: taskID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyCompleted
	}
	return nil
}

func (r *taskRepository) IsCompleted(ctx context.Context, userID, taskID string) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.TaskCompletion{}).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}
