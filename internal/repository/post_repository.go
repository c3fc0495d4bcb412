package repository

import (
	"context"

	"github.com/shinyyama/herald-backend/internal/model"
	"gorm.io/gorm"
)

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Post, int64, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *postRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Post, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		posts []model.Post
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.Post{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}
