package repository

import (
	"context"

	"github.com/shinyyama/herald-backend/internal/model"
	"gorm.io/gorm"
)

type DonationRepository interface {
	CreateStream(ctx context.Context, d *model.StreamDonation) error
	CreateCause(ctx context.Context, d *model.CauseDonation) error
	ListByStream(ctx context.Context, streamID string, limit int) ([]model.StreamDonation, error)
}

type donationRepository struct {
	db *gorm.DB
}

func NewDonationRepository(db *gorm.DB) DonationRepository {
	return &donationRepository{db: db}
}

func (r *donationRepository) CreateStream(ctx context.Context, d *model.StreamDonation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *donationRepository) CreateCause(ctx context.Context, d *model.CauseDonation) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *donationRepository) ListByStream(ctx context.Context, streamID string, limit int) ([]model.StreamDonation, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []model.StreamDonation
	if err := r.db.WithContext(ctx).
		Where("stream_id = ?", streamID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
