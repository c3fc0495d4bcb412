package repository

import (
	"context"
	"strings"

	"github.com/shinyyama/herald-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	FindByUsername(ctx context.Context, username string) (*model.Profile, error)
	Create(ctx context.Context, p *model.Profile) error
	Upsert(ctx context.Context, p *model.Profile) error
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByUsername matches case-insensitively; usernames are stored lower case.
func (r *profileRepository) FindByUsername(ctx context.Context, username string) (*model.Profile, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Profile
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	if err := r.db.WithContext(ctx).Where("username = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) Create(ctx context.Context, p *model.Profile) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	p.Username = strings.ToLower(p.Username)
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *profileRepository) Upsert(ctx context.Context, p *model.Profile) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	p.Username = strings.ToLower(p.Username)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "updated_at"}),
	}).Create(p).Error
}

func (r *profileRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
