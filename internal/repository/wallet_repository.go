package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const TableWallets = "wallets"

type WalletRepository interface {
	Get(ctx context.Context, userID string) (*model.Wallet, error)
	Ensure(ctx context.Context, userID string) (*model.Wallet, error)
	Apply(ctx context.Context, userID string, d model.WalletDelta) (*model.Wallet, error)
	ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

type walletRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewWalletRepository(db *gorm.DB, pub realtime.Publisher) WalletRepository {
	return &walletRepository{db: db, pub: pub}
}

func (r *walletRepository) Get(ctx context.Context, userID string) (*model.Wallet, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// Ensure returns the wallet of userID, creating an empty one on first use.
func (r *walletRepository) Ensure(ctx context.Context, userID string) (*model.Wallet, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Wallet{UserID: userID}).Error; err != nil {
		return nil, err
	}
	return r.Get(ctx, userID)
}

// Apply adds d to the wallet in a single UPDATE. Debits are guarded so no
// balance goes negative; a guarded miss returns ErrInsufficientFunds and a
// missing wallet returns gorm.ErrRecordNotFound.
func (r *walletRepository) Apply(ctx context.Context, userID string, d model.WalletDelta) (*model.Wallet, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if d.IsZero() {
		return r.Get(ctx, userID)
	}
	updates := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": r.db.NowFunc(),
	}
	q := r.db.WithContext(ctx).Model(&model.Wallet{}).Where("user_id = ?", userID)
	if d.Points != 0 {
		updates["httn_points"] = gorm.Expr("httn_points + ?", d.Points)
		if d.Points < 0 {
			q = q.Where("httn_points >= ?", -d.Points)
		}
	}
	if !d.Tokens.IsZero() {
		updates["httn_tokens"] = gorm.Expr("httn_tokens + ?", d.Tokens)
		if d.Tokens.IsNegative() {
			q = q.Where("httn_tokens >= ?", d.Tokens.Neg())
		}
	}
	if !d.Espees.IsZero() {
		updates["espees"] = gorm.Expr("espees + ?", d.Espees)
		if d.Espees.IsNegative() {
			q = q.Where("espees >= ?", d.Espees.Neg())
		}
	}
	if d.PendingRewards != 0 {
		updates["pending_rewards"] = gorm.Expr("pending_rewards + ?", d.PendingRewards)
		if d.PendingRewards < 0 {
			q = q.Where("pending_rewards >= ?", -d.PendingRewards)
		}
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, userID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientFunds
	}
	w, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.pub.Publish(realtime.Event{
		Table:  TableWallets,
		Type:   realtime.Update,
		Record: *w,
		Keys:   map[string]string{"user_id": w.UserID},
	})
	return w, nil
}

// ListUserIDs pages through wallet owners in key order.
func (r *walletRepository) ListUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 {
		limit = 100
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id > ?", afterID).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return ids, nil
}
