package repository

import (
	"context"

	"github.com/shinyyama/herald-backend/internal/model"
	"github.com/shinyyama/herald-backend/internal/realtime"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const TableWalletTransactions = "wallet_transactions"

type TransactionRepository interface {
	Create(ctx context.Context, t *model.WalletTransaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error)
	SumByToken(ctx context.Context, userID string) (map[model.TokenType]decimal.Decimal, error)
}

type transactionRepository struct {
	db  *gorm.DB
	pub realtime.Publisher
}

func NewTransactionRepository(db *gorm.DB, pub realtime.Publisher) TransactionRepository {
	return &transactionRepository{db: db, pub: pub}
}

func (r *transactionRepository) Create(ctx context.Context, t *model.WalletTransaction) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return err
	}
	r.pub.Publish(realtime.Event{
		Table:  TableWalletTransactions,
		Type:   realtime.Insert,
		Record: *t,
		Keys:   map[string]string{"user_id": t.UserID},
	})
	return nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.WalletTransaction, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var list []model.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SumByToken totals the ledger of userID per currency.
func (r *transactionRepository) SumByToken(ctx context.Context, userID string) (map[model.TokenType]decimal.Decimal, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rows []struct {
		TokenType model.TokenType
		Total     decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Select("token_type, SUM(amount) AS total").
		Where("user_id = ?", userID).
		Group("token_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	sums := make(map[model.TokenType]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.TokenType] = row.Total
	}
	return sums, nil
}
