package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the three balances of a user. Version is bumped on every write.
type Wallet struct {
	UserID         string          `gorm:"column:user_id;primaryKey;size:128" json:"userId"`
	HTTNPoints     int64           `gorm:"column:httn_points;not null;default:0" json:"httnPoints"`
	HTTNTokens     decimal.Decimal `gorm:"column:httn_tokens;type:decimal(20,8);not null;default:0" json:"httnTokens"`
	Espees         decimal.Decimal `gorm:"column:espees;type:decimal(20,8);not null;default:0" json:"espees"`
	PendingRewards int64           `gorm:"column:pending_rewards;not null;default:0" json:"pendingRewards"`
	Version        int64           `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// WalletDelta is a signed change applied to a wallet row in one statement.
type WalletDelta struct {
	Points         int64
	Tokens         decimal.Decimal
	Espees         decimal.Decimal
	PendingRewards int64
}

func (d WalletDelta) IsZero() bool {
	return d.Points == 0 && d.Tokens.IsZero() && d.Espees.IsZero() && d.PendingRewards == 0
}
