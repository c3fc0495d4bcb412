package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenType string

const (
	TokenTypePoints TokenType = "points"
	TokenTypeTokens TokenType = "tokens"
	TokenTypeEspees TokenType = "espees"
)

type TransactionType string

const (
	TransactionSend             TransactionType = "send"
	TransactionReceive          TransactionType = "receive"
	TransactionConvertIn        TransactionType = "convert_in"
	TransactionConvertOut       TransactionType = "convert_out"
	TransactionEarned           TransactionType = "earned"
	TransactionPurchase         TransactionType = "purchase"
	TransactionDonation         TransactionType = "donation"
	TransactionDonationReceived TransactionType = "donation_received"
	TransactionClaim            TransactionType = "claim"
)

// WalletTransaction is an append-only ledger entry. Outflows are negative.
type WalletTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string          `gorm:"column:user_id;size:128;index;not null" json:"userId"`
	Type        TransactionType `gorm:"column:type;size:32;not null" json:"type"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	TokenType   TokenType       `gorm:"column:token_type;size:16;not null" json:"tokenType"`
	Description string          `gorm:"column:description;size:255" json:"description,omitempty"`
	ReferenceID *string         `gorm:"column:reference_id;size:128" json:"referenceId,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
