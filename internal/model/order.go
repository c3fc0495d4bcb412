package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusCanceled OrderStatus = "canceled"
)

// OrderItem is one cart line as stored in Order.Items.
type OrderItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	PricePoints int64           `json:"pricePoints"`
	PriceEspees decimal.Decimal `json:"priceEspees"`
}

type Order struct {
	ID          uint64                         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string                         `gorm:"column:user_id;size:128;index;not null" json:"userId"`
	Items       datatypes.JSONSlice[OrderItem] `gorm:"column:items" json:"items"`
	TotalPoints int64                          `gorm:"column:total_points;not null;default:0" json:"totalPoints"`
	TotalEspees decimal.Decimal                `gorm:"column:total_espees;type:decimal(20,8);not null;default:0" json:"totalEspees"`
	Status      OrderStatus                    `gorm:"column:status;size:32;not null" json:"status"`
	CreatedAt   time.Time                      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}
