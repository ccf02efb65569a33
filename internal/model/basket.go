package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type BasketLine struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	ProductID string    `json:"goodId"`
	Product   Product   `json:"good"`
	Quantity  int       `json:"count"`
	CreatedAt time.Time `json:"-"`
}

// Subtotal is the line price at the product's current price.
func (l BasketLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
