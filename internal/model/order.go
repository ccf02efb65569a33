package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is the immutable snapshot of a basket taken at checkout.
// Only Paid and Status change after creation.
type Order struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"user"`
	RecipientID      string          `json:"recipientId"`
	PaymentMethodID  string          `json:"paymentMethodId"`
	DeliveryMethodID string          `json:"deliveryMethodId"`
	TotalAmount      decimal.Decimal `json:"payment_total"`
	Paid             bool            `json:"is_paid"`
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created"`
	Lines            []OrderLine     `json:"items"`
}

type OrderLine struct {
	ID        string `json:"id"`
	OrderID   string `json:"-"`
	ProductID string `json:"goodId"`
	Quantity  int    `json:"count"`
}
