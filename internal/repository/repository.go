// Package repository persists baskets, orders and payment attempts.
package repository

import (
	"context"
	"errors"

	"onlinestore/internal/model"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrForeignKey = errors.New("referenced record does not exist")
)

// Repository is the storage contract used by the services.
//
// Methods called on the value handed to WithTx's callback run inside a single
// database transaction; the transaction commits when the callback returns nil
// and rolls back otherwise.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error

	// UpsertBasketLine adds quantity to the (owner, product) line, creating it
	// when absent. created reports whether a new line was inserted.
	UpsertBasketLine(ctx context.Context, ownerID, productID string, quantity int) (line *model.BasketLine, created bool, err error)
	UpdateBasketLine(ctx context.Context, ownerID, lineID string, quantity int) (*model.BasketLine, error)
	ListBasketLines(ctx context.Context, ownerID string, forUpdate bool) ([]model.BasketLine, error)
	DeleteBasketLines(ctx context.Context, ownerID string, lineIDs []string) (int64, error)

	RecipientOwner(ctx context.Context, recipientID string) (string, error)

	// CreateOrder inserts the order and its lines, filling in generated ids
	// and timestamps.
	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, orderID string, forUpdate bool) (*model.Order, error)
	ListOrders(ctx context.Context, ownerID string) ([]model.Order, error)
	MarkOrderPaid(ctx context.Context, orderID string) error

	// CreatePaymentAttempt inserts the attempt unless one with the same
	// provider payment id exists, in which case the existing row is loaded
	// into a and created is false.
	CreatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) (created bool, err error)
	GetPaymentAttemptByProviderID(ctx context.Context, providerPaymentID string, forUpdate bool) (*model.PaymentAttempt, error)
	UpdatePaymentAttempt(ctx context.Context, a *model.PaymentAttempt) error
	ListPaymentAttempts(ctx context.Context, ownerID string) ([]model.PaymentAttempt, error)
}
