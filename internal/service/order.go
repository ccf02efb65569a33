package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"onlinestore/internal/events"
	"onlinestore/internal/model"
	"onlinestore/internal/repository"
)

type CheckoutRequest struct {
	RecipientID      string
	PaymentMethodID  string
	DeliveryMethodID string
}

type OrderService struct {
	repo      repository.Repository
	publisher events.Publisher
}

func NewOrderService(repo repository.Repository, publisher events.Publisher) *OrderService {
	return &OrderService{repo: repo, publisher: publisher}
}

// OrderTotal sums price*quantity over lines without rounding.
func OrderTotal(lines []model.BasketLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// BuildOrder turns the caller's basket into an order. Reading the basket,
// writing the order and its lines and removing the copied basket lines
// happen in one transaction: either all of it is visible afterwards or none.
func (s *OrderService) BuildOrder(ctx context.Context, p Principal, req CheckoutRequest) (*model.Order, error) {
	if req.RecipientID == "" || req.PaymentMethodID == "" || req.DeliveryMethodID == "" {
		return nil, invalid("recipientId, paymentMethodId and deliveryMethodId are required")
	}

	recipientOwner, err := s.repo.RecipientOwner(ctx, req.RecipientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalid("unknown recipient")
		}
		return nil, fmt.Errorf("check recipient: %w", err)
	}
	if !p.CanAccess(recipientOwner) {
		return nil, fmt.Errorf("recipient %s: %w", req.RecipientID, ErrForbidden)
	}

	var order *model.Order
	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		basket := NewBasketService(tx)

		lines, err := basket.snapshot(ctx, p.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyBasket
		}

		o := &model.Order{
			OwnerID:          p.UserID,
			RecipientID:      req.RecipientID,
			PaymentMethodID:  req.PaymentMethodID,
			DeliveryMethodID: req.DeliveryMethodID,
			TotalAmount:      OrderTotal(lines),
			Paid:             false,
			Status:           model.OrderStatusCreated,
			Lines:            make([]model.OrderLine, 0, len(lines)),
		}
		for _, l := range lines {
			o.Lines = append(o.Lines, model.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}

		if err := tx.CreateOrder(ctx, o); err != nil {
			if errors.Is(err, repository.ErrForeignKey) || errors.Is(err, repository.ErrNotFound) {
				return invalid("unknown payment or delivery method")
			}
			return err
		}

		if err := basket.ClearFor(ctx, p.UserID, lines); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order created", "order_id", order.ID, "user_id", order.OwnerID,
		"lines", len(order.Lines), "total", order.TotalAmount.StringFixed(2))

	events.Emit(ctx, s.publisher, events.New(events.TypeOrderCreated, order.ID, order.OwnerID, map[string]any{
		"total_amount": order.TotalAmount.StringFixed(2),
		"lines":        len(order.Lines),
	}))

	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, p Principal) ([]model.Order, error) {
	orders, err := s.repo.ListOrders(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// GetOrder returns ErrNotFound both for missing orders and for orders the
// caller may not see.
func (s *OrderService) GetOrder(ctx context.Context, p Principal, orderID string) (*model.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID, false)
	if err != nil {
		return nil, notFound("order "+orderID, err)
	}
	if !p.CanAccess(order.OwnerID) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, nil
}
