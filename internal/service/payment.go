package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"onlinestore/internal/events"
	"onlinestore/internal/model"
	"onlinestore/internal/repository"
)

// idempotencyNamespace scopes client supplied keys before they are sent to
// the processor.
var idempotencyNamespace = uuid.MustParse("5b0c2f55-8a0e-4f38-9a52-4f4f0b9a7c11")

type PaymentInitiation struct {
	AttemptID       string              `json:"transaction_id"`
	OrderID         string              `json:"checkout_id"`
	PaymentID       string              `json:"payment_id"`
	ConfirmationURL string              `json:"confirmation_url"`
	Status          model.PaymentStatus `json:"status"`
	Amount          decimal.Decimal     `json:"amount"`
}

type PaymentService struct {
	repo      repository.Repository
	provider  PaymentProvider
	publisher events.Publisher
}

func NewPaymentService(repo repository.Repository, provider PaymentProvider, publisher events.Publisher) *PaymentService {
	return &PaymentService{repo: repo, provider: provider, publisher: publisher}
}

// IdempotencyKey returns a fresh key for every call unless the client sent
// its own, in which case the key is derived from it and the order so that a
// retried request reaches the processor with the same key.
func IdempotencyKey(orderID, clientKey string) string {
	if clientKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(idempotencyNamespace, []byte(orderID+":"+clientKey)).String()
}

// Initiate asks the processor for a payment of the order total and records a
// pending attempt. Nothing is stored when the processor call fails.
func (s *PaymentService) Initiate(ctx context.Context, p Principal, orderID, clientKey string) (*PaymentInitiation, error) {
	if orderID == "" {
		return nil, invalid("checkout_id is required")
	}

	order, err := s.repo.GetOrder(ctx, orderID, false)
	if err != nil {
		return nil, notFound("order "+orderID, err)
	}
	if !p.CanAccess(order.OwnerID) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if order.Paid {
		return nil, invalid("order is already paid")
	}
	if order.Status == model.OrderStatusCancelled {
		return nil, invalid("order is cancelled")
	}

	payment, err := s.provider.CreatePayment(ctx, CreatePaymentRequest{
		IdempotencyKey: IdempotencyKey(order.ID, clientKey),
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		Description:    "Order #" + order.ID,
	})
	if err != nil {
		if !errors.Is(err, ErrGateway) {
			err = fmt.Errorf("%w: %w", ErrGateway, err)
		}
		slog.Error("payment creation failed", "order_id", order.ID, "error", err)
		return nil, err
	}
	if payment.ID == "" || payment.ConfirmationURL() == "" {
		return nil, fmt.Errorf("%w: payment %q has no confirmation url", ErrGateway, payment.ID)
	}

	attempt := &model.PaymentAttempt{
		OrderID:           order.ID,
		Status:            model.PaymentStatusPending,
		Amount:            order.TotalAmount,
		ProviderPaymentID: payment.ID,
		ProviderReference: payment.Raw,
	}
	created, err := s.repo.CreatePaymentAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("save payment attempt: %w", err)
	}

	if created {
		slog.Info("payment initiated", "order_id", order.ID, "payment_id", payment.ID, "amount", attempt.Amount.StringFixed(2))
		events.Emit(ctx, s.publisher, events.New(events.TypePaymentCreated, order.ID, order.OwnerID, map[string]any{
			"payment_id": payment.ID,
			"amount":     attempt.Amount.StringFixed(2),
		}))
	} else {
		slog.Info("payment request replayed", "order_id", order.ID, "payment_id", payment.ID)
	}

	return &PaymentInitiation{
		AttemptID:       attempt.ID,
		OrderID:         order.ID,
		PaymentID:       payment.ID,
		ConfirmationURL: payment.ConfirmationURL(),
		Status:          attempt.Status,
		Amount:          attempt.Amount,
	}, nil
}

func (s *PaymentService) ListAttempts(ctx context.Context, p Principal) ([]model.PaymentAttempt, error) {
	attempts, err := s.repo.ListPaymentAttempts(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.PaymentAttempt{}
	}
	return attempts, nil
}
