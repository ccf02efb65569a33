package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"onlinestore/internal/events"
	"onlinestore/internal/model"
	"onlinestore/internal/repository"
)

// Notification is the processor callback envelope.
type Notification struct {
	Type   string                `json:"type"`
	Event  string                `json:"event"`
	Object model.ProviderPayment `json:"object"`
}

type WebhookResult struct {
	AttemptID string
	OrderID   string
	Status    model.PaymentStatus
	// Applied is false when the notification repeated an outcome that was
	// already recorded.
	Applied bool
}

func ParseNotification(raw []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedWebhook, err)
	}
	if n.Object.ID == "" || n.Object.Status == "" {
		return nil, fmt.Errorf("%w: object id and status are required", ErrMalformedWebhook)
	}
	n.Object.Raw = raw
	return &n, nil
}

// AttemptStatusFor maps a processor status onto an attempt outcome. Anything
// but "succeeded" counts as a failure.
func AttemptStatusFor(providerStatus string) model.PaymentStatus {
	if providerStatus == model.ProviderStatusSucceeded {
		return model.PaymentStatusSuccess
	}
	return model.PaymentStatusError
}

// Sign returns the hex HMAC-SHA256 of body as expected in the signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type WebhookService struct {
	repo      repository.Repository
	publisher events.Publisher
	secret    string
}

// NewWebhookService builds the reconciler. An empty secret accepts unsigned
// callbacks.
func NewWebhookService(repo repository.Repository, publisher events.Publisher, secret string) *WebhookService {
	return &WebhookService{repo: repo, publisher: publisher, secret: secret}
}

func (s *WebhookService) verify(body []byte, signature string) error {
	if s.secret == "" {
		return nil
	}
	expected := Sign(s.secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Handle applies a processor notification to the matching payment attempt
// and, on success, to its order, within one transaction. Redelivery of an
// already recorded outcome is a no-op.
func (s *WebhookService) Handle(ctx context.Context, raw []byte, signature string) (*WebhookResult, error) {
	if err := s.verify(raw, signature); err != nil {
		return nil, err
	}

	n, err := ParseNotification(raw)
	if err != nil {
		return nil, err
	}

	target := AttemptStatusFor(n.Object.Status)
	var res WebhookResult

	err = s.repo.WithTx(ctx, func(tx repository.Repository) error {
		attempt, err := tx.GetPaymentAttemptByProviderID(ctx, n.Object.ID, true)
		if err != nil {
			return notFound("payment "+n.Object.ID, err)
		}

		res = WebhookResult{AttemptID: attempt.ID, OrderID: attempt.OrderID, Status: attempt.Status}

		if attempt.Status.Terminal() {
			if attempt.Status == target {
				return nil
			}
			return fmt.Errorf("attempt %s is %s, notification says %s: %w",
				attempt.ID, attempt.Status, n.Object.Status, ErrTransitionNotAllowed)
		}

		attempt.Status = target
		attempt.ProviderReference = raw
		if err := tx.UpdatePaymentAttempt(ctx, attempt); err != nil {
			return err
		}

		if target == model.PaymentStatusSuccess {
			if err := tx.MarkOrderPaid(ctx, attempt.OrderID); err != nil {
				return err
			}
		}

		res.Status = target
		res.Applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.Applied {
		slog.Info("duplicate payment notification ignored", "payment_id", n.Object.ID, "status", res.Status)
		return &res, nil
	}

	slog.Info("payment reconciled", "payment_id", n.Object.ID, "order_id", res.OrderID, "status", res.Status)

	eventType := events.TypePaymentFailed
	if res.Status == model.PaymentStatusSuccess {
		eventType = events.TypePaymentSucceeded
	}
	events.Emit(ctx, s.publisher, events.New(eventType, res.OrderID, "", map[string]any{
		"payment_id":      n.Object.ID,
		"provider_status": n.Object.Status,
	}))

	return &res, nil
}
