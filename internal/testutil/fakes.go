package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"onlinestore/internal/events"
	"onlinestore/internal/model"
	"onlinestore/internal/service"
)

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

func (p *RecordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.Err
}

func (p *RecordingPublisher) Close() error { return nil }

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// StubProvider answers CreatePayment with CreateFunc, or by default with a
// pending payment whose id is derived from the idempotency key, the way the
// processor deduplicates retries.
type StubProvider struct {
	mu         sync.Mutex
	requests   []service.CreatePaymentRequest
	CreateFunc func(ctx context.Context, req service.CreatePaymentRequest) (*model.ProviderPayment, error)
}

func (s *StubProvider) CreatePayment(ctx context.Context, req service.CreatePaymentRequest) (*model.ProviderPayment, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, req)
	}
	return ProviderPayment("pay_"+req.IdempotencyKey, "pending", "https://pay.example/confirm/"+req.IdempotencyKey), nil
}

func (s *StubProvider) Requests() []service.CreatePaymentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]service.CreatePaymentRequest(nil), s.requests...)
}

// ProviderPayment builds a processor payment with its raw JSON filled in.
func ProviderPayment(id, status, confirmationURL string) *model.ProviderPayment {
	p := &model.ProviderPayment{ID: id, Status: status}
	if confirmationURL != "" {
		p.Confirmation = &model.Confirmation{Type: "redirect", ConfirmationURL: confirmationURL}
	}
	p.Raw, _ = json.Marshal(p)
	return p
}

// Notification renders a processor callback body for a payment.
func Notification(paymentID, status string) []byte {
	body, _ := json.Marshal(map[string]any{
		"type":  "notification",
		"event": "payment." + status,
		"object": map[string]any{
			"id":     paymentID,
			"status": status,
			"paid":   status == model.ProviderStatusSucceeded,
		},
	})
	return body
}

// Token signs a bearer token carrying the claims the auth middleware reads.
func Token(t testing.TB, secret, userID string, role service.Role) string {
	t.Helper()

	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = string(role)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
