package service_test

import (
	"context"
	"errors"
	"testing"

	"onlinestore/internal/events"
	"onlinestore/internal/model"
	"onlinestore/internal/service"
	"onlinestore/internal/testutil"
)

type webhookFixture struct {
	repo  *testutil.MemoryRepository
	pub   *testutil.RecordingPublisher
	order *model.Order
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	repo := testutil.NewMemoryRepository()
	order := placeOrder(t, repo, buyer)

	provider := &testutil.StubProvider{CreateFunc: func(context.Context, service.CreatePaymentRequest) (*model.ProviderPayment, error) {
		return testutil.ProviderPayment("pay_1", "pending", "https://pay.example/confirm/pay_1"), nil
	}}
	if _, err := service.NewPaymentService(repo, provider, nil).Initiate(context.Background(), buyer, order.ID, ""); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return &webhookFixture{repo: repo, pub: &testutil.RecordingPublisher{}, order: order}
}

func (f *webhookFixture) attempt(t *testing.T) model.PaymentAttempt {
	t.Helper()
	attempts := f.repo.Attempts()
	if len(attempts) != 1 {
		t.Fatalf("%d attempts stored", len(attempts))
	}
	return attempts[0]
}

func (f *webhookFixture) storedOrder(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.repo.GetOrder(context.Background(), f.order.ID, false)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o
}

func TestHandleSucceeded(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "")
	body := testutil.Notification("pay_1", "succeeded")

	res, err := svc.Handle(context.Background(), body, "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Applied || res.Status != model.PaymentStatusSuccess || res.OrderID != f.order.ID {
		t.Errorf("result = %+v", res)
	}

	a := f.attempt(t)
	if a.Status != model.PaymentStatusSuccess {
		t.Errorf("attempt status = %s, want SUCCESS", a.Status)
	}
	if string(a.ProviderReference) != string(body) {
		t.Errorf("provider reference = %s, want notification body", a.ProviderReference)
	}

	o := f.storedOrder(t)
	if !o.Paid || o.Status != model.OrderStatusPaid {
		t.Errorf("order = (paid %v, %s), want (true, PAID)", o.Paid, o.Status)
	}
	if got := f.pub.Types(); len(got) != 1 || got[0] != events.TypePaymentSucceeded {
		t.Errorf("events = %v", got)
	}
}

func TestHandleDuplicateIsNoop(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "")
	body := testutil.Notification("pay_1", "succeeded")

	if _, err := svc.Handle(context.Background(), body, ""); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := f.attempt(t)

	res, err := svc.Handle(context.Background(), body, "")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if res.Applied {
		t.Error("duplicate notification was applied again")
	}

	after := f.attempt(t)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.Status != model.PaymentStatusSuccess {
		t.Errorf("attempt changed on duplicate: %+v -> %+v", before, after)
	}
	if n := len(f.pub.Types()); n != 1 {
		t.Errorf("%d events published, want 1", n)
	}
}

func TestHandleFailureLeavesOrderUnpaid(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "")

	res, err := svc.Handle(context.Background(), testutil.Notification("pay_1", "canceled"), "")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Status != model.PaymentStatusError {
		t.Errorf("status = %s, want ERROR", res.Status)
	}
	if o := f.storedOrder(t); o.Paid || o.Status != model.OrderStatusCreated {
		t.Errorf("order = (paid %v, %s), want (false, CREATED)", o.Paid, o.Status)
	}
	if got := f.pub.Types(); len(got) != 1 || got[0] != events.TypePaymentFailed {
		t.Errorf("events = %v", got)
	}
}

func TestHandleConflictingTerminalStatus(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "")

	if _, err := svc.Handle(context.Background(), testutil.Notification("pay_1", "succeeded"), ""); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := svc.Handle(context.Background(), testutil.Notification("pay_1", "canceled"), "")
	if !errors.Is(err, service.ErrTransitionNotAllowed) {
		t.Fatalf("err = %v, want ErrTransitionNotAllowed", err)
	}
	if a := f.attempt(t); a.Status != model.PaymentStatusSuccess {
		t.Errorf("attempt status = %s, want SUCCESS", a.Status)
	}
}

func TestHandleUnknownPayment(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "")

	_, err := svc.Handle(context.Background(), testutil.Notification("pay_unknown", "succeeded"), "")
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if a := f.attempt(t); a.Status != model.PaymentStatusPending {
		t.Errorf("attempt status = %s, want PENDING", a.Status)
	}
	if o := f.storedOrder(t); o.Paid {
		t.Error("order marked paid")
	}
}

func TestHandleMalformed(t *testing.T) {
	svc := service.NewWebhookService(testutil.NewMemoryRepository(), nil, "")

	for name, body := range map[string]string{
		"not json":       `{"object":`,
		"missing id":     `{"object":{"status":"succeeded"}}`,
		"missing status": `{"object":{"id":"pay_1"}}`,
		"no object":      `{"type":"notification"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Handle(context.Background(), []byte(body), ""); !errors.Is(err, service.ErrMalformedWebhook) {
				t.Fatalf("err = %v, want ErrMalformedWebhook", err)
			}
		})
	}
}

func TestHandleSignature(t *testing.T) {
	f := newWebhookFixture(t)
	svc := service.NewWebhookService(f.repo, f.pub, "whsec")
	body := testutil.Notification("pay_1", "succeeded")

	if _, err := svc.Handle(context.Background(), body, ""); !errors.Is(err, service.ErrInvalidSignature) {
		t.Errorf("unsigned: err = %v, want ErrInvalidSignature", err)
	}
	if _, err := svc.Handle(context.Background(), body, service.Sign("other", body)); !errors.Is(err, service.ErrInvalidSignature) {
		t.Errorf("wrong secret: err = %v, want ErrInvalidSignature", err)
	}
	if a := f.attempt(t); a.Status != model.PaymentStatusPending {
		t.Fatalf("rejected notification changed attempt to %s", a.Status)
	}

	if _, err := svc.Handle(context.Background(), body, service.Sign("whsec", body)); err != nil {
		t.Errorf("signed: %v", err)
	}
}

func TestAttemptStatusFor(t *testing.T) {
	tests := map[string]model.PaymentStatus{
		"succeeded":           model.PaymentStatusSuccess,
		"canceled":            model.PaymentStatusError,
		"waiting_for_capture": model.PaymentStatusError,
		"pending":             model.PaymentStatusError,
	}
	for in, want := range tests {
		if got := service.AttemptStatusFor(in); got != want {
			t.Errorf("AttemptStatusFor(%q) = %s, want %s", in, got, want)
		}
	}
}
