package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusError   PaymentStatus = "ERROR"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusError
}

// PaymentAttempt records one request to the payment processor for an order.
type PaymentAttempt struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"checkoutId"`
	Status            PaymentStatus   `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	ProviderReference json.RawMessage `json:"provider_data"`
	CreatedAt         time.Time       `json:"created"`
	UpdatedAt         time.Time       `json:"updated"`
}

const ProviderStatusSucceeded = "succeeded"

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// ProviderPayment is the known subset of a processor payment object.
// Raw keeps the full document as received.
type ProviderPayment struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Paid         bool          `json:"paid"`
	Amount       *Amount       `json:"amount,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p ProviderPayment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}
