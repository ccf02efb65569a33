package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"onlinestore/internal/config"
	"onlinestore/internal/model"
)

const maxProviderResponse = 1 << 20

type CreatePaymentRequest struct {
	IdempotencyKey string
	OrderID        string
	Amount         decimal.Decimal
	Description    string
}

// PaymentProvider creates payment intents at the external processor.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.ProviderPayment, error)
}

// YooKassaClient talks to a YooKassa-compatible payments API.
type YooKassaClient struct {
	cfg    config.Processor
	client *http.Client
}

func NewYooKassaClient(cfg config.Processor) *YooKassaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	return &YooKassaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type createPaymentBody struct {
	Amount       model.Amount       `json:"amount"`
	Confirmation model.Confirmation `json:"confirmation"`
	Capture      bool               `json:"capture"`
	Description  string             `json:"description,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

func (c *YooKassaClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*model.ProviderPayment, error) {
	data, err := json.Marshal(createPaymentBody{
		Amount: model.Amount{
			Value:    req.Amount.StringFixed(2),
			Currency: c.cfg.Currency,
		},
		Confirmation: model.Confirmation{
			Type:      "redirect",
			ReturnURL: c.cfg.ReturnURL,
		},
		Capture:     true,
		Description: req.Description,
		Metadata:    map[string]string{"order_id": req.OrderID},
	})
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", req.IdempotencyKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %w", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status: %d, body: %s", ErrGateway, resp.StatusCode, string(raw))
	}

	var payment model.ProviderPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrGateway, err)
	}
	if payment.ID == "" {
		return nil, fmt.Errorf("%w: response has no payment id", ErrGateway)
	}
	payment.Raw = raw

	return &payment, nil
}
