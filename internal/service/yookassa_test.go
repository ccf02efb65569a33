package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"onlinestore/internal/config"
	"onlinestore/internal/service"
)

func processorConfig(url string) config.Processor {
	return config.Processor{
		BaseURL:   url,
		ShopID:    "shop",
		SecretKey: "key",
		ReturnURL: "https://store.example/done",
		Currency:  "RUB",
		Timeout:   time.Second,
	}
}

func TestYooKassaCreatePayment(t *testing.T) {
	var got struct {
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Confirmation struct {
			Type      string `json:"type"`
			ReturnURL string `json:"return_url"`
		} `json:"confirmation"`
		Capture  bool              `json:"capture"`
		Metadata map[string]string `json:"metadata"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payments" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "shop" || pass != "key" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if key := r.Header.Get("Idempotence-Key"); key != "key-1" {
			t.Errorf("Idempotence-Key = %q", key)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pay_1","status":"pending","paid":false,"confirmation":{"type":"redirect","confirmation_url":"https://pay.example/c/pay_1"},"test":true}`))
	}))
	defer srv.Close()

	client := service.NewYooKassaClient(processorConfig(srv.URL))
	payment, err := client.CreatePayment(context.Background(), service.CreatePaymentRequest{
		IdempotencyKey: "key-1",
		OrderID:        "o1",
		Amount:         decimal.RequireFromString("250"),
		Description:    "Order #o1",
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if got.Amount.Value != "250.00" || got.Amount.Currency != "RUB" {
		t.Errorf("amount = %+v", got.Amount)
	}
	if got.Confirmation.Type != "redirect" || got.Confirmation.ReturnURL != "https://store.example/done" {
		t.Errorf("confirmation = %+v", got.Confirmation)
	}
	if !got.Capture || got.Metadata["order_id"] != "o1" {
		t.Errorf("capture = %v, metadata = %v", got.Capture, got.Metadata)
	}

	if payment.ID != "pay_1" || payment.ConfirmationURL() != "https://pay.example/c/pay_1" {
		t.Errorf("payment = %+v", payment)
	}
	var raw map[string]any
	if err := json.Unmarshal(payment.Raw, &raw); err != nil || raw["test"] != true {
		t.Errorf("raw document not kept: %s", payment.Raw)
	}
}

func TestYooKassaGatewayErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"type":"error","code":"invalid_credentials"}`, http.StatusUnauthorized)
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}},
		{"no id", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"pending"}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			cfg := processorConfig(srv.URL)
			cfg.Timeout = 100 * time.Millisecond
			_, err := service.NewYooKassaClient(cfg).CreatePayment(context.Background(), service.CreatePaymentRequest{
				IdempotencyKey: "k",
				OrderID:        "o1",
				Amount:         decimal.NewFromInt(1),
			})
			if !errors.Is(err, service.ErrGateway) {
				t.Fatalf("err = %v, want ErrGateway", err)
			}
		})
	}
}
