package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"onlinestore/internal/metrics"
	"onlinestore/internal/service"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	SignatureHeader   = "X-Webhook-Signature"
)

type initiatePaymentRequest struct {
	CheckoutID string `json:"checkout_id"`
}

func InitiatePaymentHandler(paymentSvc *service.PaymentService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req initiatePaymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := paymentSvc.Initiate(r.Context(), p, req.CheckoutID, r.Header.Get(IdempotencyHeader))
		if err != nil {
			outcome := "error"
			if errors.Is(err, service.ErrGateway) {
				outcome = "gateway_error"
			}
			m.Payments.WithLabelValues(outcome).Inc()
			writeError(w, r, err)
			return
		}

		m.Payments.WithLabelValues("initiated").Inc()
		writeJSON(w, http.StatusOK, res)
	}
}

func ListTransactionsHandler(paymentSvc *service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		attempts, err := paymentSvc.ListAttempts(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, attempts)
	}
}

// WebhookHandler answers the processor with a bare status code. Every
// failure is turned into a response; nothing is retried on our side.
func WebhookHandler(webhookSvc *service.WebhookService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			m.Webhooks.WithLabelValues("malformed").Inc()
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		res, err := webhookSvc.Handle(r.Context(), body, r.Header.Get(SignatureHeader))
		if err != nil {
			status, outcome := webhookFailure(err)
			m.Webhooks.WithLabelValues(outcome).Inc()
			logWebhookFailure(r, status, err)
			w.WriteHeader(status)
			return
		}

		outcome := "applied"
		if !res.Applied {
			outcome = "duplicate"
		}
		m.Webhooks.WithLabelValues(outcome).Inc()
		w.WriteHeader(http.StatusOK)
	}
}

func webhookFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "bad_signature"
	case errors.Is(err, service.ErrMalformedWebhook):
		return http.StatusBadRequest, "malformed"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "unknown_payment"
	case errors.Is(err, service.ErrTransitionNotAllowed):
		// Acknowledged without redelivery; the recorded outcome stands.
		return http.StatusOK, "conflict"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func logWebhookFailure(r *http.Request, status int, err error) {
	level, msg := slog.LevelWarn, "webhook rejected"
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusOK:
		msg = "conflicting payment notification ignored"
	}
	slog.Log(r.Context(), level, msg,
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", err,
	)
}
