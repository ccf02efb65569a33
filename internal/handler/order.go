package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onlinestore/internal/service"
)

type checkoutRequest struct {
	RecipientID      string `json:"recipientId"`
	PaymentMethodID  string `json:"paymentMethodId"`
	DeliveryMethodID string `json:"deliveryMethodId"`
}

func CreateCheckoutHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req checkoutRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		order, err := orderSvc.BuildOrder(r.Context(), p, service.CheckoutRequest{
			RecipientID:      req.RecipientID,
			PaymentMethodID:  req.PaymentMethodID,
			DeliveryMethodID: req.DeliveryMethodID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

func ListCheckoutsHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		orders, err := orderSvc.ListOrders(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, orders)
	}
}

func GetCheckoutHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		order, err := orderSvc.GetOrder(r.Context(), p, chi.URLParam(r, "orderID"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}
