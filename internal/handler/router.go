package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"onlinestore/internal/metrics"
	"onlinestore/internal/mw"
	"onlinestore/internal/service"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Basket   *service.BasketService
	Orders   *service.OrderService
	Payments *service.PaymentService
	Webhooks *service.WebhookService

	Metrics        *metrics.Metrics
	WebhookLimiter *mw.RateLimiter
	DB             Pinger
	JWTSecret      string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(d.Metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", HealthHandler(d.DB))
	r.Handle("/metrics", d.Metrics.Handler())

	// Processor callbacks carry no bearer token.
	r.With(d.WebhookLimiter.Limit).Post("/api/v1/payment/webhook", WebhookHandler(d.Webhooks, d.Metrics))

	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(d.JWTSecret))

		r.Get("/api/v1/basket", ListBasketHandler(d.Basket))
		r.Post("/api/v1/basket", AddToBasketHandler(d.Basket))
		r.Patch("/api/v1/basket/{lineID}", UpdateBasketLineHandler(d.Basket))
		r.Delete("/api/v1/basket/{lineID}", DeleteBasketLineHandler(d.Basket))

		r.Post("/api/v1/checkouts", CreateCheckoutHandler(d.Orders))
		r.Get("/api/v1/checkouts", ListCheckoutsHandler(d.Orders))
		r.Get("/api/v1/checkouts/{orderID}", GetCheckoutHandler(d.Orders))

		r.Post("/api/v1/payment/initiate", InitiatePaymentHandler(d.Payments, d.Metrics))
		r.Get("/api/v1/transactions", ListTransactionsHandler(d.Payments))
	})

	return r
}

func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
