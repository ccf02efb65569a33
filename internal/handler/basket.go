package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"onlinestore/internal/service"
)

type basketRequest struct {
	GoodID string `json:"goodId"`
	Count  int    `json:"count"`
}

type basketQuantityRequest struct {
	Count int `json:"count"`
}

func ListBasketHandler(basketSvc *service.BasketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		lines, err := basketSvc.ListFor(r.Context(), p.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, lines)
	}
}

// AddToBasketHandler answers 201 for a new line and 200 when the product was
// already in the basket and its count was increased.
func AddToBasketHandler(basketSvc *service.BasketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req basketRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		line, created, err := basketSvc.AddOrMerge(r.Context(), p.UserID, req.GoodID, req.Count)
		if err != nil {
			writeError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, line)
	}
}

func UpdateBasketLineHandler(basketSvc *service.BasketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		var req basketQuantityRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		line, err := basketSvc.SetQuantity(r.Context(), p.UserID, chi.URLParam(r, "lineID"), req.Count)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if line == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		writeJSON(w, http.StatusOK, line)
	}
}

func DeleteBasketLineHandler(basketSvc *service.BasketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}

		if _, err := basketSvc.SetQuantity(r.Context(), p.UserID, chi.URLParam(r, "lineID"), 0); err != nil {
			writeError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
