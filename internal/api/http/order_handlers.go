package http

import (
	"net/http"

	"github.com/ieltslisten/learner/internal/payment"
)

// POST /api/orders
// Body {"book_id": 3, "provider": "vnpay"}; returns the order and where to pay.
func CreateOrderHandler(api *payment.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BookID   int64            `json:"book_id"`
			Provider payment.Provider `json:"provider"`
		}
		if err := decode(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.BookID <= 0 || !req.Provider.Valid() {
			http.Error(w, "book_id and provider (vnpay|momo) required", http.StatusBadRequest)
			return
		}
		o, co, err := api.Buy(r.Context(), req.BookID, req.Provider)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order": o, "checkout": co})
	}
}

// GET /api/orders
func OrdersHandler(api *payment.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := api.Orders(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

// GET /api/orders/{orderID}
func OrderHandler(api *payment.API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "orderID")
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}
		o, err := api.Order(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// GET /payment/return
// Providers redirect the browser here; the outcome is settled against the
// order status endpoint.
func PaymentReturnHandler(api *payment.API) http.HandlerFunc {
	return payment.ReturnHandler(func(w http.ResponseWriter, r *http.Request, ret payment.Return) {
		out, err := api.Settle(r.Context(), ret)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
}
