package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/catalog"
	"github.com/prasidya/minimart/internal/checkout"
	"github.com/prasidya/minimart/internal/orders"
)

type errorResponse struct {
	Error     string `json:"error"`
	ProductID int64  `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the typed failure taxonomy onto HTTP statuses. Stock
// errors carry requested/available so clients can adjust without refetching.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *checkout.ProductNotFoundError
		outOfStock *checkout.OutOfStockError
		shortStock *cart.InsufficientStockError
		timeout    *checkout.TimeoutError
	)
	switch {
	case errors.As(err, &outOfStock):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "out of stock", ProductID: outOfStock.ProductID,
			Requested: outOfStock.Requested, Available: outOfStock.Available,
		})
	case errors.As(err, &shortStock):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "not enough stock", ProductID: shortStock.ProductID,
			Requested: shortStock.Requested, Available: shortStock.Available,
		})
	case errors.Is(err, checkout.ErrStockRaceLost):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, orders.ErrBadTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found", ProductID: notFound.ProductID})
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, checkout.ErrEmptySelection), errors.Is(err, cart.ErrBadQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, checkout.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.As(err, &timeout):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
