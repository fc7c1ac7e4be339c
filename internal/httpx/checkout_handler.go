package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/checkout"
	"github.com/prasidya/minimart/internal/orders"
)

type CheckoutHandler struct {
	Service *checkout.Service
	Cart    *cart.Store
}

type checkoutReq struct {
	// Selected is the subset of cart lines to buy. Empty means the whole cart.
	Selected []cart.Line `json:"selected,omitempty"`
}

type checkoutResp struct {
	Order          *orders.Order `json:"order"`
	ReconcileError string        `json:"reconcile_error,omitempty"`
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
}

func (h *CheckoutHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	id := identityFrom(r.Context())

	lines := req.Selected
	if len(lines) == 0 {
		snap, err := h.Cart.Snapshot(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		lines = snap
	}

	res, err := h.Service.Checkout(ctx, id, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := checkoutResp{Order: res.Order}
	if res.ReconcileErr != nil {
		resp.ReconcileError = res.ReconcileErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}
