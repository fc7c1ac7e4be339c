package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prasidya/minimart/internal/orders"
)

type OrdersHandler struct {
	Repo *orders.Repo
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancel)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Repo.ListByUser(ctx, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	oid, ok := orderID(w, r)
	if !ok {
		return
	}
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetByID(ctx, oid, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// updateStatus is the administrative transition; illegal moves are refused
// by the repo's transition table.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	oid, ok := orderID(w, r)
	if !ok {
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing status"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdateStatus(ctx, oid, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": oid, "status": req.Status})
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	oid, ok := orderID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Cancel(ctx, oid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": oid, "status": orders.StatusCancelled})
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	oid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || oid <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, false
	}
	return oid, true
}
