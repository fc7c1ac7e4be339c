package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/catalog"
)

type CartHandler struct {
	Store   *cart.Store
	Catalog cart.Catalog
}

type addLineReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

// cartView is the enriched snapshot: lines joined with live catalog data
// plus a display total. Prices here are informational; checkout freezes its
// own under lock.
type cartView struct {
	Lines      []cartViewLine `json:"lines"`
	TotalCents int64          `json:"total_cents"`
}

type cartViewLine struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PriceCents  int64  `json:"price_cents"`
	LineCents   int64  `json:"line_cents"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Get("/cart", h.view)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{id}", h.setQuantity)
	r.Post("/cart/items/{id}/increase", h.increase)
	r.Post("/cart/items/{id}/decrease", h.decrease)
	r.Delete("/cart/items/{id}", h.remove)
	r.Delete("/cart", h.clear)
	r.Post("/cart/hydrate", h.hydrate)
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.Store.Snapshot(ctx, identityFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	view := cartView{Lines: make([]cartViewLine, 0, len(lines))}
	for _, l := range lines {
		vl := cartViewLine{ProductID: l.ProductID, Quantity: l.Qty}
		if p, err := h.Catalog.Get(ctx, l.ProductID); err == nil {
			vl.ProductName = p.Name
			vl.PriceCents = p.PriceCents
			vl.LineCents = p.PriceCents * int64(l.Qty)
		}
		view.TotalCents += vl.LineCents
		view.Lines = append(view.Lines, vl)
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.AddLine(ctx, identityFrom(r.Context()), req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.view(w, r)
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	var req setQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.SetQuantity(ctx, identityFrom(r.Context()), pid, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.view(w, r)
}

func (h *CartHandler) increase(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, +1)
}

func (h *CartHandler) decrease(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, -1)
}

// adjust moves a line by one. Decreasing to zero removes the line; the
// increase path re-runs the advisory stock check via AddLine.
func (h *CartHandler) adjust(w http.ResponseWriter, r *http.Request, delta int) {
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	id := identityFrom(r.Context())

	if delta > 0 {
		if err := h.Store.AddLine(ctx, id, pid, delta); err != nil {
			writeError(w, err)
			return
		}
		h.view(w, r)
		return
	}

	lines, err := h.Store.Snapshot(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	cur := 0
	for _, l := range lines {
		if l.ProductID == pid {
			cur = l.Qty
			break
		}
	}
	if cur == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not in cart", ProductID: pid})
		return
	}
	if err := h.Store.SetQuantity(ctx, id, pid, cur+delta); err != nil {
		writeError(w, err)
		return
	}
	h.view(w, r)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.RemoveLine(ctx, identityFrom(r.Context()), pid); err != nil {
		writeError(w, err)
		return
	}
	h.view(w, r)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Clear(ctx, identityFrom(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartView{Lines: []cartViewLine{}})
}

// hydrate reloads the session copy from cart_items, called after login.
func (h *CartHandler) hydrate(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r.Context())
	if !id.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "not authenticated"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Hydrate(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	h.view(w, r)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || pid <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return 0, false
	}
	return pid, true
}

var _ cart.Catalog = (*catalog.Cached)(nil)
