package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/catalog"
	"github.com/prasidya/minimart/internal/checkout"
	"github.com/prasidya/minimart/internal/orders"
)

type committerMock struct {
	order *orders.Order
	err   error
}

func (m *committerMock) ValidateAndCommit(_ context.Context, _ int64, _ []cart.Line) (*orders.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type stubCatalog struct {
	products map[int64]*catalog.Product
}

func (s stubCatalog) Get(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

type nopDurable struct{}

func (nopDurable) Upsert(context.Context, int64, int64, int) error  { return nil }
func (nopDurable) Delete(context.Context, int64, int64) error       { return nil }
func (nopDurable) DeleteMany(context.Context, int64, []int64) error { return nil }
func (nopDurable) Clear(context.Context, int64) error               { return nil }
func (nopDurable) List(context.Context, int64) ([]cart.Line, error) { return nil, nil }

func setupAPI(t *testing.T, committer checkout.Committer) (http.Handler, *cart.Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &cart.Store{
		Redis:   client,
		Durable: nopDurable{},
		Catalog: stubCatalog{products: map[int64]*catalog.Product{
			1: {ID: 1, Name: "milk", Stock: 10, PriceCents: 250},
		}},
		TTL: time.Hour,
	}
	svc := &checkout.Service{Committer: committer, Cart: store, Service: "test-api"}

	router := NewRouter()
	(&CheckoutHandler{Service: svc, Cart: store}).Register(router)
	(&CartHandler{Store: store, Catalog: store.Catalog}).Register(router)
	return router, store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, user string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "test-sess"})
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCheckout_Success(t *testing.T) {
	order := &orders.Order{
		ID: 42, UserID: 7, TotalCents: 500, Status: orders.StatusCompleted,
		Items: []orders.Item{{OrderID: 42, ProductID: 1, Qty: 2, PriceCents: 250}},
	}
	h, _ := setupAPI(t, &committerMock{order: order})

	rec := doJSON(t, h, http.MethodPost, "/checkout",
		checkoutReq{Selected: []cart.Line{{ProductID: 1, Qty: 2}}}, "7")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp checkoutResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.Order.ID)
	assert.Equal(t, int64(500), resp.Order.TotalCents)
	assert.Empty(t, resp.ReconcileError)
}

func TestCheckout_WholeCartWhenNoSelection(t *testing.T) {
	order := &orders.Order{
		ID: 43, UserID: 7, TotalCents: 250, Status: orders.StatusCompleted,
		Items: []orders.Item{{OrderID: 43, ProductID: 1, Qty: 1, PriceCents: 250}},
	}
	h, store := setupAPI(t, &committerMock{order: order})

	id := cart.Identity{UserID: 7, SessionID: "test-sess"}
	require.NoError(t, store.AddLine(context.Background(), id, 1, 1))

	rec := doJSON(t, h, http.MethodPost, "/checkout", nil, "7")
	require.Equal(t, http.StatusCreated, rec.Code)

	// the purchased line was reconciled out of the session cart
	snap, err := store.Snapshot(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestCheckout_OutOfStockMapsToConflict(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{err: &checkout.OutOfStockError{ProductID: 1, Requested: 3, Available: 2}})

	rec := doJSON(t, h, http.MethodPost, "/checkout",
		checkoutReq{Selected: []cart.Line{{ProductID: 1, Qty: 3}}}, "7")

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ProductID)
	assert.Equal(t, 3, resp.Requested)
	assert.Equal(t, 2, resp.Available)
}

func TestCheckout_EmptyCart(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{})

	rec := doJSON(t, h, http.MethodPost, "/checkout", nil, "7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_Unauthenticated(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{})

	rec := doJSON(t, h, http.MethodPost, "/checkout",
		checkoutReq{Selected: []cart.Line{{ProductID: 1, Qty: 1}}}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_TimeoutMapsToServiceUnavailable(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{err: &checkout.TimeoutError{Wait: 3 * time.Second}})

	rec := doJSON(t, h, http.MethodPost, "/checkout",
		checkoutReq{Selected: []cart.Line{{ProductID: 1, Qty: 1}}}, "7")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCartView_TotalsFromCatalog(t *testing.T) {
	h, store := setupAPI(t, &committerMock{})

	id := cart.Identity{SessionID: "test-sess"}
	require.NoError(t, store.AddLine(context.Background(), id, 1, 2))

	rec := doJSON(t, h, http.MethodGet, "/cart", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view cartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "milk", view.Lines[0].ProductName)
	assert.Equal(t, int64(500), view.TotalCents)
}

func TestCartAdd_InsufficientStock(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{})

	rec := doJSON(t, h, http.MethodPost, "/cart/items",
		addLineReq{ProductID: 1, Quantity: 11}, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Available)
}

func TestCartAdd_UnknownProduct(t *testing.T) {
	h, _ := setupAPI(t, &committerMock{})

	rec := doJSON(t, h, http.MethodPost, "/cart/items",
		addLineReq{ProductID: 99, Quantity: 1}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
