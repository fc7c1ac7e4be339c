package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasidya/minimart/internal/cart"
	"github.com/prasidya/minimart/internal/orders"
)

type mockCommitter struct {
	gotUserID int64
	gotLines  []cart.Line
	calls     int
	order     *orders.Order
	err       error
}

func (m *mockCommitter) ValidateAndCommit(_ context.Context, userID int64, lines []cart.Line) (*orders.Order, error) {
	m.calls++
	m.gotUserID = userID
	m.gotLines = lines
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

type mockReconciler struct {
	gotIDs [][]int64
	err    error
}

func (m *mockReconciler) RemovePurchased(_ context.Context, _ cart.Identity, productIDs []int64) error {
	m.gotIDs = append(m.gotIDs, productIDs)
	return m.err
}

func buyer() cart.Identity {
	return cart.Identity{UserID: 7, SessionID: "sess-7"}
}

func testOrder() *orders.Order {
	return &orders.Order{
		ID:         42,
		UserID:     7,
		TotalCents: 1100,
		OrderDate:  time.Now(),
		Status:     orders.StatusCompleted,
		Items: []orders.Item{
			{OrderID: 42, ProductID: 1, Qty: 2, PriceCents: 250},
			{OrderID: 42, ProductID: 3, Qty: 1, PriceCents: 600},
		},
	}
}

func TestCheckout_EmptySelection(t *testing.T) {
	committer := &mockCommitter{}
	svc := &Service{Committer: committer, Cart: &mockReconciler{}}

	res, err := svc.Checkout(context.Background(), buyer(), nil)

	require.ErrorIs(t, err, ErrEmptySelection)
	assert.Nil(t, res)
	assert.Zero(t, committer.calls, "no transaction may start for an empty selection")
}

func TestCheckout_Unauthenticated(t *testing.T) {
	committer := &mockCommitter{}
	svc := &Service{Committer: committer, Cart: &mockReconciler{}}

	res, err := svc.Checkout(context.Background(), cart.Identity{SessionID: "anon"}, []cart.Line{{ProductID: 1, Qty: 1}})

	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Nil(t, res)
	assert.Zero(t, committer.calls)
}

func TestCheckout_MergesDuplicateLines(t *testing.T) {
	committer := &mockCommitter{order: testOrder()}
	svc := &Service{Committer: committer, Cart: &mockReconciler{}}

	_, err := svc.Checkout(context.Background(), buyer(), []cart.Line{
		{ProductID: 3, Qty: 1},
		{ProductID: 1, Qty: 2},
		{ProductID: 1, Qty: 3},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), committer.gotUserID)
	// duplicates merged and sorted ascending by product id
	assert.Equal(t, []cart.Line{{ProductID: 1, Qty: 5}, {ProductID: 3, Qty: 1}}, committer.gotLines)
}

func TestCheckout_RejectsNonPositiveQuantity(t *testing.T) {
	committer := &mockCommitter{}
	svc := &Service{Committer: committer, Cart: &mockReconciler{}}

	_, err := svc.Checkout(context.Background(), buyer(), []cart.Line{{ProductID: 1, Qty: 0}})

	require.ErrorIs(t, err, cart.ErrBadQuantity)
	assert.Zero(t, committer.calls)
}

func TestCheckout_CommitFailurePassesThrough(t *testing.T) {
	oos := &OutOfStockError{ProductID: 9, Requested: 3, Available: 2}
	committer := &mockCommitter{err: oos}
	rec := &mockReconciler{}
	svc := &Service{Committer: committer, Cart: rec}

	res, err := svc.Checkout(context.Background(), buyer(), []cart.Line{{ProductID: 9, Qty: 3}})

	assert.Nil(t, res)
	var got *OutOfStockError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, oos, got)
	assert.Empty(t, rec.gotIDs, "nothing committed, nothing to reconcile")
}

func TestCheckout_SuccessReconcilesPurchasedLines(t *testing.T) {
	committer := &mockCommitter{order: testOrder()}
	rec := &mockReconciler{}
	svc := &Service{Committer: committer, Cart: rec}

	res, err := svc.Checkout(context.Background(), buyer(), []cart.Line{
		{ProductID: 1, Qty: 2},
		{ProductID: 3, Qty: 1},
	})

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, int64(42), res.Order.ID)
	assert.NoError(t, res.ReconcileErr)
	require.Len(t, rec.gotIDs, 1)
	assert.Equal(t, []int64{1, 3}, rec.gotIDs[0])
}

func TestCheckout_ReconcileFailureKeepsOrderValid(t *testing.T) {
	committer := &mockCommitter{order: testOrder()}
	rec := &mockReconciler{err: errors.New("cart_items unreachable")}
	svc := &Service{Committer: committer, Cart: rec}

	res, err := svc.Checkout(context.Background(), buyer(), []cart.Line{{ProductID: 1, Qty: 2}})

	require.NoError(t, err, "a failed cleanup must not invalidate the committed order")
	require.NotNil(t, res)
	assert.Equal(t, int64(42), res.Order.ID)
	assert.ErrorContains(t, res.ReconcileErr, "cart_items unreachable")
}

func TestCheckout_FrozenPricesOnResult(t *testing.T) {
	committer := &mockCommitter{order: testOrder()}
	svc := &Service{Committer: committer, Cart: &mockReconciler{}}

	res, err := svc.Checkout(context.Background(), buyer(), []cart.Line{{ProductID: 1, Qty: 2}, {ProductID: 3, Qty: 1}})

	require.NoError(t, err)
	// prices on the result come from the validation snapshot, and the total
	// is their sum, not whatever the cart displayed earlier
	var sum int64
	for _, it := range res.Order.Items {
		sum += int64(it.Qty) * it.PriceCents
	}
	assert.Equal(t, res.Order.TotalCents, sum)
}

func TestResultLabel(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "completed"},
		{ErrEmptySelection, "empty"},
		{ErrStockRaceLost, "race_lost"},
		{ErrNotAuthenticated, "unauthenticated"},
		{&ProductNotFoundError{ProductID: 1}, "not_found"},
		{&OutOfStockError{ProductID: 1, Requested: 2, Available: 1}, "out_of_stock"},
		{&TimeoutError{Wait: time.Second}, "timeout"},
		{&PersistenceError{Op: "commit", Err: errors.New("boom")}, "error"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, resultLabel(c.err))
	}
}
