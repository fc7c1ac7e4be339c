package checkout

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/prasidya/minimart/internal/cart"
	kafkax "github.com/prasidya/minimart/internal/kafka"
	"github.com/prasidya/minimart/internal/metrics"
	"github.com/prasidya/minimart/internal/orders"
)

// Committer is the transactional core; *Repo is the real implementation.
type Committer interface {
	ValidateAndCommit(ctx context.Context, userID int64, lines []cart.Line) (*orders.Order, error)
}

// Reconciler removes purchased lines from both cart representations.
type Reconciler interface {
	RemovePurchased(ctx context.Context, id cart.Identity, productIDs []int64) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

var _ Publisher = (*kafkax.Producer)(nil)

type Invalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

// Result carries the committed order. ReconcileErr reports a failed
// post-commit cart cleanup; the order itself is valid regardless.
type Result struct {
	Order        *orders.Order
	ReconcileErr error
}

type Service struct {
	Committer Committer
	Cart      Reconciler
	Cache     Invalidator // optional
	Producer  Publisher   // optional
	Metrics   *metrics.Checkout
	Service   string
}

// Checkout validates and commits the selected lines as one atomic order,
// then reconciles the cart, invalidates cached products and publishes the
// completion event. Duplicate product ids in the selection merge first.
func (s *Service) Checkout(ctx context.Context, id cart.Identity, selected []cart.Line) (*Result, error) {
	start := time.Now()
	res, err := s.checkout(ctx, id, selected)
	s.Metrics.Observe(resultLabel(err), time.Since(start))
	return res, err
}

func (s *Service) checkout(ctx context.Context, id cart.Identity, selected []cart.Line) (*Result, error) {
	if !id.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	lines, err := mergeLines(selected)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptySelection
	}

	order, err := s.Committer.ValidateAndCommit(ctx, id.UserID, lines)
	if err != nil {
		return nil, err
	}

	purchased := make([]int64, 0, len(order.Items))
	for _, it := range order.Items {
		purchased = append(purchased, it.ProductID)
	}

	res := &Result{Order: order}
	if err := s.Cart.RemovePurchased(ctx, id, purchased); err != nil {
		// best-effort cleanup: the order stands, but the operator must know
		log.Printf("reconcile order %d: %v", order.ID, err)
		res.ReconcileErr = err
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, purchased...)
	}
	s.publishCompleted(order)
	return res, nil
}

func (s *Service) publishCompleted(order *orders.Order) {
	if s.Producer == nil {
		return
	}
	items := make([]orders.ItemPrice, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, orders.ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventCheckoutCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Service,
		CorrelationID: string(orders.PartitionKey(order.ID)),
		Payload: kafkax.MustMarshal(orders.CheckoutCompletedPayload{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Items:      items,
			TotalCents: order.TotalCents,
		}),
	}
	s.Producer.Publish(orders.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventCheckoutCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// mergeLines collapses duplicate product ids by summing quantities and
// returns the result in ascending product-id order.
func mergeLines(in []cart.Line) ([]cart.Line, error) {
	merged := map[int64]int{}
	for _, l := range in {
		if l.Qty <= 0 {
			return nil, cart.ErrBadQuantity
		}
		merged[l.ProductID] += l.Qty
	}
	out := make([]cart.Line, 0, len(merged))
	for pid, qty := range merged {
		out = append(out, cart.Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrEmptySelection):
		return "empty"
	case errors.Is(err, ErrStockRaceLost):
		return "race_lost"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	default:
		var (
			nf  *ProductNotFoundError
			oos *OutOfStockError
			to  *TimeoutError
		)
		switch {
		case errors.As(err, &nf):
			return "not_found"
		case errors.As(err, &oos):
			return "out_of_stock"
		case errors.As(err, &to):
			return "timeout"
		}
		return "error"
	}
}
