package stockwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/prasidya/minimart/internal/catalog"
	kafkax "github.com/prasidya/minimart/internal/kafka"
	"github.com/prasidya/minimart/internal/orders"
	"github.com/prasidya/minimart/internal/redisx"
)

type StockReader interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

// Service watches checkout.completed and raises stock.low once per product
// while its stock stays at or below the threshold. Reads go straight to the
// repo, not the cache: alerting on stale stock defeats the point.
type Service struct {
	Catalog     StockReader
	Redis       *redis.Client
	Producer    *kafkax.Producer // publishes stock.low
	Threshold   int
	ServiceName string
}

// HandleCheckoutCompleted is the consumer handler.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventCheckoutCompleted {
		return nil
	}

	// dedup by event_id so redeliveries don't re-alert
	dkey := fmt.Sprintf(redisx.KeyDedup, "stockwatch", env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[orders.CheckoutCompletedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range p.Items {
		prod, err := s.Catalog.Get(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if prod.Stock > s.Threshold {
			continue
		}
		sentKey := fmt.Sprintf(redisx.KeyLowStockSent, prod.ID)
		if sent, _ := redisx.Exists(ctx, s.Redis, sentKey); sent {
			continue
		}
		_ = s.Redis.Set(ctx, sentKey, "1", redisx.TTLLowStockSent).Err()
		s.publishLow(prod, env.TraceID)
		log.Printf("low stock: product=%d remaining=%d threshold=%d", prod.ID, prod.Stock, s.Threshold)
	}
	return nil
}

func (s *Service) publishLow(p *catalog.Product, trace string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: fmt.Sprintf("product:%d", p.ID),
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: p.ID,
			Remaining: p.Stock,
			Threshold: s.Threshold,
		}),
	}
	s.Producer.Publish([]byte(fmt.Sprintf("%d", p.ID)), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockLow)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
