package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prasidya/minimart/internal/catalog"
	"github.com/prasidya/minimart/internal/redisx"
	"github.com/redis/go-redis/v9"
)

var ErrBadQuantity = errors.New("quantity must be positive")

// Catalog is the read-only product lookup the store uses for advisory stock
// checks. Satisfied by catalog.Cached and catalog.Repo.
type Catalog interface {
	Get(ctx context.Context, id int64) (*catalog.Product, error)
}

// Store keeps every cart as a redis hash keyed by session id (field =
// product id, value = quantity) with a sliding TTL, and mirrors mutations of
// authenticated users into cart_items before answering. Anonymous carts live
// only in redis and expire with the session.
type Store struct {
	Redis   *redis.Client
	Durable DurableStore
	Catalog Catalog
	TTL     time.Duration
}

func (s *Store) key(id Identity) string {
	return fmt.Sprintf(redisx.KeyCartSession, id.SessionID)
}

// AddLine merges qty into any existing line for the product. The merged
// quantity is checked against the current stock snapshot.
func (s *Store) AddLine(ctx context.Context, id Identity, productID int64, qty int) error {
	if qty <= 0 {
		return ErrBadQuantity
	}
	cur, err := s.quantity(ctx, id, productID)
	if err != nil {
		return err
	}
	return s.set(ctx, id, productID, cur+qty)
}

// SetQuantity replaces the line's quantity; zero or less removes the line.
func (s *Store) SetQuantity(ctx context.Context, id Identity, productID int64, qty int) error {
	if qty <= 0 {
		return s.RemoveLine(ctx, id, productID)
	}
	return s.set(ctx, id, productID, qty)
}

func (s *Store) set(ctx context.Context, id Identity, productID int64, qty int) error {
	p, err := s.Catalog.Get(ctx, productID)
	if err != nil {
		return err
	}
	if qty > p.Stock {
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.Stock}
	}
	// durable mirror first: if it fails the session copy stays untouched
	if id.Authenticated() {
		if err := s.Durable.Upsert(ctx, id.UserID, productID, qty); err != nil {
			return fmt.Errorf("cart upsert: %w", err)
		}
	}
	key := s.key(id)
	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, key, field(productID), qty)
	pipe.Expire(ctx, key, s.TTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) RemoveLine(ctx context.Context, id Identity, productID int64) error {
	if id.Authenticated() {
		if err := s.Durable.Delete(ctx, id.UserID, productID); err != nil {
			return fmt.Errorf("cart delete: %w", err)
		}
	}
	return s.Redis.HDel(ctx, s.key(id), field(productID)).Err()
}

// Clear empties both representations unconditionally.
func (s *Store) Clear(ctx context.Context, id Identity) error {
	if id.Authenticated() {
		if err := s.Durable.Clear(ctx, id.UserID); err != nil {
			return fmt.Errorf("cart clear: %w", err)
		}
	}
	return s.Redis.Del(ctx, s.key(id)).Err()
}

// Snapshot returns the session cart ordered by ascending product id, which is
// also the order the checkout validator locks rows in.
func (s *Store) Snapshot(ctx context.Context, id Identity) ([]Line, error) {
	m, err := s.Redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(m))
	for f, v := range m {
		pid, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, Line{ProductID: pid, Qty: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Hydrate rebuilds the session copy from cart_items, used right after login.
func (s *Store) Hydrate(ctx context.Context, id Identity) error {
	if !id.Authenticated() {
		return nil
	}
	lines, err := s.Durable.List(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("cart hydrate: %w", err)
	}
	key := s.key(id)
	pipe := s.Redis.TxPipeline()
	pipe.Del(ctx, key)
	for _, l := range lines {
		pipe.HSet(ctx, key, field(l.ProductID), l.Qty)
	}
	if len(lines) > 0 {
		pipe.Expire(ctx, key, s.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RemovePurchased drops bought lines from both representations after a
// committed checkout. Safe to call again: deleting absent lines is a no-op.
func (s *Store) RemovePurchased(ctx context.Context, id Identity, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	var durableErr error
	if id.Authenticated() {
		durableErr = s.Durable.DeleteMany(ctx, id.UserID, productIDs)
	}
	fields := make([]string, len(productIDs))
	for i, pid := range productIDs {
		fields[i] = field(pid)
	}
	sessErr := s.Redis.HDel(ctx, s.key(id), fields...).Err()
	if durableErr != nil {
		return fmt.Errorf("remove purchased from cart_items: %w", durableErr)
	}
	if sessErr != nil {
		return fmt.Errorf("remove purchased from session cart: %w", sessErr)
	}
	return nil
}

func (s *Store) quantity(ctx context.Context, id Identity, productID int64) (int, error) {
	v, err := s.Redis.HGet(ctx, s.key(id), field(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	qty, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return qty, nil
}

func field(productID int64) string { return strconv.FormatInt(productID, 10) }
