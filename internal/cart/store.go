package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/fanout"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

// Event is published on the store's change channel after every mutation,
// local or reloaded from another view. A Resync event carries no keys; the
// subscriber fell behind and should read List again.
type Event struct {
	Keys   []domain.LineKey
	Remote bool
	Resync bool
}

// keysListener runs synchronously after the key set may have changed. remote
// is set when the change was loaded from another view's write.
type keysListener func(ctx context.Context, keys []domain.LineKey, cleared, remote bool) error

// Store owns the persisted cart lines. Mutations persist the whole document
// before the in-memory state changes.
type Store struct {
	mu     sync.Mutex
	docs   port.DocumentStore
	origin string
	logger *zap.Logger
	items  []domain.CartItem

	hub       *fanout.Hub[Event]
	listeners []keysListener
}

func NewStore(ctx context.Context, docs port.DocumentStore, opts ...Option) (*Store, error) {
	o := newOptions(opts)

	items, err := readItems(ctx, docs, domain.DocCart, o.logger)
	if err != nil {
		return nil, fmt.Errorf("readItems: %w", err)
	}

	return &Store{
		docs:   docs,
		origin: o.origin,
		logger: o.logger,
		items:  items,
		hub:    fanout.NewHub(Event{Resync: true}),
	}, nil
}

// Add merges item into the cart, summing quantities of an existing line.
// Items without a product or with quantity < 1 are ignored.
func (s *Store) Add(ctx context.Context, item domain.CartItem) error {
	return s.AddAll(ctx, []domain.CartItem{item})
}

// AddAll adds every item with one write and one notification.
func (s *Store) AddAll(ctx context.Context, items []domain.CartItem) error {
	valid := domain.NormalizeItems(items)
	if len(valid) == 0 {
		return nil
	}

	return s.mutate(ctx, false, func(current []domain.CartItem) ([]domain.CartItem, bool) {
		for _, item := range valid {
			if i := indexOf(current, item.Key()); i >= 0 {
				current[i].Quantity = domain.AddQuantity(current[i].Quantity, item.Quantity)
				continue
			}
			current = append(current, item)
		}
		return current, true
	})
}

// SetQuantity replaces the quantity of the line at key; qty <= 0 removes it.
func (s *Store) SetQuantity(ctx context.Context, key domain.LineKey, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, key)
	}

	return s.mutate(ctx, false, func(current []domain.CartItem) ([]domain.CartItem, bool) {
		i := indexOf(current, key)
		if i < 0 || current[i].Quantity == qty {
			return current, false
		}
		current[i].Quantity = qty
		return current, true
	})
}

func (s *Store) Remove(ctx context.Context, key domain.LineKey) error {
	return s.mutate(ctx, false, func(current []domain.CartItem) ([]domain.CartItem, bool) {
		i := indexOf(current, key)
		if i < 0 {
			return current, false
		}
		return append(current[:i], current[i+1:]...), true
	})
}

// Clear empties the cart and, through the selection listener, the selection.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, true, func([]domain.CartItem) ([]domain.CartItem, bool) {
		return nil, true
	})
}

func (s *Store) List() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneItems(s.items)
}

func (s *Store) Keys() []domain.LineKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	return keysOf(s.items)
}

func (s *Store) Get(key domain.LineKey) (domain.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := indexOf(s.items, key); i >= 0 {
		return s.items[i], true
	}
	return domain.CartItem{}, false
}

// Subscribe exposes the change channel. It closes when ctx is done.
func (s *Store) Subscribe(ctx context.Context) <-chan Event {
	return s.hub.Subscribe(ctx)
}

// Reload replaces the in-memory cart with the persisted document, picking up
// writes made by other views.
func (s *Store) Reload(ctx context.Context) error {
	items, err := readItems(ctx, s.docs, domain.DocCart, s.logger)
	if err != nil {
		return fmt.Errorf("readItems: %w", err)
	}

	s.mu.Lock()
	s.items = items
	keys := keysOf(items)
	s.mu.Unlock()

	return s.changed(ctx, keys, false, true)
}

func (s *Store) onKeysChanged(fn keysListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, fn)
}

func (s *Store) mutate(ctx context.Context, cleared bool, fn func([]domain.CartItem) ([]domain.CartItem, bool)) error {
	s.mu.Lock()

	next, dirty := fn(cloneItems(s.items))
	if !dirty {
		s.mu.Unlock()
		return nil
	}

	next = domain.NormalizeItems(next)
	if err := writeDocument(ctx, s.docs, domain.DocCart, next, s.origin); err != nil {
		s.mu.Unlock()
		return err
	}

	s.items = next
	keys := keysOf(next)
	s.mu.Unlock()

	return s.changed(ctx, keys, cleared, false)
}

func (s *Store) changed(ctx context.Context, keys []domain.LineKey, cleared, remote bool) error {
	s.mu.Lock()
	listeners := append([]keysListener(nil), s.listeners...)
	s.mu.Unlock()

	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, keys, cleared, remote); err != nil {
			errs = append(errs, err)
		}
	}

	s.hub.Publish(Event{Keys: keys, Remote: remote})

	return errors.Join(errs...)
}
