package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

// Tray is the reorder staging list filled by "buy again". It lives apart from
// the cart until merged.
type Tray struct {
	mu        sync.Mutex
	docs      port.DocumentStore
	store     *Store
	selection *Selection
	origin    string
	logger    *zap.Logger
	items     []domain.CartItem
}

func NewTray(ctx context.Context, docs port.DocumentStore, store *Store, selection *Selection, opts ...Option) (*Tray, error) {
	o := newOptions(opts)

	items, err := readItems(ctx, docs, domain.DocReorder, o.logger)
	if err != nil {
		return nil, fmt.Errorf("readItems: %w", err)
	}

	return &Tray{
		docs:      docs,
		store:     store,
		selection: selection,
		origin:    o.origin,
		logger:    o.logger,
		items:     items,
	}, nil
}

// Stage replaces the tray contents.
func (t *Tray) Stage(ctx context.Context, items []domain.CartItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(ctx, domain.NormalizeItems(items))
}

// SetQuantity replaces the quantity of a tray entry; qty <= 0 removes it.
func (t *Tray) SetQuantity(ctx context.Context, key domain.LineKey, qty int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := indexOf(t.items, key)
	if i < 0 {
		return nil
	}

	next := cloneItems(t.items)
	if qty <= 0 {
		next = append(next[:i], next[i+1:]...)
	} else {
		next[i].Quantity = qty
	}

	return t.save(ctx, next)
}

func (t *Tray) Remove(ctx context.Context, key domain.LineKey) error {
	return t.SetQuantity(ctx, key, 0)
}

func (t *Tray) List() []domain.CartItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	return cloneItems(t.items)
}

// MergeIntoCart adds every tray entry to the cart, summing quantities of
// lines already there, selects the merged keys and empties the tray.
// Merging an empty tray does nothing.
func (t *Tray) MergeIntoCart(ctx context.Context) ([]domain.LineKey, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.items) == 0 {
		return nil, nil
	}

	merged := keysOf(t.items)

	if err := t.store.AddAll(ctx, t.items); err != nil {
		return nil, fmt.Errorf("store.AddAll: %w", err)
	}

	// the cart already holds the entries: finish the remaining steps even if one fails
	var errs []error
	if err := t.discard(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.selection.Add(ctx, merged...); err != nil {
		errs = append(errs, fmt.Errorf("selection.Add: %w", err))
	}

	t.logger.Debug("reorder tray merged", zap.Int("lines", len(merged)))

	return merged, errors.Join(errs...)
}

// Discard empties the tray without touching the cart.
func (t *Tray) Discard(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.discard(ctx)
}

func (t *Tray) discard(ctx context.Context) error {
	if err := t.docs.Delete(ctx, domain.DocReorder, t.origin); err != nil {
		return fmt.Errorf("docs.Delete[%s]: %w", domain.DocReorder, err)
	}

	t.items = []domain.CartItem{}
	return nil
}

func (t *Tray) reload(ctx context.Context) error {
	items, err := readItems(ctx, t.docs, domain.DocReorder, t.logger)
	if err != nil {
		return fmt.Errorf("readItems: %w", err)
	}

	t.mu.Lock()
	t.items = items
	t.mu.Unlock()

	return nil
}

// save persists next and then adopts it. Caller holds t.mu.
func (t *Tray) save(ctx context.Context, next []domain.CartItem) error {
	next = domain.NormalizeItems(next)

	if err := writeDocument(ctx, t.docs, domain.DocReorder, next, t.origin); err != nil {
		return err
	}

	t.items = next
	return nil
}
