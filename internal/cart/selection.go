package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

// Selection tracks the cart lines marked for checkout. It is always a subset
// of the store's keys.
//
// Until the user touches it the selection is implicit: it follows the cart
// and equals every current key, and nothing is persisted. Once toggled or
// set it becomes explicit and is persisted, including as an empty list.
type Selection struct {
	mu     sync.Mutex
	docs   port.DocumentStore
	store  *Store
	origin string
	logger *zap.Logger

	picked   map[domain.LineKey]struct{}
	explicit bool
}

func NewSelection(ctx context.Context, docs port.DocumentStore, store *Store, opts ...Option) (*Selection, error) {
	o := newOptions(opts)

	s := &Selection{
		docs:   docs,
		store:  store,
		origin: o.origin,
		logger: o.logger,
		picked: make(map[domain.LineKey]struct{}),
	}

	if err := s.reload(ctx); err != nil {
		return nil, err
	}

	store.onKeysChanged(s.reconcile)

	return s, nil
}

// Toggle flips the membership of key. Keys not in the cart are ignored.
func (s *Selection) Toggle(ctx context.Context, key domain.LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.store.Keys()
	if !containsKey(keys, key) {
		return nil
	}

	if _, ok := s.picked[key]; ok {
		delete(s.picked, key)
	} else {
		s.picked[key] = struct{}{}
	}
	s.explicit = true

	return s.persist(ctx, keys)
}

// SetAll selects every cart line, or persists an explicitly empty selection.
func (s *Selection) SetAll(ctx context.Context, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.store.Keys()

	s.picked = make(map[domain.LineKey]struct{}, len(keys))
	if selected {
		for _, key := range keys {
			s.picked[key] = struct{}{}
		}
	}
	s.explicit = true

	return s.persist(ctx, keys)
}

// Add selects keys that are present in the cart.
func (s *Selection) Add(ctx context.Context, add ...domain.LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.store.Keys()

	dirty := false
	for _, key := range add {
		if _, ok := s.picked[key]; ok || !containsKey(keys, key) {
			continue
		}
		s.picked[key] = struct{}{}
		dirty = true
	}

	if !dirty || !s.explicit {
		return nil
	}

	return s.persist(ctx, keys)
}

// Keys returns the selected keys in cart order.
func (s *Selection) Keys() []domain.LineKey {
	items := s.SelectedItems()
	return keysOf(items)
}

// SelectedItems returns the selected cart lines in cart order.
func (s *Selection) SelectedItems() []domain.CartItem {
	items := s.store.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if _, ok := s.picked[item.Key()]; ok {
			selected = append(selected, item)
		}
	}
	return selected
}

func (s *Selection) IsSelected(key domain.LineKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.picked[key]
	return ok
}

func (s *Selection) Explicit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.explicit
}

// reconcile drops keys that left the cart. An implicit selection is
// re-derived as every key. Re-running it without a cart change is a no-op.
//
// A remote change only updates memory: the view that wrote the cart also
// owns the matching pm_cart_pick write, which reaches this view through its
// own notification.
func (s *Selection) reconcile(ctx context.Context, keys []domain.LineKey, cleared, remote bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cleared {
		s.picked = make(map[domain.LineKey]struct{})
		if !s.explicit {
			return nil
		}

		s.explicit = false
		if remote {
			return nil
		}
		if err := s.docs.Delete(ctx, domain.DocCartPick, s.origin); err != nil {
			return fmt.Errorf("docs.Delete[%s]: %w", domain.DocCartPick, err)
		}
		return nil
	}

	if !s.explicit {
		s.picked = make(map[domain.LineKey]struct{}, len(keys))
		for _, key := range keys {
			s.picked[key] = struct{}{}
		}
		return nil
	}

	dirty := false
	for key := range s.picked {
		if !containsKey(keys, key) {
			delete(s.picked, key)
			dirty = true
		}
	}
	if !dirty || remote {
		return nil
	}

	return s.persist(ctx, keys)
}

// reload reads the persisted selection and reconciles it with the cart in
// memory only.
func (s *Selection) reload(ctx context.Context) error {
	var raw []string
	found, err := readDocument(ctx, s.docs, domain.DocCartPick, &raw, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.explicit = found
	s.picked = make(map[domain.LineKey]struct{}, len(raw))
	for _, k := range raw {
		if key := domain.ParseLineKey(k); !key.IsZero() {
			s.picked[key] = struct{}{}
		}
	}
	s.mu.Unlock()

	return s.reconcile(ctx, s.store.Keys(), false, true)
}

// persist writes the selected keys in cart order. Caller holds s.mu.
func (s *Selection) persist(ctx context.Context, keys []domain.LineKey) error {
	raw := make([]string, 0, len(s.picked))
	for _, key := range keys {
		if _, ok := s.picked[key]; ok {
			raw = append(raw, key.String())
		}
	}

	return writeDocument(ctx, s.docs, domain.DocCartPick, raw, s.origin)
}

func containsKey(keys []domain.LineKey, key domain.LineKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
