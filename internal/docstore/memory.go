package docstore

import (
	"context"
	"sync"

	"github.com/nikolayk812/grocery-cart/internal/fanout"
	"github.com/nikolayk812/grocery-cart/internal/port"
)

type memoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	hub  *fanout.Hub[port.Change]
}

// NewMemory returns a process-local store. Views sharing the returned value
// observe each other's writes like tabs sharing browser storage.
func NewMemory() port.DocumentStore {
	return &memoryStore{
		docs: make(map[string][]byte),
		hub:  fanout.NewHub(port.Change{Resync: true}),
	}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), value...), true, nil
}

func (s *memoryStore) Put(_ context.Context, key string, value []byte, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	s.mu.Lock()
	s.docs[key] = append([]byte(nil), value...)
	s.mu.Unlock()

	s.hub.Publish(port.Change{Key: key, Origin: origin})
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string, origin string) error {
	if key == "" {
		return errEmptyKey
	}

	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()

	s.hub.Publish(port.Change{Key: key, Origin: origin})
	return nil
}

func (s *memoryStore) Subscribe(ctx context.Context) (<-chan port.Change, error) {
	return s.hub.Subscribe(ctx), nil
}
