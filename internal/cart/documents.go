package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
)

// readDocument decodes the document at key into v. A missing or malformed
// document reports found=false; only store failures are returned.
func readDocument(ctx context.Context, docs port.DocumentStore, key string, v any, logger *zap.Logger) (bool, error) {
	data, ok, err := docs.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("docs.Get[%s]: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("malformed persisted document, using empty default",
			zap.String("document", key), zap.Error(err))
		return false, nil
	}

	return true, nil
}

func writeDocument(ctx context.Context, docs port.DocumentStore, key string, v any, origin string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json.Marshal[%s]: %w", key, err)
	}

	if err := docs.Put(ctx, key, data, origin); err != nil {
		return fmt.Errorf("docs.Put[%s]: %w", key, err)
	}

	return nil
}

func readItems(ctx context.Context, docs port.DocumentStore, key string, logger *zap.Logger) ([]domain.CartItem, error) {
	var items []domain.CartItem
	if _, err := readDocument(ctx, docs, key, &items, logger); err != nil {
		return nil, err
	}

	return domain.NormalizeItems(items), nil
}

func keysOf(items []domain.CartItem) []domain.LineKey {
	keys := make([]domain.LineKey, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key())
	}
	return keys
}

func indexOf(items []domain.CartItem, key domain.LineKey) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	return append(make([]domain.CartItem, 0, len(items)), items...)
}
