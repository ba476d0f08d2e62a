package pricing

import (
	"context"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentFetches = 8

// Catalog is the promotion state the engine prices against.
type Catalog struct {
	Index           domain.ProductPromotionIndex
	OrderPromotions []domain.Promotion
}

// BuildIndex reads the active promotions and the products attached to each
// PRODUCT promotion. It never fails: an unavailable catalog yields no
// promotions and a promotion whose products cannot be listed is skipped.
// Index order follows catalog order, so the first match is deterministic.
func BuildIndex(ctx context.Context, catalog port.PromotionCatalog, logger *zap.Logger) Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}

	result := Catalog{Index: domain.ProductPromotionIndex{}}
	if catalog == nil {
		return result
	}

	promotions, err := catalog.ActivePromotions(ctx)
	if err != nil {
		logger.Warn("promotion catalog unavailable, pricing without promotions", zap.Error(err))
		return result
	}

	var productPromos []domain.Promotion
	for _, promo := range promotions {
		switch promo.Scope {
		case domain.ScopeOrder:
			result.OrderPromotions = append(result.OrderPromotions, promo)
		case domain.ScopeProduct:
			productPromos = append(productPromos, promo)
		default:
			logger.Warn("promotion with unknown scope ignored",
				zap.String("promotion_id", promo.ID), zap.String("scope", string(promo.Scope)))
		}
	}

	products := make([][]string, len(productPromos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, promo := range productPromos {
		g.Go(func() error {
			ids, err := catalog.PromotionProducts(gctx, promo.ID)
			if err != nil {
				logger.Warn("promotion products unavailable, promotion skipped",
					zap.String("promotion_id", promo.ID), zap.Error(err))
				return nil
			}
			products[i] = ids
			return nil
		})
	}
	_ = g.Wait()

	for i, promo := range productPromos {
		for _, productID := range products[i] {
			if productID == "" {
				continue
			}
			result.Index[productID] = append(result.Index[productID], promo)
		}
	}

	return result
}

// Compute prices items against the catalog snapshot.
func (c Catalog) Compute(items []domain.CartItem) domain.Totals {
	return ComputeTotals(items, c.Index, c.OrderPromotions)
}
