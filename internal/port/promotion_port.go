package port

import (
	"context"

	"github.com/nikolayk812/grocery-cart/internal/domain"
)

type PromotionCatalog interface {
	ActivePromotions(ctx context.Context) ([]domain.Promotion, error)
	PromotionProducts(ctx context.Context, promotionID string) ([]string, error)
}
