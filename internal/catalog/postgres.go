package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/nikolayk812/grocery-cart/internal/db"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type postgresCatalog struct {
	q      *db.Queries
	now    func() time.Time
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) port.PromotionCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &postgresCatalog{
		q:      db.New(conn),
		now:    time.Now,
		logger: logger,
	}
}

func (r *postgresCatalog) ActivePromotions(ctx context.Context) ([]domain.Promotion, error) {
	rows, err := r.q.ListActivePromotions(ctx, r.now())
	if err != nil {
		return nil, fmt.Errorf("q.ListActivePromotions: %w", err)
	}

	promotions := make([]domain.Promotion, 0, len(rows))
	for _, row := range rows {
		promo, err := mapPromotionRowToDomain(row)
		if err != nil {
			r.logger.Warn("invalid promotion row skipped", zap.String("promotion_id", row.ID), zap.Error(err))
			continue
		}
		promotions = append(promotions, promo)
	}

	return promotions, nil
}

func (r *postgresCatalog) PromotionProducts(ctx context.Context, promotionID string) ([]string, error) {
	if promotionID == "" {
		return nil, fmt.Errorf("promotionID is empty")
	}

	ids, err := r.q.ListPromotionProducts(ctx, promotionID)
	if err != nil {
		return nil, fmt.Errorf("q.ListPromotionProducts: %w", err)
	}

	return ids, nil
}

func mapPromotionRowToDomain(row db.PromotionRow) (domain.Promotion, error) {
	scope, err := parseScope(row.Scope)
	if err != nil {
		return domain.Promotion{}, err
	}

	percentOff, err := decimal.NewFromString(row.PercentOff)
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("percent_off[%s] is not valid: %w", row.PercentOff, err)
	}

	amountOff, err := decimal.NewFromString(row.AmountOff)
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("amount_off[%s] is not valid: %w", row.AmountOff, err)
	}

	fixedPrice, err := decimal.NewFromString(row.FixedPrice)
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("fixed_price[%s] is not valid: %w", row.FixedPrice, err)
	}

	var minOrderAmount decimal.NullDecimal
	if row.MinOrderAmount != nil {
		amount, err := decimal.NewFromString(*row.MinOrderAmount)
		if err != nil {
			return domain.Promotion{}, fmt.Errorf("min_order_amount[%s] is not valid: %w", *row.MinOrderAmount, err)
		}
		minOrderAmount = decimal.NewNullDecimal(amount)
	}

	return domain.Promotion{
		ID:             row.ID,
		Name:           row.Name,
		Scope:          scope,
		Type:           domain.PromotionType(row.Type),
		PercentOff:     percentOff,
		AmountOff:      amountOff,
		FixedPrice:     fixedPrice,
		BuyQty:         int(row.BuyQty),
		GetQty:         int(row.GetQty),
		MinOrderAmount: minOrderAmount,
	}, nil
}
