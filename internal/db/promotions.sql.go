package db

import (
	"context"
	"time"
)

const listActivePromotions = `
SELECT id,
       name,
       scope,
       type,
       percent_off::TEXT,
       amount_off::TEXT,
       fixed_price::TEXT,
       buy_qty,
       get_qty,
       min_order_amount::TEXT
FROM promotions
WHERE active
  AND (starts_at IS NULL OR starts_at <= $1)
  AND (ends_at IS NULL OR ends_at > $1)
ORDER BY created_at, id`

// PromotionRow carries numeric columns as text to keep exact decimals.
type PromotionRow struct {
	ID             string
	Name           string
	Scope          string
	Type           string
	PercentOff     string
	AmountOff      string
	FixedPrice     string
	BuyQty         int32
	GetQty         int32
	MinOrderAmount *string
}

func (q *Queries) ListActivePromotions(ctx context.Context, now time.Time) ([]PromotionRow, error) {
	rows, err := q.db.Query(ctx, listActivePromotions, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PromotionRow
	for rows.Next() {
		var i PromotionRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Scope,
			&i.Type,
			&i.PercentOff,
			&i.AmountOff,
			&i.FixedPrice,
			&i.BuyQty,
			&i.GetQty,
			&i.MinOrderAmount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPromotionProducts = `
SELECT product_id
FROM promotion_products
WHERE promotion_id = $1
ORDER BY position, product_id`

func (q *Queries) ListPromotionProducts(ctx context.Context, promotionID string) ([]string, error) {
	rows, err := q.db.Query(ctx, listPromotionProducts, promotionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var productID string
		if err := rows.Scan(&productID); err != nil {
			return nil, err
		}
		items = append(items, productID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
