package domain

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	ItemCount       int             `json:"itemCount"`
	ProductDiscount decimal.Decimal `json:"productDiscount"`
	OrderDiscount   decimal.Decimal `json:"orderDiscount"`
	Discount        decimal.Decimal `json:"discount"`

	// OrderPromotionID is the order promotion that won, empty when none did.
	OrderPromotionID string `json:"orderPromotionId,omitempty"`
}
