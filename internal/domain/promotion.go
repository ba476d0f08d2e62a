package domain

import "github.com/shopspring/decimal"

type PromotionScope string

const (
	ScopeOrder   PromotionScope = "ORDER"
	ScopeProduct PromotionScope = "PRODUCT"
)

type PromotionType string

const (
	PercentOff PromotionType = "PERCENT_OFF"
	AmountOff  PromotionType = "AMOUNT_OFF"
	FixedPrice PromotionType = "FIXED_PRICE"
	BuyXGetY   PromotionType = "BUY_X_GET_Y"
)

type Promotion struct {
	ID    string         `json:"id"`
	Name  string         `json:"name,omitempty"`
	Scope PromotionScope `json:"scope"`
	Type  PromotionType  `json:"type"`

	PercentOff decimal.Decimal `json:"percentOff"`
	AmountOff  decimal.Decimal `json:"amountOff"`
	FixedPrice decimal.Decimal `json:"fixedPrice"`
	BuyQty     int             `json:"buyQty"`
	GetQty     int             `json:"getQty"`

	// MinOrderAmount only applies to ORDER scope.
	MinOrderAmount decimal.NullDecimal `json:"minOrderAmount"`
}

// ProductPromotionIndex maps a product id to the PRODUCT scope promotions
// attached to it, in catalog order.
type ProductPromotionIndex map[string][]Promotion

// First returns the promotion that applies to productID, if any.
func (idx ProductPromotionIndex) First(productID string) (Promotion, bool) {
	promos := idx[productID]
	if len(promos) == 0 {
		return Promotion{}, false
	}

	return promos[0], true
}
