package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const keySeparator = "::"

// MaxQuantity caps a line quantity; larger values are clamped.
const MaxQuantity = math.MaxInt32

// LineKey identifies one cart line: a product plus an optional variant.
type LineKey struct {
	ProductID string
	VariantID string
}

func NewLineKey(productID, variantID string) LineKey {
	return LineKey{
		ProductID: strings.TrimSpace(productID),
		VariantID: strings.TrimSpace(variantID),
	}
}

// ParseLineKey reads the persisted "productId::variantId" form.
// A string without separator is a product without variant.
func ParseLineKey(s string) LineKey {
	productID, variantID, _ := strings.Cut(s, keySeparator)
	return NewLineKey(productID, variantID)
}

func (k LineKey) String() string {
	return k.ProductID + keySeparator + k.VariantID
}

func (k LineKey) IsZero() bool {
	return k.ProductID == ""
}

type CartItem struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

func (i CartItem) Key() LineKey {
	return NewLineKey(i.ProductID, i.VariantID)
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NormalizeItems drops lines without a product or with quantity < 1,
// merges duplicate keys by summing quantities (first position wins),
// caps quantities at MaxQuantity and clamps negative unit prices to zero.
// The result is never nil.
func NormalizeItems(items []CartItem) []CartItem {
	result := make([]CartItem, 0, len(items))
	index := make(map[LineKey]int, len(items))

	for _, item := range items {
		key := item.Key()
		if key.IsZero() || item.Quantity < 1 {
			continue
		}

		item.ProductID, item.VariantID = key.ProductID, key.VariantID
		item.Quantity = min(item.Quantity, MaxQuantity)
		if item.UnitPrice.IsNegative() {
			item.UnitPrice = decimal.Zero
		}

		if i, ok := index[key]; ok {
			result[i].Quantity = AddQuantity(result[i].Quantity, item.Quantity)
			continue
		}

		index[key] = len(result)
		result = append(result, item)
	}

	return result
}

// AddQuantity sums two non-negative quantities, saturating at MaxQuantity.
func AddQuantity(a, b int) int {
	if b > MaxQuantity-a {
		return MaxQuantity
	}
	return a + b
}

var (
	minQuantityInput = decimal.NewFromInt(math.MinInt32)
	maxQuantityInput = decimal.NewFromInt(math.MaxInt32)
)

// ParseQuantity converts user input to a quantity. Anything that is not an
// integer, or does not fit in 32 bits, reads as 0.
func ParseQuantity(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return 0
		}
		return n
	}

	// "2.0" style input from numeric form fields
	d, err := decimal.NewFromString(raw)
	if err != nil || d.LessThan(minQuantityInput) || d.GreaterThan(maxQuantityInput) {
		return 0
	}

	return int(d.IntPart())
}
