// Package pricing turns selected cart lines and a promotion catalog into
// totals. Everything here is pure; catalog I/O lives in BuildIndex.
package pricing

import (
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputeTotals prices the selected lines. At most one PRODUCT promotion
// applies per product (the first in the index) and at most one ORDER
// promotion applies (the largest candidate). The discount always lies in
// [0, subtotal].
func ComputeTotals(items []domain.CartItem, index domain.ProductPromotionIndex, orderPromotions []domain.Promotion) domain.Totals {
	totals := domain.Totals{
		Subtotal:        decimal.Zero,
		ProductDiscount: decimal.Zero,
		OrderDiscount:   decimal.Zero,
		Discount:        decimal.Zero,
	}

	for _, item := range items {
		if item.Quantity < 1 {
			continue
		}

		totals.Subtotal = totals.Subtotal.Add(item.LineTotal())
		totals.ItemCount += item.Quantity

		if promo, ok := index.First(item.ProductID); ok {
			totals.ProductDiscount = totals.ProductDiscount.Add(CalcLineDiscount(item.UnitPrice, item.Quantity, promo))
		}
	}

	totals.ProductDiscount = domain.ClampMoney(totals.ProductDiscount, decimal.Zero, totals.Subtotal)

	base := totals.Subtotal.Sub(totals.ProductDiscount)
	if base.IsPositive() {
		totals.OrderDiscount, totals.OrderPromotionID = bestOrderDiscount(base, orderPromotions)
	}

	totals.Discount = domain.ClampMoney(totals.ProductDiscount.Add(totals.OrderDiscount), decimal.Zero, totals.Subtotal)

	return totals
}

// CalcLineDiscount is the discount a promotion grants on one line. It is 0
// for invalid parameters and unknown types, and never exceeds the line total.
func CalcLineDiscount(unitPrice decimal.Decimal, qty int, promo domain.Promotion) decimal.Decimal {
	if qty < 1 || !unitPrice.IsPositive() {
		return decimal.Zero
	}

	quantity := decimal.NewFromInt(int64(qty))
	lineTotal := unitPrice.Mul(quantity)

	var discount decimal.Decimal
	switch promo.Type {
	case domain.PercentOff:
		if !promo.PercentOff.IsPositive() {
			return decimal.Zero
		}
		discount = domain.RoundMoney(domain.Percent(lineTotal, promo.PercentOff))

	case domain.AmountOff:
		if !promo.AmountOff.IsPositive() {
			return decimal.Zero
		}
		discount = decimal.Min(lineTotal, promo.AmountOff.Mul(quantity))

	case domain.FixedPrice:
		// a fixed price that is not cheaper contributes nothing
		if !promo.FixedPrice.IsPositive() || !promo.FixedPrice.LessThan(unitPrice) {
			return decimal.Zero
		}
		discount = unitPrice.Sub(promo.FixedPrice).Mul(quantity)

	case domain.BuyXGetY:
		if promo.BuyQty < 1 || promo.GetQty < 1 {
			return decimal.Zero
		}
		groupSize := promo.BuyQty + promo.GetQty
		freeQty := (qty / groupSize) * promo.GetQty
		discount = unitPrice.Mul(decimal.NewFromInt(int64(freeQty)))

	default:
		return decimal.Zero
	}

	return domain.ClampMoney(discount, decimal.Zero, lineTotal)
}

// OrderDiscount is the candidate discount of one ORDER promotion on base,
// and whether the promotion qualifies at all.
func OrderDiscount(base decimal.Decimal, promo domain.Promotion) (decimal.Decimal, bool) {
	if !base.IsPositive() {
		return decimal.Zero, false
	}
	if promo.MinOrderAmount.Valid && base.LessThan(promo.MinOrderAmount.Decimal) {
		return decimal.Zero, false
	}

	var candidate decimal.Decimal
	switch promo.Type {
	case domain.PercentOff:
		if !promo.PercentOff.IsPositive() {
			return decimal.Zero, false
		}
		candidate = domain.RoundMoney(domain.Percent(base, promo.PercentOff))

	case domain.AmountOff:
		if !promo.AmountOff.IsPositive() {
			return decimal.Zero, false
		}
		candidate = decimal.Min(base, promo.AmountOff)

	default:
		return decimal.Zero, false
	}

	return domain.ClampMoney(candidate, decimal.Zero, base), true
}

// GrandTotal is subtotal - discount + shipping, floored at zero. Negative
// shipping counts as zero.
func GrandTotal(totals domain.Totals, shippingFee decimal.Decimal) decimal.Decimal {
	if shippingFee.IsNegative() {
		shippingFee = decimal.Zero
	}

	total := totals.Subtotal.Sub(totals.Discount).Add(shippingFee)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func bestOrderDiscount(base decimal.Decimal, promotions []domain.Promotion) (decimal.Decimal, string) {
	best, bestID := decimal.Zero, ""

	for _, promo := range promotions {
		if promo.Scope != domain.ScopeOrder {
			continue
		}

		candidate, ok := OrderDiscount(base, promo)
		if ok && candidate.GreaterThan(best) {
			best, bestID = candidate, promo.ID
		}
	}

	return best, bestID
}
