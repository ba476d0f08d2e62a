package httpapi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nikolayk812/grocery-cart/internal/checkout"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type lineDTO struct {
	Key       string          `json:"key"`
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	Selected  bool            `json:"selected"`
}

type cartResponse struct {
	Items         []lineDTO `json:"items"`
	SelectedCount int       `json:"selectedCount"`
	CanCheckout   bool      `json:"canCheckout"`
}

type reorderResponse struct {
	Items []domain.CartItem `json:"items"`
}

type mergeResponse struct {
	Merged []string `json:"merged"`
}

type totalsResponse struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	ItemCount        int             `json:"itemCount"`
	ProductDiscount  decimal.Decimal `json:"productDiscount"`
	OrderDiscount    decimal.Decimal `json:"orderDiscount"`
	Discount         decimal.Decimal `json:"discount"`
	OrderPromotionID string          `json:"orderPromotionId,omitempty"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	GrandTotal       decimal.Decimal `json:"grandTotal"`
}

type selectAllRequest struct {
	All bool `json:"all"`
}

// quantityRequest accepts the quantity as a JSON number or string.
type quantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

func (r quantityRequest) value() int {
	raw := bytes.TrimSpace(r.Quantity)

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.ParseQuantity(s)
	}

	return domain.ParseQuantity(string(raw))
}

func mapQuoteToTotals(q checkout.Quote) totalsResponse {
	return totalsResponse{
		Subtotal:         q.Totals.Subtotal,
		ItemCount:        q.Totals.ItemCount,
		ProductDiscount:  q.Totals.ProductDiscount,
		OrderDiscount:    q.Totals.OrderDiscount,
		Discount:         q.Totals.Discount,
		OrderPromotionID: q.Totals.OrderPromotionID,
		ShippingFee:      q.ShippingFee,
		GrandTotal:       q.GrandTotal,
	}
}

func mapItemToLine(item domain.CartItem, selected bool) lineDTO {
	return lineDTO{
		Key:       item.Key().String(),
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Title:     item.Title,
		UnitPrice: item.UnitPrice,
		Quantity:  item.Quantity,
		Image:     item.Image,
		LineTotal: item.LineTotal(),
		Selected:  selected,
	}
}

func keyStrings(keys []domain.LineKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
