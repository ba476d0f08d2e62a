package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutSnapshot is written once when checkout starts and consumed once by
// the next step of the purchase flow.
type CheckoutSnapshot struct {
	ID          uuid.UUID
	Items       []CartItem
	TotalQty    int
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	ShippingFee decimal.Decimal
	TotalPrice  decimal.Decimal
	Currency    string
	CreatedAt   time.Time
}

type snapshotDocument struct {
	ID          uuid.UUID       `json:"id"`
	Items       []CartItem      `json:"items"`
	TotalQty    int             `json:"totalQty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Currency    string          `json:"currency,omitempty"`
	TS          int64           `json:"ts"`
}

// MarshalJSON writes the persisted layout, with ts in unix milliseconds.
func (s CheckoutSnapshot) MarshalJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []CartItem{}
	}

	return json.Marshal(snapshotDocument{
		ID:          s.ID,
		Items:       items,
		TotalQty:    s.TotalQty,
		Subtotal:    s.Subtotal,
		Discount:    s.Discount,
		ShippingFee: s.ShippingFee,
		TotalPrice:  s.TotalPrice,
		Currency:    s.Currency,
		TS:          s.CreatedAt.UnixMilli(),
	})
}

func (s *CheckoutSnapshot) UnmarshalJSON(data []byte) error {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	*s = CheckoutSnapshot{
		ID:          doc.ID,
		Items:       doc.Items,
		TotalQty:    doc.TotalQty,
		Subtotal:    doc.Subtotal,
		Discount:    doc.Discount,
		ShippingFee: doc.ShippingFee,
		TotalPrice:  doc.TotalPrice,
		Currency:    doc.Currency,
		CreatedAt:   time.UnixMilli(doc.TS).UTC(),
	}

	return nil
}
