package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/grocery-cart/internal/cart"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/nikolayk812/grocery-cart/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Quote is the live pricing of the current selection.
type Quote struct {
	Items       []domain.CartItem
	Totals      domain.Totals
	ShippingFee decimal.Decimal
	GrandTotal  decimal.Decimal
}

// Builder captures the selection and its totals when checkout starts and
// hands the snapshot to the next step through the document store.
type Builder struct {
	mu sync.Mutex

	docs      port.DocumentStore
	selection *cart.Selection
	catalog   port.PromotionCatalog
	publisher port.SnapshotPublisher

	origin      string
	currency    string
	shippingFee decimal.Decimal
	now         func() time.Time
	logger      *zap.Logger
}

type Option func(*Builder)

func WithPublisher(publisher port.SnapshotPublisher) Option {
	return func(b *Builder) { b.publisher = publisher }
}

func WithShippingFee(fee decimal.Decimal) Option {
	return func(b *Builder) { b.shippingFee = fee }
}

func WithCurrency(code string) Option {
	return func(b *Builder) { b.currency = code }
}

func WithOrigin(origin string) Option {
	return func(b *Builder) { b.origin = origin }
}

func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder prices against catalog, which may be nil for no promotions.
func NewBuilder(docs port.DocumentStore, selection *cart.Selection, catalog port.PromotionCatalog, opts ...Option) *Builder {
	b := &Builder{
		docs:        docs,
		selection:   selection,
		catalog:     catalog,
		shippingFee: decimal.Zero,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CanCheckout reports whether the checkout action is available.
func (b *Builder) CanCheckout() bool {
	return len(b.selection.SelectedItems()) > 0
}

// Quote prices the current selection against the latest catalog state.
func (b *Builder) Quote(ctx context.Context) Quote {
	items := b.selection.SelectedItems()
	totals := pricing.BuildIndex(ctx, b.catalog, b.logger).Compute(items)
	fee := decimal.Max(b.shippingFee, decimal.Zero)

	return Quote{
		Items:       items,
		Totals:      totals,
		ShippingFee: fee,
		GrandTotal:  pricing.GrandTotal(totals, fee),
	}
}

// Build writes a new snapshot, replacing any unconsumed one. ok is false
// when nothing is selected; no snapshot is written then.
func (b *Builder) Build(ctx context.Context) (domain.CheckoutSnapshot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	quote := b.Quote(ctx)
	if len(quote.Items) == 0 {
		return domain.CheckoutSnapshot{}, false, nil
	}

	snapshot := domain.CheckoutSnapshot{
		ID:          uuid.New(),
		Items:       quote.Items,
		TotalQty:    quote.Totals.ItemCount,
		Subtotal:    quote.Totals.Subtotal,
		Discount:    quote.Totals.Discount,
		ShippingFee: quote.ShippingFee,
		TotalPrice:  quote.GrandTotal,
		Currency:    b.currency,
		CreatedAt:   b.now().UTC(),
	}

	if err := b.write(ctx, snapshot); err != nil {
		return domain.CheckoutSnapshot{}, false, err
	}

	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, snapshot); err != nil {
			// the persisted snapshot is the handoff; the event is informational
			b.logger.Warn("failed to publish checkout snapshot",
				zap.String("snapshot_id", snapshot.ID.String()), zap.Error(err))
		}
	}

	b.logger.Info("checkout snapshot built",
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.Int("total_qty", snapshot.TotalQty),
		zap.String("total_price", snapshot.TotalPrice.String()))

	return snapshot, true, nil
}

// Peek reads the pending snapshot without consuming it.
func (b *Builder) Peek(ctx context.Context) (domain.CheckoutSnapshot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.read(ctx)
}

// Consume returns the pending snapshot and removes it, so each snapshot is
// handed off once.
func (b *Builder) Consume(ctx context.Context) (domain.CheckoutSnapshot, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot, ok, err := b.read(ctx)
	if err != nil || !ok {
		return domain.CheckoutSnapshot{}, false, err
	}

	if err := b.docs.Delete(ctx, domain.DocCheckoutSnapshot, b.origin); err != nil {
		return domain.CheckoutSnapshot{}, false, fmt.Errorf("docs.Delete[%s]: %w", domain.DocCheckoutSnapshot, err)
	}

	return snapshot, true, nil
}

func (b *Builder) write(ctx context.Context, snapshot domain.CheckoutSnapshot) error {
	data, err := snapshot.MarshalJSON()
	if err != nil {
		return fmt.Errorf("snapshot.MarshalJSON: %w", err)
	}

	if err := b.docs.Put(ctx, domain.DocCheckoutSnapshot, data, b.origin); err != nil {
		return fmt.Errorf("docs.Put[%s]: %w", domain.DocCheckoutSnapshot, err)
	}

	return nil
}

func (b *Builder) read(ctx context.Context) (domain.CheckoutSnapshot, bool, error) {
	data, ok, err := b.docs.Get(ctx, domain.DocCheckoutSnapshot)
	if err != nil {
		return domain.CheckoutSnapshot{}, false, fmt.Errorf("docs.Get[%s]: %w", domain.DocCheckoutSnapshot, err)
	}
	if !ok {
		return domain.CheckoutSnapshot{}, false, nil
	}

	var snapshot domain.CheckoutSnapshot
	if err := snapshot.UnmarshalJSON(data); err != nil {
		b.logger.Warn("malformed persisted document, using empty default",
			zap.String("document", domain.DocCheckoutSnapshot), zap.Error(err))
		return domain.CheckoutSnapshot{}, false, nil
	}

	return snapshot, true, nil
}
