package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/nikolayk812/grocery-cart/internal/cart"
	"github.com/nikolayk812/grocery-cart/internal/checkout"
	"github.com/nikolayk812/grocery-cart/internal/docstore"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/nikolayk812/grocery-cart/internal/port"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCatalog struct {
	promotions []domain.Promotion
	products   map[string][]string
}

func (c fakeCatalog) ActivePromotions(context.Context) ([]domain.Promotion, error) {
	return c.promotions, nil
}

func (c fakeCatalog) PromotionProducts(_ context.Context, promotionID string) ([]string, error) {
	return c.products[promotionID], nil
}

type recordingPublisher struct {
	published []domain.CheckoutSnapshot
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, snapshot domain.CheckoutSnapshot) error {
	p.published = append(p.published, snapshot)
	return p.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(productID, price string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: productID,
		Title:     gofakeit.ProductName(),
		UnitPrice: dec(price),
		Quantity:  qty,
	}
}

var decimalComparer = cmp.Comparer(func(x, y decimal.Decimal) bool {
	return x.Equal(y)
})

type fixture struct {
	docs    port.DocumentStore
	session *cart.Session
}

func newFixture(t *testing.T, items ...domain.CartItem) fixture {
	t.Helper()

	docs := docstore.NewMemory()
	session, err := cart.Open(t.Context(), docs, cart.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	require.NoError(t, session.Store.AddAll(t.Context(), items))

	return fixture{docs: docs, session: session}
}

func (f fixture) builder(t *testing.T, opts ...checkout.Option) *checkout.Builder {
	t.Helper()

	opts = append([]checkout.Option{
		checkout.WithOrigin(f.session.Origin()),
		checkout.WithLogger(zaptest.NewLogger(t)),
	}, opts...)

	return checkout.NewBuilder(f.docs, f.session.Selection, nil, opts...)
}

func TestBuildEmptySelection(t *testing.T) {
	f := newFixture(t, item("apple", "2.00", 1))
	require.NoError(t, f.session.Selection.SetAll(t.Context(), false))

	publisher := &recordingPublisher{}
	b := f.builder(t, checkout.WithPublisher(publisher))

	assert.False(t, b.CanCheckout())

	_, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := f.docs.Get(t.Context(), domain.DocCheckoutSnapshot)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, publisher.published)
}

func TestBuildEmptyCart(t *testing.T) {
	f := newFixture(t)
	b := f.builder(t)

	assert.False(t, b.CanCheckout())

	_, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildSelectedItemsOnly(t *testing.T) {
	apple := item("apple", "2.00", 2)
	bread := item("bread", "3.50", 1)
	f := newFixture(t, apple, bread)
	require.NoError(t, f.session.Selection.Toggle(t.Context(), bread.Key()))

	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := f.builder(t,
		checkout.WithShippingFee(dec("4.99")),
		checkout.WithCurrency("EUR"),
		checkout.WithClock(func() time.Time { return createdAt }),
	)

	snapshot, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Empty(t, cmp.Diff([]domain.CartItem{apple}, snapshot.Items, decimalComparer))
	assert.Equal(t, 2, snapshot.TotalQty)
	assert.True(t, dec("4.00").Equal(snapshot.Subtotal))
	assert.True(t, decimal.Zero.Equal(snapshot.Discount))
	assert.True(t, dec("4.99").Equal(snapshot.ShippingFee))
	assert.True(t, dec("8.99").Equal(snapshot.TotalPrice))
	assert.Equal(t, "EUR", snapshot.Currency)
	assert.Equal(t, createdAt, snapshot.CreatedAt)

	peeked, ok, err := b.Peek(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(snapshot, peeked, decimalComparer))
}

func TestBuildAppliesPromotions(t *testing.T) {
	f := newFixture(t,
		item("A", "10.00", 2),
		item("B", "5.00", 1),
	)

	catalog := fakeCatalog{
		promotions: []domain.Promotion{
			{ID: "P1", Scope: domain.ScopeProduct, Type: domain.PercentOff, PercentOff: dec("10")},
			{ID: "O1", Scope: domain.ScopeOrder, Type: domain.AmountOff, AmountOff: dec("3"),
				MinOrderAmount: decimal.NewNullDecimal(dec("20"))},
		},
		products: map[string][]string{"P1": {"A"}},
	}

	b := checkout.NewBuilder(f.docs, f.session.Selection, catalog,
		checkout.WithOrigin(f.session.Origin()),
		checkout.WithShippingFee(dec("2")))

	quote := b.Quote(t.Context())
	assert.True(t, dec("25.00").Equal(quote.Totals.Subtotal))
	assert.True(t, dec("2.00").Equal(quote.Totals.ProductDiscount))
	assert.True(t, dec("3").Equal(quote.Totals.OrderDiscount))
	assert.Equal(t, "O1", quote.Totals.OrderPromotionID)
	assert.True(t, dec("22").Equal(quote.GrandTotal))

	snapshot, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, snapshot.TotalQty)
	assert.True(t, dec("5").Equal(snapshot.Discount))
	assert.True(t, dec("22").Equal(snapshot.TotalPrice))
}

func TestBuildNegativeShippingFee(t *testing.T) {
	f := newFixture(t, item("apple", "2.00", 1))
	b := f.builder(t, checkout.WithShippingFee(dec("-5")))

	snapshot, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.Zero.Equal(snapshot.ShippingFee))
	assert.True(t, dec("2").Equal(snapshot.TotalPrice))
}

func TestBuildReplacesPendingSnapshot(t *testing.T) {
	f := newFixture(t, item("apple", "2.00", 1))
	b := f.builder(t)

	first, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)

	pending, ok, err := b.Peek(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second.ID, pending.ID)
}

func TestConsumeOnce(t *testing.T) {
	f := newFixture(t, item("apple", "2.00", 1))
	b := f.builder(t)

	snapshot, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	consumed, ok, err := b.Consume(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot.ID, consumed.ID)

	_, ok, err = b.Consume(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = b.Peek(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildDoesNotTouchCart(t *testing.T) {
	apple := item("apple", "2.00", 1)
	f := newFixture(t, apple)
	b := f.builder(t)

	_, ok, err := b.Build(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Empty(t, cmp.Diff([]domain.CartItem{apple}, f.session.Store.List(), decimalComparer))
	assert.True(t, f.session.Selection.IsSelected(apple.Key()))
}

func TestPeekMalformedSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.Put(t.Context(), domain.DocCheckoutSnapshot, []byte("{oops"), "other"))

	b := f.builder(t)

	_, ok, err := b.Peek(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuildPublishes(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "publish: ok",
		},
		{
			name: "publish failure: snapshot still built",
			err:  errors.New("broker down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, item("apple", "2.00", 1))
			publisher := &recordingPublisher{err: tt.err}
			b := f.builder(t, checkout.WithPublisher(publisher))

			snapshot, ok, err := b.Build(t.Context())
			require.NoError(t, err)
			require.True(t, ok)

			require.Len(t, publisher.published, 1)
			assert.Equal(t, snapshot.ID, publisher.published[0].ID)

			_, ok, err = b.Peek(t.Context())
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

type failingDocs struct {
	port.DocumentStore
}

func (d failingDocs) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func TestBuildWriteFailure(t *testing.T) {
	f := newFixture(t, item("apple", "2.00", 1))
	publisher := &recordingPublisher{}
	b := checkout.NewBuilder(failingDocs{f.docs}, f.session.Selection, nil, checkout.WithPublisher(publisher))

	_, ok, err := b.Build(t.Context())
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, publisher.published)
}
