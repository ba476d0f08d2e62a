package port

import (
	"context"

	"github.com/nikolayk812/grocery-cart/internal/domain"
)

type SnapshotPublisher interface {
	Publish(ctx context.Context, snapshot domain.CheckoutSnapshot) error
}
