package port

import (
	"context"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// Notifier delivers a finalized order to the operator. Checkout hands each
// successful order to the notifier exactly once; delivery failures are logged
// by the caller, never rolled back into the ledger.
type Notifier interface {
	Notify(ctx context.Context, order domain.Order) error
}

// OrderLog persists completed orders for operator audit. Records are written
// asynchronously by workers draining the checkout queue; losing a record on
// crash is acceptable, the log is not part of the checkout success contract.
type OrderLog interface {
	Record(ctx context.Context, order domain.Order) error
}
