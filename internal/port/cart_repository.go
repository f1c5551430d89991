package port

import (
	"context"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// CartRepository holds per-user pending carts. A cart expresses intent, not a
// reservation; nothing here touches the stock ledger.
type CartRepository interface {
	// Change adjusts the line for (userID, id) by delta and returns the new
	// quantity. A result of zero or below deletes the line and returns 0.
	Change(ctx context.Context, userID string, id domain.ItemID, delta int) (int, error)

	// Snapshot returns the user's lines ordered by item id.
	Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error)

	// Clear deletes all lines for the user. Clearing an empty cart is a no-op.
	Clear(ctx context.Context, userID string) error
}
