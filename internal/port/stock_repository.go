package port

import (
	"context"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// StockRepository is the durable ledger of available quantity per item, plus a
// small free-form settings map kept in the same store. Every mutating call
// flushes to durable storage before returning; a flush failure after the
// in-memory mutation is reported wrapped in domain.ErrPersist.
type StockRepository interface {
	// Get returns the current quantity. An item with no entry reads as 0.
	Get(ctx context.Context, id domain.ItemID) (int, error)

	// Set assigns an absolute quantity. Negative input is clamped to 0.
	Set(ctx context.Context, id domain.ItemID, quantity int) error

	// Add applies a relative adjustment and returns the new quantity.
	// The result is clamped to a minimum of 0.
	Add(ctx context.Context, id domain.ItemID, delta int) (int, error)

	// List returns every ledger entry ordered by item id.
	List(ctx context.Context) ([]domain.StockLevel, error)

	// DecrementAll atomically checks every line against current stock and, only
	// if all pass, decrements them all. On any short line it returns a
	// *domain.StockShortageError with nothing mutated. The check and the
	// decrement share one atomicity boundary; there is no window between them.
	DecrementAll(ctx context.Context, lines []domain.CartLine) error

	// Setting reads a free-form admin setting; missing keys read as "".
	Setting(ctx context.Context, name string) (string, error)

	// PutSetting durably stores a free-form admin setting.
	PutSetting(ctx context.Context, name, value string) error
}
