package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownItem     = errors.New("unknown item")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be a positive number")

	// ErrPersist wraps a failed flush of the durable ledger. The in-memory
	// state has already been mutated and stays authoritative for the running
	// process; callers surface the failure instead of rolling back.
	ErrPersist = errors.New("ledger state not persisted")
)

// StockShortageError reports the first cart line that exceeds available stock.
type StockShortageError struct {
	ItemID    ItemID
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}
