package domain

import (
	"fmt"
	"strings"
)

// ItemID identifies a purchasable variant: a bottle size and a flavor key.
type ItemID struct {
	Size   string
	Flavor string
}

func (id ItemID) String() string {
	return id.Size + "/" + id.Flavor
}

// ParseItemID parses the "size/flavor" form used in storage keys and API paths.
func ParseItemID(s string) (ItemID, error) {
	size, flavor, ok := strings.Cut(s, "/")
	if !ok || size == "" || flavor == "" {
		return ItemID{}, fmt.Errorf("%w: %q", ErrUnknownItem, s)
	}
	return ItemID{Size: size, Flavor: flavor}, nil
}

// Item is one catalog entry. Immutable after catalog load.
type Item struct {
	ID          ItemID
	Name        string
	Tag         string
	Description string
}

// ItemStock pairs a catalog entry with its current ledger quantity for rendering.
type ItemStock struct {
	Item     Item
	Quantity int
}

// StockLevel is one ledger entry.
type StockLevel struct {
	ItemID   ItemID
	Quantity int
}
