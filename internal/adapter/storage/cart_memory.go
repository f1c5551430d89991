package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// MemoryCartAdapter holds carts in process memory. Carts are lost on restart,
// which the deployment accepts: a cart is intent, not a reservation.
type MemoryCartAdapter struct {
	mu    sync.Mutex
	carts map[string]map[domain.ItemID]int
}

func NewMemoryCartAdapter() *MemoryCartAdapter {
	return &MemoryCartAdapter{
		carts: make(map[string]map[domain.ItemID]int),
	}
}

func (a *MemoryCartAdapter) Change(ctx context.Context, userID string, id domain.ItemID, delta int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cart := a.carts[userID]
	if cart == nil {
		cart = make(map[domain.ItemID]int)
		a.carts[userID] = cart
	}

	quantity := cart[id] + delta
	if quantity <= 0 {
		delete(cart, id)
		if len(cart) == 0 {
			delete(a.carts, userID)
		}
		return 0, nil
	}
	cart[id] = quantity
	return quantity, nil
}

func (a *MemoryCartAdapter) Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cart := a.carts[userID]
	lines := make([]domain.CartLine, 0, len(cart))
	for id, quantity := range cart {
		lines = append(lines, domain.CartLine{ItemID: id, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ItemID.String() < lines[j].ItemID.String()
	})
	return lines, nil
}

func (a *MemoryCartAdapter) Clear(ctx context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.carts, userID)
	return nil
}
