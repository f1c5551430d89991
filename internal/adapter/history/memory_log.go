package history

import (
	"context"
	"sync"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// MemoryOrderLog keeps completed orders in process memory. Used with the file
// storage backend and in tests.
type MemoryOrderLog struct {
	mu     sync.Mutex
	orders []domain.Order
}

func NewMemoryOrderLog() *MemoryOrderLog {
	return &MemoryOrderLog{}
}

func (l *MemoryOrderLog) Record(ctx context.Context, order domain.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, order)
	return nil
}

// Orders returns a copy of everything recorded so far.
func (l *MemoryOrderLog) Orders() []domain.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}
