package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// Mock StockRepository
type mockStockRepo struct {
	mu       sync.Mutex
	stock    map[domain.ItemID]int
	settings map[string]string
}

func newMockStockRepo() *mockStockRepo {
	return &mockStockRepo{
		stock:    make(map[domain.ItemID]int),
		settings: make(map[string]string),
	}
}

func (m *mockStockRepo) Get(ctx context.Context, id domain.ItemID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id], nil
}

func (m *mockStockRepo) Set(ctx context.Context, id domain.ItemID, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[id] = quantity
	return nil
}

func (m *mockStockRepo) Add(ctx context.Context, id domain.ItemID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	quantity := m.stock[id] + delta
	if quantity < 0 {
		quantity = 0
	}
	m.stock[id] = quantity
	return quantity, nil
}

func (m *mockStockRepo) List(ctx context.Context) ([]domain.StockLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	levels := make([]domain.StockLevel, 0, len(m.stock))
	for id, quantity := range m.stock {
		levels = append(levels, domain.StockLevel{ItemID: id, Quantity: quantity})
	}
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].ItemID.String() < levels[j].ItemID.String()
	})
	return levels, nil
}

func (m *mockStockRepo) DecrementAll(ctx context.Context, lines []domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ln := range lines {
		if ln.Quantity > m.stock[ln.ItemID] {
			return &domain.StockShortageError{
				ItemID:    ln.ItemID,
				Requested: ln.Quantity,
				Available: m.stock[ln.ItemID],
			}
		}
	}
	for _, ln := range lines {
		m.stock[ln.ItemID] -= ln.Quantity
	}
	return nil
}

func (m *mockStockRepo) Setting(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings[name], nil
}

func (m *mockStockRepo) PutSetting(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[name] = value
	return nil
}

// Mock CartRepository
type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]map[domain.ItemID]int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]map[domain.ItemID]int)}
}

func (m *mockCartRepo) Change(ctx context.Context, userID string, id domain.ItemID, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.carts[userID]
	if cart == nil {
		cart = make(map[domain.ItemID]int)
		m.carts[userID] = cart
	}
	quantity := cart[id] + delta
	if quantity <= 0 {
		delete(cart, id)
		return 0, nil
	}
	cart[id] = quantity
	return quantity, nil
}

func (m *mockCartRepo) Snapshot(ctx context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart := m.carts[userID]
	lines := make([]domain.CartLine, 0, len(cart))
	for id, quantity := range cart {
		lines = append(lines, domain.CartLine{ItemID: id, Quantity: quantity})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ItemID.String() < lines[j].ItemID.String()
	})
	return lines, nil
}

func (m *mockCartRepo) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

// Mock Notifier
type mockNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
}

func (m *mockNotifier) Notify(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type env struct {
	catalog  *domain.Catalog
	stock    *mockStockRepo
	carts    *mockCartRepo
	notifier *mockNotifier
	shop     *ShopService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		catalog:  domain.DefaultCatalog(),
		stock:    newMockStockRepo(),
		carts:    newMockCartRepo(),
		notifier: &mockNotifier{},
	}
	e.shop = NewShopService(e.catalog, e.stock, e.carts, e.notifier, zap.NewNop(), 100)
	t.Cleanup(e.shop.Close)

	// Drain queue
	go func() {
		for range e.shop.OrderQueue() {
		}
	}()
	return e
}

func (e *env) item(i int) domain.ItemID {
	return e.catalog.Items()[i].ID
}

func TestCheckout_Success(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.User{ID: "user-1", DisplayName: "Dana"}
	itemA, itemB := e.item(0), e.item(1)

	e.stock.Set(ctx, itemA, 5)
	e.stock.Set(ctx, itemB, 3)
	e.carts.Change(ctx, user.ID, itemA, 2)
	e.carts.Change(ctx, user.ID, itemB, 1)

	order, err := e.shop.Checkout(ctx, user)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if order.ID == "" {
		t.Error("expected order id")
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 order lines, got %d", len(order.Lines))
	}
	if order.Lines[0].Name == "" {
		t.Error("expected resolved display name on order line")
	}
	if order.Total() != 3 {
		t.Errorf("expected total 3, got %d", order.Total())
	}

	if qty, _ := e.stock.Get(ctx, itemA); qty != 3 {
		t.Errorf("expected stock 3 for %s, got %d", itemA, qty)
	}
	if qty, _ := e.stock.Get(ctx, itemB); qty != 2 {
		t.Errorf("expected stock 2 for %s, got %d", itemB, qty)
	}

	lines, _ := e.carts.Snapshot(ctx, user.ID)
	if len(lines) != 0 {
		t.Errorf("expected cart cleared, got %d lines", len(lines))
	}
	if e.notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", e.notifier.count())
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.shop.Checkout(ctx, domain.User{ID: "user-1"})
	if !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got: %v", err)
	}
	if e.notifier.count() != 0 {
		t.Errorf("expected no notification, got %d", e.notifier.count())
	}
}

func TestCheckout_AllOrNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.User{ID: "user-1"}
	itemA, itemB := e.item(0), e.item(1)

	e.stock.Set(ctx, itemA, 10)
	e.stock.Set(ctx, itemB, 1)
	e.carts.Change(ctx, user.ID, itemA, 2)
	e.carts.Change(ctx, user.ID, itemB, 3) // short

	_, err := e.shop.Checkout(ctx, user)

	var short *domain.StockShortageError
	if !errors.As(err, &short) {
		t.Fatalf("expected StockShortageError, got: %v", err)
	}
	if short.ItemID != itemB {
		t.Errorf("expected shortage on %s, got %s", itemB, short.ItemID)
	}
	if short.Available != 1 {
		t.Errorf("expected available 1, got %d", short.Available)
	}

	// Nothing mutated: ledger and cart untouched.
	if qty, _ := e.stock.Get(ctx, itemA); qty != 10 {
		t.Errorf("expected stock 10 for %s, got %d", itemA, qty)
	}
	if qty, _ := e.stock.Get(ctx, itemB); qty != 1 {
		t.Errorf("expected stock 1 for %s, got %d", itemB, qty)
	}
	lines, _ := e.carts.Snapshot(ctx, user.ID)
	if len(lines) != 2 {
		t.Errorf("expected cart unchanged with 2 lines, got %d", len(lines))
	}
	if e.notifier.count() != 0 {
		t.Errorf("expected no notification, got %d", e.notifier.count())
	}
}

func TestCheckout_ItemGoneFromCatalog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.User{ID: "user-1"}
	ghost := domain.ItemID{Size: "50", Flavor: "discontinued"}

	e.carts.Change(ctx, user.ID, ghost, 1)

	_, err := e.shop.Checkout(ctx, user)

	var short *domain.StockShortageError
	if !errors.As(err, &short) {
		t.Fatalf("expected StockShortageError, got: %v", err)
	}
	if short.ItemID != ghost || short.Available != 0 {
		t.Errorf("expected shortage on %s with available 0, got %+v", ghost, short)
	}
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(0)

	e.stock.Set(ctx, item, 1)
	e.carts.Change(ctx, "user-a", item, 1)
	e.carts.Change(ctx, "user-b", item, 1)

	var successCount, shortageCount atomic.Int32
	var wg sync.WaitGroup
	for _, userID := range []string{"user-a", "user-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.shop.Checkout(ctx, domain.User{ID: id})
			var short *domain.StockShortageError
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &short):
				shortageCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	if successCount.Load() != 1 || shortageCount.Load() != 1 {
		t.Errorf("expected exactly 1 success and 1 shortage, got %d/%d",
			successCount.Load(), shortageCount.Load())
	}
	if qty, _ := e.stock.Get(ctx, item); qty != 0 {
		t.Errorf("expected final stock 0, got %d", qty)
	}
	if e.notifier.count() != 1 {
		t.Errorf("expected exactly 1 notification, got %d", e.notifier.count())
	}
}

func TestCheckout_NotifierFailureStillSucceeds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.User{ID: "user-1"}
	item := e.item(0)

	e.notifier.err = errors.New("broker down")
	e.stock.Set(ctx, item, 2)
	e.carts.Change(ctx, user.ID, item, 1)

	order, err := e.shop.Checkout(ctx, user)
	if err != nil {
		t.Fatalf("expected success despite notifier failure, got: %v", err)
	}
	if order.ID == "" {
		t.Error("expected order id")
	}
	if qty, _ := e.stock.Get(ctx, item); qty != 1 {
		t.Errorf("expected stock 1, got %d", qty)
	}
}

func TestAddToCart_AdvisoryGuardScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := domain.User{ID: "user-1", DisplayName: "Dana"}
	item := e.item(0)

	e.stock.Set(ctx, item, 5)

	for i := 1; i <= 5; i++ {
		quantity, err := e.shop.AddToCart(ctx, user.ID, item)
		if err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
		if quantity != i {
			t.Fatalf("expected cart quantity %d, got %d", i, quantity)
		}
	}

	// Sixth unit exceeds current stock.
	_, err := e.shop.AddToCart(ctx, user.ID, item)
	var short *domain.StockShortageError
	if !errors.As(err, &short) {
		t.Fatalf("expected StockShortageError, got: %v", err)
	}
	if short.Available != 5 {
		t.Errorf("expected available 5, got %d", short.Available)
	}

	// Cart still holds exactly 5; checkout drains the stock to 0.
	total, _ := e.shop.CartTotal(ctx, user.ID)
	if total != 5 {
		t.Fatalf("expected cart total 5, got %d", total)
	}
	if _, err := e.shop.Checkout(ctx, user); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if qty, _ := e.stock.Get(ctx, item); qty != 0 {
		t.Errorf("expected stock 0, got %d", qty)
	}
	lines, _ := e.shop.CartSnapshot(ctx, user.ID)
	if len(lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(lines))
	}
}

func TestAddToCart_UnknownItem(t *testing.T) {
	e := newEnv(t)

	_, err := e.shop.AddToCart(context.Background(), "user-1", domain.ItemID{Size: "99", Flavor: "nope"})
	if !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got: %v", err)
	}
}

func TestChangeQuantity_RemovesLine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(0)

	e.stock.Set(ctx, item, 5)
	if _, err := e.shop.AddToCart(ctx, "user-1", item); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	quantity, err := e.shop.ChangeQuantity(ctx, "user-1", item, -1)
	if err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if quantity != 0 {
		t.Errorf("expected quantity 0, got %d", quantity)
	}

	lines, _ := e.shop.CartSnapshot(ctx, "user-1")
	if len(lines) != 0 {
		t.Errorf("expected line removed, got %d lines", len(lines))
	}
}

func TestChangeQuantity_ZeroDelta(t *testing.T) {
	e := newEnv(t)

	_, err := e.shop.ChangeQuantity(context.Background(), "user-1", e.item(0), 0)
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestClearCart_EmptyIsNoop(t *testing.T) {
	e := newEnv(t)

	if err := e.shop.ClearCart(context.Background(), "user-1"); err != nil {
		t.Errorf("expected no-op, got: %v", err)
	}
}

func TestStock_ClampRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	item := e.item(0)

	if err := e.shop.SetStock(ctx, item, 7); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if qty, _ := e.stock.Get(ctx, item); qty != 7 {
		t.Errorf("expected 7, got %d", qty)
	}

	if qty, err := e.shop.AddStock(ctx, item, -3); err != nil || qty != 4 {
		t.Errorf("expected 4, got %d (err %v)", qty, err)
	}
	if qty, err := e.shop.AddStock(ctx, item, -10); err != nil || qty != 0 {
		t.Errorf("expected clamp to 0, got %d (err %v)", qty, err)
	}
}

func TestSetStock_UnknownItem(t *testing.T) {
	e := newEnv(t)

	err := e.shop.SetStock(context.Background(), domain.ItemID{Size: "99", Flavor: "nope"}, 5)
	if !errors.Is(err, domain.ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got: %v", err)
	}
}

func TestListAvailable_ExcludesZeroStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	itemA, itemB := e.item(0), e.item(1)

	e.shop.SetStock(ctx, itemA, 5)
	e.shop.SetStock(ctx, itemB, 0)

	available, err := e.shop.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, is := range available {
		if is.Item.ID == itemB {
			t.Errorf("item %s with zero stock should not be listed", itemB)
		}
	}
	found := false
	for _, is := range available {
		if is.Item.ID == itemA {
			found = true
			if is.Quantity != 5 {
				t.Errorf("expected quantity 5, got %d", is.Quantity)
			}
		}
	}
	if !found {
		t.Errorf("item %s with stock should be listed", itemA)
	}
}

func TestListStock_IncludesZeroStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	levels, err := e.shop.ListStock(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(levels) != e.catalog.Len() {
		t.Errorf("expected %d entries, got %d", e.catalog.Len(), len(levels))
	}
}

func TestSeedDefaults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.shop.SeedDefaults(ctx, 10); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	for _, item := range e.catalog.Items() {
		if qty, _ := e.stock.Get(ctx, item.ID); qty != 10 {
			t.Errorf("expected seeded stock 10 for %s, got %d", item.ID, qty)
		}
	}

	// A second seed leaves admin edits alone.
	e.shop.SetStock(ctx, e.item(0), 3)
	if err := e.shop.SeedDefaults(ctx, 10); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}
	if qty, _ := e.stock.Get(ctx, e.item(0)); qty != 3 {
		t.Errorf("expected edited stock 3 to survive reseed, got %d", qty)
	}
}

func TestPhotoSetting_RoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if ref, _ := e.shop.Photo(ctx); ref != "" {
		t.Errorf("expected empty photo ref, got %q", ref)
	}
	if err := e.shop.SetPhoto(ctx, "file-abc123"); err != nil {
		t.Fatalf("set photo failed: %v", err)
	}
	if ref, _ := e.shop.Photo(ctx); ref != "file-abc123" {
		t.Errorf("expected file-abc123, got %q", ref)
	}
}
