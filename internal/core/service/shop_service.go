package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/core/domain"
	"github.com/okraiev/flavorshop/internal/observability"
	"github.com/okraiev/flavorshop/internal/port"
)

// photoSetting is the settings key for the shared menu photo reference.
const photoSetting = "menu_photo"

// ShopService is the inventory-and-cart engine behind the storefront. The
// transport layer calls it; it owns no transport state itself.
//
// Successful checkouts are pushed onto an internal queue for the order-log
// workers; the operator notification itself happens synchronously inside
// Checkout so the caller knows the hand-off was attempted.
type ShopService struct {
	catalog    *domain.Catalog
	stock      port.StockRepository
	carts      port.CartRepository
	notifier   port.Notifier
	logger     *zap.Logger
	orderQueue chan domain.Order
}

func NewShopService(
	catalog *domain.Catalog,
	stock port.StockRepository,
	carts port.CartRepository,
	notifier port.Notifier,
	logger *zap.Logger,
	queueSize int,
) *ShopService {
	return &ShopService{
		catalog:    catalog,
		stock:      stock,
		carts:      carts,
		notifier:   notifier,
		logger:     logger,
		orderQueue: make(chan domain.Order, queueSize),
	}
}

// OrderQueue exposes completed orders to the audit-log workers.
func (s *ShopService) OrderQueue() <-chan domain.Order {
	return s.orderQueue
}

// Close stops the order queue once no more checkouts will run.
func (s *ShopService) Close() {
	close(s.orderQueue)
}

// SeedDefaults populates the ledger with quantity per catalog item when the
// ledger is completely empty, i.e. on the very first run. An already seeded
// ledger is left alone so admin edits survive restarts.
func (s *ShopService) SeedDefaults(ctx context.Context, quantity int) error {
	levels, err := s.stock.List(ctx)
	if err != nil {
		return fmt.Errorf("list stock: %w", err)
	}
	if len(levels) > 0 {
		return nil
	}
	for _, item := range s.catalog.Items() {
		if err := s.stock.Set(ctx, item.ID, quantity); err != nil {
			return fmt.Errorf("seed stock %s: %w", item.ID, err)
		}
	}
	s.logger.Info("seeded default stock",
		zap.Int("items", s.catalog.Len()),
		zap.Int("quantity", quantity))
	return nil
}

// ListAvailable returns catalog items that currently have stock, in catalog
// order. Items at quantity 0 are hidden from the menu.
func (s *ShopService) ListAvailable(ctx context.Context) ([]domain.ItemStock, error) {
	var out []domain.ItemStock
	for _, item := range s.catalog.Items() {
		quantity, err := s.stock.Get(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("get stock %s: %w", item.ID, err)
		}
		if quantity == 0 {
			continue
		}
		out = append(out, domain.ItemStock{Item: item, Quantity: quantity})
	}
	return out, nil
}

// ViewItem returns one item's metadata with its current quantity.
func (s *ShopService) ViewItem(ctx context.Context, id domain.ItemID) (domain.ItemStock, error) {
	item, err := s.catalog.Lookup(id)
	if err != nil {
		return domain.ItemStock{}, err
	}
	quantity, err := s.stock.Get(ctx, id)
	if err != nil {
		return domain.ItemStock{}, fmt.Errorf("get stock %s: %w", id, err)
	}
	return domain.ItemStock{Item: item, Quantity: quantity}, nil
}

// CartSnapshot returns the user's pending lines ordered by item id.
func (s *ShopService) CartSnapshot(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.carts.Snapshot(ctx, userID)
}

// CartTotal returns the number of units across the user's cart.
func (s *ShopService) CartTotal(ctx context.Context, userID string) (int, error) {
	lines, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return 0, err
	}
	return domain.CartTotal(lines), nil
}

// AddToCart adds one unit of the item to the user's cart. When the cart would
// grow past currently reported stock the add is rejected with a shortage.
// This is a UX guard only; Checkout re-validates against the ledger under its
// own atomicity boundary.
func (s *ShopService) AddToCart(ctx context.Context, userID string, id domain.ItemID) (int, error) {
	return s.ChangeQuantity(ctx, userID, id, 1)
}

// ChangeQuantity adjusts a cart line by delta and returns the new quantity.
// Positive deltas run the same advisory stock guard as AddToCart; negative
// deltas always apply, deleting the line when it drops to zero or below.
func (s *ShopService) ChangeQuantity(ctx context.Context, userID string, id domain.ItemID, delta int) (int, error) {
	if !s.catalog.Has(id) {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownItem, id)
	}
	if delta == 0 {
		return 0, domain.ErrInvalidQuantity
	}

	if delta > 0 {
		available, err := s.stock.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("get stock %s: %w", id, err)
		}
		current := 0
		lines, err := s.carts.Snapshot(ctx, userID)
		if err != nil {
			return 0, err
		}
		for _, ln := range lines {
			if ln.ItemID == id {
				current = ln.Quantity
				break
			}
		}
		if current+delta > available {
			return current, &domain.StockShortageError{
				ItemID:    id,
				Requested: current + delta,
				Available: available,
			}
		}
	}

	return s.carts.Change(ctx, userID, id, delta)
}

// ClearCart drops every line of the user's cart. Clearing an already empty
// cart is a no-op.
func (s *ShopService) ClearCart(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// Checkout converts the user's cart into an order: it validates every line
// against the ledger and decrements them all inside one atomicity boundary,
// clears the cart, and hands the order to the operator notifier exactly once.
// On a shortage nothing is mutated and the error names the short item and the
// quantity still available.
func (s *ShopService) Checkout(ctx context.Context, user domain.User) (domain.Order, error) {
	lines, err := s.carts.Snapshot(ctx, user.ID)
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues(observability.OutcomeError).Inc()
		return domain.Order{}, fmt.Errorf("snapshot cart: %w", err)
	}
	if len(lines) == 0 {
		observability.CheckoutsTotal.WithLabelValues(observability.OutcomeEmpty).Inc()
		return domain.Order{}, domain.ErrEmptyCart
	}

	// Resolve display names up front. A line whose item vanished from the
	// catalog behaves as out of stock, not as a crash.
	orderLines := make([]domain.OrderLine, 0, len(lines))
	for _, ln := range lines {
		item, err := s.catalog.Lookup(ln.ItemID)
		if err != nil {
			observability.CheckoutsTotal.WithLabelValues(observability.OutcomeShortage).Inc()
			return domain.Order{}, &domain.StockShortageError{
				ItemID:    ln.ItemID,
				Requested: ln.Quantity,
				Available: 0,
			}
		}
		orderLines = append(orderLines, domain.OrderLine{
			ItemID:   ln.ItemID,
			Name:     item.Name,
			Quantity: ln.Quantity,
		})
	}

	if err := s.stock.DecrementAll(ctx, lines); err != nil {
		var short *domain.StockShortageError
		switch {
		case errors.As(err, &short):
			observability.CheckoutsTotal.WithLabelValues(observability.OutcomeShortage).Inc()
			return domain.Order{}, err
		case errors.Is(err, domain.ErrPersist):
			// The decrement is applied in memory; the running process stays
			// authoritative. Surface the degraded state, keep the order.
			s.logger.Error("ledger flush failed after checkout decrement",
				zap.String("user_id", user.ID), zap.Error(err))
		default:
			observability.CheckoutsTotal.WithLabelValues(observability.OutcomeError).Inc()
			return domain.Order{}, fmt.Errorf("decrement stock: %w", err)
		}
	}

	// Decrement first, clear second: a failed or repeated clear is harmless
	// because clearing is idempotent and checkout re-validates anyway.
	if err := s.carts.Clear(ctx, user.ID); err != nil {
		s.logger.Error("clear cart after checkout",
			zap.String("user_id", user.ID), zap.Error(err))
	}

	order := domain.Order{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Username:    user.Username,
		Lines:       orderLines,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.notifier.Notify(ctx, order); err != nil {
		// Stock is already decremented; the operator finds the order in the
		// audit log. Never roll back a sold unit over a notification failure.
		s.logger.Error("notify operator",
			zap.String("order_id", order.ID), zap.Error(err))
	} else {
		observability.OrdersNotified.Inc()
	}

	s.orderQueue <- order

	observability.CheckoutsTotal.WithLabelValues(observability.OutcomeSuccess).Inc()
	observability.UnitsSold.Add(float64(order.Total()))
	s.logger.Info("checkout complete",
		zap.String("order_id", order.ID),
		zap.String("user_id", user.ID),
		zap.Int("lines", len(order.Lines)),
		zap.Int("total_units", order.Total()))
	return order, nil
}

// SetStock is the admin absolute assignment. Negative input clamps to 0.
func (s *ShopService) SetStock(ctx context.Context, id domain.ItemID, quantity int) error {
	if !s.catalog.Has(id) {
		return fmt.Errorf("%w: %s", domain.ErrUnknownItem, id)
	}
	if err := s.stock.Set(ctx, id, quantity); err != nil {
		return err
	}
	s.logger.Info("stock set",
		zap.String("item_id", id.String()), zap.Int("quantity", quantity))
	return nil
}

// AddStock is the admin relative adjustment; the result clamps to 0.
func (s *ShopService) AddStock(ctx context.Context, id domain.ItemID, delta int) (int, error) {
	if !s.catalog.Has(id) {
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownItem, id)
	}
	quantity, err := s.stock.Add(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.logger.Info("stock adjusted",
		zap.String("item_id", id.String()),
		zap.Int("delta", delta),
		zap.Int("quantity", quantity))
	return quantity, nil
}

// ListStock returns every catalog item with its quantity, including zeros.
func (s *ShopService) ListStock(ctx context.Context) ([]domain.ItemStock, error) {
	out := make([]domain.ItemStock, 0, s.catalog.Len())
	for _, item := range s.catalog.Items() {
		quantity, err := s.stock.Get(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("get stock %s: %w", item.ID, err)
		}
		out = append(out, domain.ItemStock{Item: item, Quantity: quantity})
	}
	return out, nil
}

// SetPhoto stores the shared menu photo reference.
func (s *ShopService) SetPhoto(ctx context.Context, ref string) error {
	return s.stock.PutSetting(ctx, photoSetting, ref)
}

// Photo returns the shared menu photo reference, "" when unset.
func (s *ShopService) Photo(ctx context.Context) (string, error) {
	return s.stock.Setting(ctx, photoSetting)
}
