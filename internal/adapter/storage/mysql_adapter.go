package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// MySQLAdapter keeps the ledger in MySQL. Expected schema:
//
//	CREATE TABLE stock (
//	    item_id    VARCHAR(64) PRIMARY KEY,
//	    quantity   INT NOT NULL DEFAULT 0,
//	    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
//	);
//	CREATE TABLE settings (
//	    name  VARCHAR(64) PRIMARY KEY,
//	    value TEXT NOT NULL
//	);
//
// DecrementAll runs inside one transaction with conditional updates
// (quantity >= requested), so concurrent checkouts serialize per row and an
// oversell is impossible.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Get(ctx context.Context, id domain.ItemID) (int, error) {
	var quantity int
	err := m.db.QueryRowContext(ctx,
		`SELECT quantity FROM stock WHERE item_id = ?`, id.String(),
	).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query stock %s: %w", id, err)
	}
	return quantity, nil
}

func (m *MySQLAdapter) Set(ctx context.Context, id domain.ItemID, quantity int) error {
	if quantity < 0 {
		quantity = 0
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock (item_id, quantity) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		id.String(), quantity,
	)
	if err != nil {
		return fmt.Errorf("set stock %s: %w", id, err)
	}
	return nil
}

func (m *MySQLAdapter) Add(ctx context.Context, id domain.ItemID, delta int) (int, error) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO stock (item_id, quantity) VALUES (?, GREATEST(?, 0))
		ON DUPLICATE KEY UPDATE quantity = GREATEST(quantity + ?, 0)`,
		id.String(), delta, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("add stock %s: %w", id, err)
	}
	return m.Get(ctx, id)
}

func (m *MySQLAdapter) List(ctx context.Context) ([]domain.StockLevel, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT item_id, quantity FROM stock ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()

	var levels []domain.StockLevel
	for rows.Next() {
		var key string
		var quantity int
		if err := rows.Scan(&key, &quantity); err != nil {
			return nil, fmt.Errorf("list stock: %w", err)
		}
		id, err := domain.ParseItemID(key)
		if err != nil {
			continue
		}
		levels = append(levels, domain.StockLevel{ItemID: id, Quantity: quantity})
	}
	return levels, rows.Err()
}

func (m *MySQLAdapter) DecrementAll(ctx context.Context, lines []domain.CartLine) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, ln := range lines {
		result, err := tx.ExecContext(ctx, `
			UPDATE stock SET quantity = quantity - ?
			WHERE item_id = ? AND quantity >= ?`,
			ln.Quantity, ln.ItemID.String(), ln.Quantity,
		)
		if err != nil {
			return fmt.Errorf("decrement stock %s: %w", ln.ItemID, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			// Short line: read what is left for the error, then the deferred
			// rollback undoes any earlier decrements in this transaction.
			var available int
			err := tx.QueryRowContext(ctx,
				`SELECT quantity FROM stock WHERE item_id = ?`, ln.ItemID.String(),
			).Scan(&available)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("query stock %s: %w", ln.ItemID, err)
			}
			return &domain.StockShortageError{
				ItemID:    ln.ItemID,
				Requested: ln.Quantity,
				Available: available,
			}
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) Setting(ctx context.Context, name string) (string, error) {
	var value string
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query setting %s: %w", name, err)
	}
	return value, nil
}

func (m *MySQLAdapter) PutSetting(ctx context.Context, name, value string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", name, err)
	}
	return nil
}
