package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

// MySQLOrderLog appends completed orders to MySQL. Expected schema:
//
//	CREATE TABLE orders (
//	    id           VARCHAR(64) PRIMARY KEY,
//	    user_id      VARCHAR(64) NOT NULL,
//	    display_name VARCHAR(255) NOT NULL,
//	    username     VARCHAR(255) NOT NULL DEFAULT '',
//	    created_at   TIMESTAMP NOT NULL
//	);
//	CREATE TABLE order_lines (
//	    order_id VARCHAR(64) NOT NULL,
//	    item_id  VARCHAR(64) NOT NULL,
//	    name     VARCHAR(255) NOT NULL,
//	    quantity INT NOT NULL,
//	    PRIMARY KEY (order_id, item_id)
//	);
type MySQLOrderLog struct {
	db *sql.DB
}

func NewMySQLOrderLog(db *sql.DB) *MySQLOrderLog {
	return &MySQLOrderLog{db: db}
}

func (l *MySQLOrderLog) Record(ctx context.Context, order domain.Order) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, display_name, username, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.DisplayName, order.Username, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	for _, ln := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, item_id, name, quantity)
			VALUES (?, ?, ?, ?)`,
			order.ID, ln.ItemID.String(), ln.Name, ln.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order line %s/%s: %w", order.ID, ln.ItemID, err)
		}
	}

	return tx.Commit()
}
