package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

type MySQLOrderLedger struct {
	db *sql.DB
}

func NewMySQLOrderLedger(db *sql.DB) *MySQLOrderLedger {
	return &MySQLOrderLedger{db: db}
}

func (m *MySQLOrderLedger) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, direction, status, reason, claimed, created_at)
		VALUES (?, ?, ?, '', 0, ?)`,
		order.ID, order.Direction, order.Status, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.LineItems {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, i, item.ProductID, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLOrderLedger) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var settledAt sql.NullTime
	err := m.db.QueryRowContext(ctx, `
		SELECT id, direction, status, reason, created_at, settled_at
		FROM orders WHERE id = ?`, id,
	).Scan(&o.ID, &o.Direction, &o.Status, &o.Reason, &o.CreatedAt, &settledAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if settledAt.Valid {
		o.SettledAt = &settledAt.Time
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		o.LineItems = append(o.LineItems, item)
	}

	return &o, rows.Err()
}

func (m *MySQLOrderLedger) ClaimOrder(ctx context.Context, id string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET claimed = 1
		WHERE id = ? AND status = 'pending' AND claimed = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim order: %w", err)
	}
	return rows == 1, nil
}

func (m *MySQLOrderLedger) ReleaseOrder(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `
		UPDATE orders SET claimed = 0
		WHERE id = ? AND status = 'pending' AND claimed = 1`, id)
	if err != nil {
		return fmt.Errorf("release order: %w", err)
	}
	return nil
}

func (m *MySQLOrderLedger) ListPendingUnclaimed(ctx context.Context, olderThan time.Time) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND claimed = 0 AND created_at < ?
		ORDER BY created_at`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := m.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (m *MySQLOrderLedger) CancelOrder(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = 'cancelled', reason = 'cancelled-by-client'
		WHERE id = ? AND status = 'pending' AND claimed = 0`, id)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if rows == 0 {
		if _, err := m.GetOrder(ctx, id); err != nil {
			return err
		}
		return domain.ErrOrderNotCancellable
	}
	return nil
}

func (m *MySQLOrderLedger) MarkCommitted(ctx context.Context, id string, items []domain.LineItem, settledAt time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := m.settleInTx(ctx, tx, id, domain.OrderStatusCommitted, "", settledAt); err != nil {
		return err
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			UPDATE order_items SET unit_price = ?
			WHERE order_id = ? AND product_id = ?`,
			item.UnitPrice, id, item.ProductID,
		)
		if err != nil {
			return fmt.Errorf("resolve unit price: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLOrderLedger) MarkRejected(ctx context.Context, id, reason string, settledAt time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := m.settleInTx(ctx, tx, id, domain.OrderStatusRejected, reason, settledAt); err != nil {
		return err
	}

	return tx.Commit()
}

// settleInTx performs the exactly-once pending -> terminal transition. A
// zero rows-affected result on an existing order means the order already
// left pending, which is the double-settlement invariant violation.
func (m *MySQLOrderLedger) settleInTx(ctx context.Context, tx *sql.Tx, id string, status domain.OrderStatus, reason string, settledAt time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, reason = ?, settled_at = ?
		WHERE id = ? AND status = 'pending'`,
		status, reason, settledAt, id,
	)
	if err != nil {
		return fmt.Errorf("settle order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle order: %w", err)
	}
	if rows == 0 {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("settle order: %w", err)
		}
		return fmt.Errorf("order %s already %s: %w", id, current, domain.ErrDoubleSettlement)
	}
	return nil
}
