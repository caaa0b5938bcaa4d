package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

type MySQLStockStore struct {
	db *sql.DB
}

func NewMySQLStockStore(db *sql.DB) *MySQLStockStore {
	return &MySQLStockStore{db: db}
}

func (m *MySQLStockStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	var derivedAt sql.NullTime
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, base_price, discount_rule, discount_param,
		       quantity, low_stock_threshold, effective_price, low_stock,
		       derived_at, version, created_at, updated_at
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BasePrice, &p.DiscountRule, &p.DiscountParam,
		&p.Quantity, &p.LowStockThreshold, &p.EffectivePrice, &p.LowStock,
		&derivedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	if derivedAt.Valid {
		p.DerivedAt = &derivedAt.Time
	}

	return &p, nil
}

func (m *MySQLStockStore) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products
			(id, name, base_price, discount_rule, discount_param,
			 quantity, low_stock_threshold, effective_price, low_stock,
			 derived_at, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.BasePrice, p.DiscountRule, p.DiscountParam,
		p.Quantity, p.LowStockThreshold, p.EffectivePrice, p.LowStock,
		p.DerivedAt, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLStockStore) ListProductIDs(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TryAdjustQuantity applies the delta in a single conditional UPDATE. A zero
// rows-affected result is disambiguated with a follow-up read: missing row,
// stale version, or a delta that would drive quantity negative.
func (m *MySQLStockStore) TryAdjustQuantity(ctx context.Context, id string, delta, expectedVersion int) (int, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ? AND quantity + ? >= 0`,
		delta, id, expectedVersion, delta,
	)
	if err != nil {
		return 0, fmt.Errorf("adjust quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adjust quantity: %w", err)
	}
	if rows == 0 {
		return 0, m.classifyMiss(ctx, id, expectedVersion)
	}

	return expectedVersion + 1, nil
}

func (m *MySQLStockStore) UpdateDerived(ctx context.Context, id string, effectivePrice float64, lowStock bool, expectedVersion int) (int, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET effective_price = ?, low_stock = ?, derived_at = NOW(),
		    version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		effectivePrice, lowStock, id, expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("update derived fields: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update derived fields: %w", err)
	}
	if rows == 0 {
		if err := m.classifyMiss(ctx, id, expectedVersion); !errors.Is(err, domain.ErrInsufficientStock) {
			return 0, err
		}
		return 0, domain.ErrVersionConflict
	}

	return expectedVersion + 1, nil
}

func (m *MySQLStockStore) classifyMiss(ctx context.Context, id string, expectedVersion int) error {
	var version int
	err := m.db.QueryRowContext(ctx, `SELECT version FROM products WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("classify update miss: %w", err)
	}
	if version != expectedVersion {
		return domain.ErrVersionConflict
	}
	return domain.ErrInsufficientStock
}
