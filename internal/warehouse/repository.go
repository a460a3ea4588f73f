package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edusales-crm/edusales-crm/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for warehouse stock.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. Item rows are
// locked via FOR UPDATE inside, so writers are serialised per product.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const itemColumns = `id, product_name, product_code, category, level, current_stock, min_stock, unit_price, unit, status, created_by, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.ProductName, &it.ProductCode, &it.Category, &it.Level, &it.CurrentStock, &it.MinStock, &it.UnitPrice, &it.Unit, &it.Status, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// GetItem retrieves one item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM warehouse_items WHERE id = $1`, id)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

// ListItems returns all items ordered by product name.
func (r *Repository) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM warehouse_items ORDER BY product_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// CreateItem inserts an item and returns its id.
func (r *Repository) CreateItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO warehouse_items (product_name, product_code, category, level, current_stock, min_stock, unit_price, unit, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id
	`, item.ProductName, item.ProductCode, item.Category, item.Level, item.CurrentStock, item.MinStock, item.UnitPrice, item.Unit, item.Status, item.CreatedBy).Scan(&id)
	return id, err
}

// UpdateItem rewrites item master data.
func (r *Repository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE warehouse_items
		SET product_name = $2, product_code = $3, category = $4, level = $5,
		    min_stock = $6, unit_price = $7, unit = $8, status = $9, updated_at = NOW()
		WHERE id = $1
	`, item.ID, item.ProductName, item.ProductCode, item.Category, item.Level, item.MinStock, item.UnitPrice, item.Unit, item.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// ListMovements returns ledger entries, newest first.
func (r *Repository) ListMovements(ctx context.Context, itemID *int64, limit int) ([]Movement, error) {
	query := `SELECT id, code, item_id, type, quantity, reason, related_sale_id, created_by, created_at
		FROM stock_movements`
	args := []any{limit}
	if itemID != nil {
		query += ` WHERE item_id = $2`
		args = append(args, *itemID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.Code, &mv.ItemID, &mv.Type, &mv.Quantity, &mv.Reason, &mv.RelatedSaleID, &mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

// RefreshItemStatuses recomputes the derived status for every item in one
// statement, returning the number of rows that changed.
func (r *Repository) RefreshItemStatuses(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE warehouse_items
		SET status = CASE
			WHEN current_stock <= 0 THEN 'Out of Stock'
			WHEN current_stock <= min_stock THEN 'Low Stock'
			ELSE 'In Stock'
		END,
		updated_at = NOW()
		WHERE status <> CASE
			WHEN current_stock <= 0 THEN 'Out of Stock'
			WHEN current_stock <= min_stock THEN 'Low Stock'
			ELSE 'In Stock'
		END
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ============================================================================
// TRANSACTIONAL OPERATIONS
// ============================================================================

// GetItemForUpdate locks and returns one item row.
func (t *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM warehouse_items WHERE id = $1 FOR UPDATE`, id)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

// FindItemForUpdate locks and returns the first item matching the given
// name plus optional category/level, matched case-insensitively.
func (t *txRepo) FindItemForUpdate(ctx context.Context, name string, category, level *string) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM warehouse_items WHERE LOWER(product_name) = LOWER($1)`
	args := []any{name}
	if category != nil {
		args = append(args, *category)
		query += ` AND LOWER(COALESCE(category, '')) = LOWER($2)`
	}
	if level != nil {
		args = append(args, *level)
		query += ` AND LOWER(COALESCE(level, '')) = LOWER($3)`
	}
	query += ` ORDER BY id LIMIT 1 FOR UPDATE`
	row := t.tx.QueryRow(ctx, query, args...)
	it, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

// UpdateItemStock writes the new quantity and derived status.
func (t *txRepo) UpdateItemStock(ctx context.Context, id int64, currentStock int, status ItemStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE warehouse_items SET current_stock = $2, status = $3, updated_at = NOW() WHERE id = $1`, id, currentStock, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertMovement appends a ledger entry.
func (t *txRepo) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_movements (code, item_id, type, quantity, reason, related_sale_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id
	`, mv.Code, mv.ItemID, mv.Type, mv.Quantity, mv.Reason, mv.RelatedSaleID, mv.CreatedBy).Scan(&id)
	return id, err
}
