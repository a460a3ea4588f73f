package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for sales.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, customer_name, customer_email, customer_phone, product, quantity, unit_price, total_amount, status, assigned_to, notes, po_document, po_submitted_at, po_submitted_by, dc_id, created_by, sale_date, created_at, updated_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.CustomerName, &s.CustomerEmail, &s.CustomerPhone, &s.Product, &s.Quantity, &s.UnitPrice, &s.TotalAmount, &s.Status, &s.AssignedTo, &s.Notes, &s.PODocument, &s.POSubmittedAt, &s.POSubmittedBy, &s.DCID, &s.CreatedBy, &s.SaleDate, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// GetSale retrieves one sale by id.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	s, err := scanSale(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return s, err
}

// ListSales returns sales, newest first.
func (r *Repository) ListSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// CreateSale inserts a sale and returns its id.
func (r *Repository) CreateSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sales (customer_name, customer_email, customer_phone, product, quantity, unit_price, total_amount, status, assigned_to, notes, created_by, sale_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), NOW())
		RETURNING id
	`, s.CustomerName, s.CustomerEmail, s.CustomerPhone, s.Product, s.Quantity, s.UnitPrice, s.TotalAmount, s.Status, s.AssignedTo, s.Notes, s.CreatedBy).Scan(&id)
	return id, err
}

// UpdateSale applies a dynamic set of column updates.
func (r *Repository) UpdateSale(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := []any{id}
	i := 2
	for col, val := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE sales SET %s WHERE id = $1`, strings.Join(setClauses, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}
