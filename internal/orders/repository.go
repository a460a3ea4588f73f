package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for deals.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, school_name, contact_name, phone, email, address, zone, location, products, total_amount, priority, status, assigned_to, created_by, follow_up_date, remarks, pod_proof_url, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var products []byte
	err := row.Scan(&o.ID, &o.SchoolName, &o.ContactName, &o.Phone, &o.Email, &o.Address, &o.Zone, &o.Location, &products, &o.TotalAmount, &o.Priority, &o.Status, &o.AssignedTo, &o.CreatedBy, &o.FollowUpDate, &o.Remarks, &o.PodProofURL, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &o.Products); err != nil {
			return Order{}, fmt.Errorf("orders: decode products: %w", err)
		}
	}
	return o, nil
}

// GetOrder retrieves one order by id.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM dc_orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

// ListOrders returns orders, newest first.
func (r *Repository) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM dc_orders ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrder inserts an order and returns its id.
func (r *Repository) CreateOrder(ctx context.Context, o Order) (int64, error) {
	products, err := json.Marshal(o.Products)
	if err != nil {
		return 0, fmt.Errorf("orders: encode products: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx, `
		INSERT INTO dc_orders (school_name, contact_name, phone, email, address, zone, location, products, total_amount, priority, status, assigned_to, created_by, follow_up_date, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING id
	`, o.SchoolName, o.ContactName, o.Phone, o.Email, o.Address, o.Zone, o.Location, products, o.TotalAmount, o.Priority, o.Status, o.AssignedTo, o.CreatedBy, o.FollowUpDate, o.Remarks).Scan(&id)
	return id, err
}

// UpdateOrder applies a dynamic set of column updates.
func (r *Repository) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
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
	query := fmt.Sprintf(`UPDATE dc_orders SET %s WHERE id = $1`, strings.Join(setClauses, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListDueFollowUps returns open deals whose follow-up date has arrived,
// oldest first.
func (r *Repository) ListDueFollowUps(ctx context.Context, due time.Time) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM dc_orders
		WHERE follow_up_date IS NOT NULL
		  AND follow_up_date <= $1
		  AND status NOT IN ('completed', 'hold')
		ORDER BY follow_up_date, id
	`, due)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// AppendHistory inserts one history entry. Entries are never updated or
// deleted afterwards.
func (r *Repository) AppendHistory(ctx context.Context, entry HistoryEntry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO dc_order_history (order_id, follow_up_date, remarks, priority, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id
	`, entry.OrderID, entry.FollowUpDate, entry.Remarks, entry.Priority, entry.UpdatedBy, nullableTime(entry)).Scan(&id)
	return id, err
}

func nullableTime(entry HistoryEntry) any {
	if entry.UpdatedAt.IsZero() {
		return nil
	}
	return entry.UpdatedAt
}

// ListHistory returns history entries for an order, newest first.
func (r *Repository) ListHistory(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, follow_up_date, remarks, priority, updated_by, updated_at
		FROM dc_order_history
		WHERE order_id = $1
		ORDER BY updated_at DESC, id DESC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.FollowUpDate, &e.Remarks, &e.Priority, &e.UpdatedBy, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
