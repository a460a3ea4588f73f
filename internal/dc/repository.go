package dc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edusales-crm/edusales-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for delivery challans.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const dcColumns = `id, code, order_id, sale_id, employee_id, admin_id, manager_id, warehouse_id,
	customer_name, customer_phone, customer_email, customer_address,
	product, requested_quantity, available_quantity, deliverable_quantity, status,
	po_submitted_at, po_submitted_by, admin_reviewed_at, admin_reviewed_by,
	sent_to_manager_at, manager_requested_at, manager_requested_by,
	warehouse_processed_at, warehouse_processed_by,
	delivery_submitted_at, delivery_submitted_by, completed_at, completed_by,
	listed_at, delivered_at,
	po_photo_url, po_document, delivery_proof, delivery_notes, hold_reason,
	created_by, created_at, updated_at`

func scanDC(row pgx.Row) (DC, error) {
	var d DC
	var orderID, saleID *int64
	err := row.Scan(
		&d.ID, &d.Code, &orderID, &saleID, &d.EmployeeID, &d.AdminID, &d.ManagerID, &d.WarehouseID,
		&d.CustomerName, &d.CustomerPhone, &d.CustomerEmail, &d.CustomerAddress,
		&d.Product, &d.RequestedQuantity, &d.AvailableQuantity, &d.DeliverableQuantity, &d.Status,
		&d.POSubmittedAt, &d.POSubmittedBy, &d.AdminReviewedAt, &d.AdminReviewedBy,
		&d.SentToManagerAt, &d.ManagerRequestedAt, &d.ManagerRequestedBy,
		&d.WarehouseProcessedAt, &d.WarehouseProcessedBy,
		&d.DeliverySubmittedAt, &d.DeliverySubmittedBy, &d.CompletedAt, &d.CompletedBy,
		&d.ListedAt, &d.DeliveredAt,
		&d.POPhotoURL, &d.PODocument, &d.DeliveryProof, &d.DeliveryNotes, &d.HoldReason,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return DC{}, err
	}
	switch {
	case orderID != nil:
		d.Origin = DealOrigin(*orderID)
	case saleID != nil:
		d.Origin = SaleOrigin(*saleID)
	}
	return d, nil
}

func originColumns(o Origin) (orderID, saleID *int64) {
	switch o.Kind {
	case OriginDeal:
		orderID = &o.OrderID
	case OriginSale:
		saleID = &o.SaleID
	}
	return orderID, saleID
}

// Create inserts a challan and its product lines, returning the new id.
func (r *Repository) Create(ctx context.Context, d DC) (int64, error) {
	orderID, saleID := originColumns(d.Origin)
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO dcs (code, order_id, sale_id, employee_id,
			customer_name, customer_phone, customer_email, customer_address,
			product, requested_quantity, available_quantity, deliverable_quantity, status,
			po_photo_url, po_document, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING id
	`, d.Code, orderID, saleID, d.EmployeeID,
		d.CustomerName, d.CustomerPhone, d.CustomerEmail, d.CustomerAddress,
		d.Product, d.RequestedQuantity, d.AvailableQuantity, d.DeliverableQuantity, d.Status,
		d.POPhotoURL, d.PODocument, d.CreatedBy).Scan(&id)
	if err != nil {
		return 0, err
	}
	if len(d.Lines) > 0 {
		if err := r.ReplaceLines(ctx, id, d.Lines); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Get retrieves one challan with its product lines.
func (r *Repository) Get(ctx context.Context, id int64) (DC, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dcColumns+` FROM dcs WHERE id = $1`, id)
	d, err := scanDC(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DC{}, shared.ErrNotFound
	}
	if err != nil {
		return DC{}, err
	}
	d.Lines, err = r.listLines(ctx, id)
	return d, err
}

// GetByOrderID finds the challan raised from an order, if any.
func (r *Repository) GetByOrderID(ctx context.Context, orderID int64) (DC, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dcColumns+` FROM dcs WHERE order_id = $1 ORDER BY id LIMIT 1`, orderID)
	d, err := scanDC(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return DC{}, shared.ErrNotFound
	}
	if err != nil {
		return DC{}, err
	}
	d.Lines, err = r.listLines(ctx, d.ID)
	return d, err
}

// List returns challans newest-first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status *Status, limit, offset int) ([]DC, error) {
	query := `SELECT ` + dcColumns + ` FROM dcs`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DC
	for rows.Next() {
		d, err := scanDC(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountByStatus counts challans in one status.
func (r *Repository) CountByStatus(ctx context.Context, status Status) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dcs WHERE status = $1`, status).Scan(&n)
	return n, err
}

// Update applies a dynamic set of column updates without touching status.
func (r *Repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
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
	query := fmt.Sprintf(`UPDATE dcs SET %s WHERE id = $1`, strings.Join(setClauses, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateStatus performs a compare-and-swap transition: the write only
// lands when the current status is one of the allowed starting points.
// Zero affected rows means either the challan is gone or another request
// moved it first; the caller gets a StatusConflictError carrying what the
// status is now.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, allowed []Status, to Status, updates map[string]interface{}) error {
	expected := make([]string, len(allowed))
	for i, s := range allowed {
		expected[i] = string(s)
	}
	setClauses := []string{"status = $2", "updated_at = NOW()"}
	args := []any{id, to, expected}
	i := 4
	for col, val := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	query := fmt.Sprintf(`UPDATE dcs SET %s WHERE id = $1 AND status = ANY($3)`, strings.Join(setClauses, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current Status
	err = r.pool.QueryRow(ctx, `SELECT status FROM dcs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &StatusConflictError{Current: current}
}

// ReplaceLines swaps the product lines of a challan.
func (r *Repository) ReplaceLines(ctx context.Context, dcID int64, lines []ProductLine) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM dc_product_lines WHERE dc_id = $1`, dcID); err != nil {
		return err
	}
	for _, l := range lines {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO dc_product_lines (dc_id, product, category, class, level, quantity, strength, price, total,
				available_quantity, deliverable_quantity, remaining_quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, dcID, l.Product, l.Category, l.Class, l.Level, l.Quantity, l.Strength, l.Price, l.Total,
			l.AvailableQuantity, l.DeliverableQuantity, l.RemainingQuantity)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateLine stores warehouse-captured quantities on one product line.
// The write is scoped to the owning challan so a line id from another
// challan can never be mutated through it.
func (r *Repository) UpdateLine(ctx context.Context, dcID, lineID int64, available, deliverable int, remaining *int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dc_product_lines
		SET available_quantity = $3, deliverable_quantity = $4, remaining_quantity = $5
		WHERE id = $1 AND dc_id = $2
	`, lineID, dcID, available, deliverable, remaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *Repository) listLines(ctx context.Context, dcID int64) ([]ProductLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, dc_id, product, category, class, level, quantity, strength, price, total,
			available_quantity, deliverable_quantity, remaining_quantity
		FROM dc_product_lines
		WHERE dc_id = $1
		ORDER BY id
	`, dcID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ProductLine
	for rows.Next() {
		var l ProductLine
		if err := rows.Scan(&l.ID, &l.DCID, &l.Product, &l.Category, &l.Class, &l.Level, &l.Quantity, &l.Strength,
			&l.Price, &l.Total, &l.AvailableQuantity, &l.DeliverableQuantity, &l.RemainingQuantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetDetail resolves linked employee, deal and sale names for display.
func (r *Repository) GetDetail(ctx context.Context, id int64) (Detail, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{DC: d}
	err = r.pool.QueryRow(ctx, `
		SELECT u.name, o.school_name, s.customer_name
		FROM dcs d
		LEFT JOIN users u ON u.id = d.employee_id
		LEFT JOIN dc_orders o ON o.id = d.order_id
		LEFT JOIN sales s ON s.id = d.sale_id
		WHERE d.id = $1
	`, id).Scan(&detail.EmployeeName, &detail.SchoolName, &detail.SaleCustomer)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, err
	}
	return detail, nil
}
