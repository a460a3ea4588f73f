package sales

import (
	"errors"
	"time"
)

// SaleStatus tracks the commercial state of a sale.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "Pending"
	SaleStatusConfirmed  SaleStatus = "Confirmed"
	SaleStatusInProgress SaleStatus = "In Progress"
	SaleStatusClosed     SaleStatus = "Closed"
	SaleStatusCompleted  SaleStatus = "Completed"
	SaleStatusCancelled  SaleStatus = "Cancelled"
)

// IsValid checks if the status is known.
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusPending, SaleStatusConfirmed, SaleStatusInProgress, SaleStatusClosed, SaleStatusCompleted, SaleStatusCancelled:
		return true
	default:
		return false
	}
}

// Sale is a commercial record a delivery challan may be raised against.
type Sale struct {
	ID            int64      `json:"id" db:"id"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerEmail *string    `json:"customer_email,omitempty" db:"customer_email"`
	CustomerPhone string     `json:"customer_phone" db:"customer_phone"`
	Product       string     `json:"product" db:"product"`
	Quantity      int        `json:"quantity" db:"quantity"`
	UnitPrice     float64    `json:"unit_price" db:"unit_price"`
	TotalAmount   float64    `json:"total_amount" db:"total_amount"`
	Status        SaleStatus `json:"status" db:"status"`
	AssignedTo    int64      `json:"assigned_to" db:"assigned_to"`
	Notes         *string    `json:"notes,omitempty" db:"notes"`
	PODocument    *string    `json:"po_document,omitempty" db:"po_document"`
	POSubmittedAt *time.Time `json:"po_submitted_at,omitempty" db:"po_submitted_at"`
	POSubmittedBy *int64     `json:"po_submitted_by,omitempty" db:"po_submitted_by"`
	DCID          *int64     `json:"dc_id,omitempty" db:"dc_id"`
	CreatedBy     int64      `json:"created_by" db:"created_by"`
	SaleDate      time.Time  `json:"sale_date" db:"sale_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ErrSaleNotFound indicates an unknown sale id.
var ErrSaleNotFound = errors.New("sale not found")

// CreateSaleRequest creates a sale record.
type CreateSaleRequest struct {
	CustomerName  string  `json:"customer_name" validate:"required,max=200"`
	CustomerEmail *string `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerPhone string  `json:"customer_phone" validate:"required,max=20"`
	Product       string  `json:"product" validate:"required,max=200"`
	Quantity      int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice     float64 `json:"unit_price" validate:"required,gte=0"`
	AssignedTo    int64   `json:"assigned_to" validate:"required,gt=0"`
	Notes         *string `json:"notes,omitempty"`
}
