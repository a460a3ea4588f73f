package warehouse

import (
	"errors"
	"time"
)

// ItemStatus is derived from current stock versus the minimum threshold.
type ItemStatus string

const (
	StatusInStock    ItemStatus = "In Stock"
	StatusLowStock   ItemStatus = "Low Stock"
	StatusOutOfStock ItemStatus = "Out of Stock"
)

// StatusFor recomputes the derived item status. It is applied on every
// stock write so the stored status never drifts from the quantity.
func StatusFor(currentStock, minStock int) ItemStatus {
	switch {
	case currentStock <= 0:
		return StatusOutOfStock
	case currentStock <= minStock:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// Item represents a stocked product.
type Item struct {
	ID           int64      `json:"id" db:"id"`
	ProductName  string     `json:"product_name" db:"product_name"`
	ProductCode  *string    `json:"product_code,omitempty" db:"product_code"`
	Category     *string    `json:"category,omitempty" db:"category"`
	Level        *string    `json:"level,omitempty" db:"level"`
	CurrentStock int        `json:"current_stock" db:"current_stock"`
	MinStock     int        `json:"min_stock" db:"min_stock"`
	UnitPrice    float64    `json:"unit_price" db:"unit_price"`
	Unit         string     `json:"unit" db:"unit"`
	Status       ItemStatus `json:"status" db:"status"`
	CreatedBy    int64      `json:"created_by" db:"created_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "In"
	MovementOut        MovementType = "Out"
	MovementReturn     MovementType = "Return"
	MovementAdjustment MovementType = "Adjustment"
)

// IsValid checks the movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementReturn, MovementAdjustment:
		return true
	default:
		return false
	}
}

// Movement is an append-only ledger entry for a single stock change.
type Movement struct {
	ID            int64        `json:"id" db:"id"`
	Code          string       `json:"code" db:"code"`
	ItemID        int64        `json:"item_id" db:"item_id"`
	Type          MovementType `json:"type" db:"type"`
	Quantity      int          `json:"quantity" db:"quantity"`
	Reason        string       `json:"reason" db:"reason"`
	RelatedSaleID *int64       `json:"related_sale_id,omitempty" db:"related_sale_id"`
	CreatedBy     int64        `json:"created_by" db:"created_by"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// Common errors.
var (
	ErrItemNotFound      = errors.New("warehouse item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidMovement   = errors.New("invalid movement type")
)

// ============================================================================
// REQUEST DTOs
// ============================================================================

// CreateItemRequest creates a warehouse item.
type CreateItemRequest struct {
	ProductName  string  `json:"product_name" validate:"required,max=200"`
	ProductCode  *string `json:"product_code,omitempty" validate:"omitempty,max=50"`
	Category     *string `json:"category,omitempty" validate:"omitempty,max=100"`
	Level        *string `json:"level,omitempty" validate:"omitempty,max=50"`
	CurrentStock int     `json:"current_stock" validate:"gte=0"`
	MinStock     int     `json:"min_stock" validate:"gte=0"`
	UnitPrice    float64 `json:"unit_price" validate:"gte=0"`
	Unit         string  `json:"unit" validate:"omitempty,max=20"`
}

// UpdateItemRequest updates item master data.
type UpdateItemRequest struct {
	ProductName *string  `json:"product_name,omitempty" validate:"omitempty,max=200"`
	ProductCode *string  `json:"product_code,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Level       *string  `json:"level,omitempty"`
	MinStock    *int     `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	UnitPrice   *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	Unit        *string  `json:"unit,omitempty"`
}

// StockUpdateRequest posts a manual stock movement against an item.
type StockUpdateRequest struct {
	Type     MovementType `json:"type" validate:"required"`
	Quantity int          `json:"quantity" validate:"required,gte=0"`
	Reason   string       `json:"reason" validate:"required,max=500"`
}

// ============================================================================
// DELIVERY DEDUCTION
// ============================================================================

// DeductionLine is one product line from a delivery challan.
type DeductionLine struct {
	Product             string
	Category            string
	Level               string
	Quantity            int
	AvailableQuantity   int
	DeliverableQuantity int
	RemainingQuantity   *int
}

// DeductionInput carries everything needed to deduct stock for a delivery.
type DeductionInput struct {
	DCID          int64
	DCCode        string
	CustomerName  string
	ActorID       int64
	RelatedSaleID *int64
	Lines         []DeductionLine
}

// DeductionResult reports what the deduction pass applied and skipped.
type DeductionResult struct {
	LinesDeducted int
	Warnings      []string
}
