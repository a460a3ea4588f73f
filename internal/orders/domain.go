package orders

import (
	"errors"
	"time"
)

// OrderStatus is the coarse commercial status of a deal. It tracks
// commercial closure and is allowed to drift from the fulfillment status
// of a linked delivery challan.
type OrderStatus string

const (
	OrderStatusSaved     OrderStatus = "saved"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusHold      OrderStatus = "hold"
)

// IsValid checks if the status is known.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusSaved, OrderStatusPending, OrderStatusInTransit, OrderStatusCompleted, OrderStatusHold:
		return true
	default:
		return false
	}
}

// Priority grades how hot a deal is.
type Priority string

const (
	PriorityHot  Priority = "Hot"
	PriorityWarm Priority = "Warm"
	PriorityCold Priority = "Cold"
)

// IsValid checks if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHot, PriorityWarm, PriorityCold:
		return true
	default:
		return false
	}
}

// ProductLine is one product row on a deal.
type ProductLine struct {
	Product  string  `json:"product"`
	Category string  `json:"category,omitempty"`
	Class    string  `json:"class,omitempty"`
	Level    string  `json:"level,omitempty"`
	Quantity int     `json:"quantity"`
	Strength int     `json:"strength,omitempty"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

// Order represents a commercial deal a delivery challan is raised from.
type Order struct {
	ID           int64         `json:"id" db:"id"`
	SchoolName   string        `json:"school_name" db:"school_name"`
	ContactName  string        `json:"contact_name" db:"contact_name"`
	Phone        string        `json:"phone" db:"phone"`
	Email        *string       `json:"email,omitempty" db:"email"`
	Address      *string       `json:"address,omitempty" db:"address"`
	Zone         *string       `json:"zone,omitempty" db:"zone"`
	Location     *string       `json:"location,omitempty" db:"location"`
	Products     []ProductLine `json:"products" db:"-"`
	TotalAmount  float64       `json:"total_amount" db:"total_amount"`
	Priority     *Priority     `json:"priority,omitempty" db:"priority"`
	Status       OrderStatus   `json:"status" db:"status"`
	AssignedTo   *int64        `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedBy    int64         `json:"created_by" db:"created_by"`
	FollowUpDate *time.Time    `json:"follow_up_date,omitempty" db:"follow_up_date"`
	Remarks      *string       `json:"remarks,omitempty" db:"remarks"`
	PodProofURL  *string       `json:"pod_proof_url,omitempty" db:"pod_proof_url"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// HistoryEntry is one append-only record of a tracked deal edit. It
// carries the new values, never the previous ones.
type HistoryEntry struct {
	ID           int64      `json:"id" db:"id"`
	OrderID      int64      `json:"order_id" db:"order_id"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty" db:"follow_up_date"`
	Remarks      *string    `json:"remarks,omitempty" db:"remarks"`
	Priority     *Priority  `json:"priority,omitempty" db:"priority"`
	UpdatedBy    int64      `json:"updated_by" db:"updated_by"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// ErrOrderNotFound indicates an unknown order id.
var ErrOrderNotFound = errors.New("order not found")

// ============================================================================
// REQUEST DTOs
// ============================================================================

// CreateOrderRequest creates a deal.
type CreateOrderRequest struct {
	SchoolName   string        `json:"school_name" validate:"required,max=200"`
	ContactName  string        `json:"contact_name" validate:"required,max=200"`
	Phone        string        `json:"phone" validate:"required,max=20"`
	Email        *string       `json:"email,omitempty" validate:"omitempty,email"`
	Address      *string       `json:"address,omitempty"`
	Zone         *string       `json:"zone,omitempty"`
	Location     *string       `json:"location,omitempty"`
	Products     []ProductLine `json:"products" validate:"omitempty,dive"`
	Priority     *Priority     `json:"priority,omitempty"`
	AssignedTo   *int64        `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
	FollowUpDate *time.Time    `json:"follow_up_date,omitempty"`
	Remarks      *string       `json:"remarks,omitempty"`
}

// UpdateOrderRequest updates a deal. Follow-up date, remarks and priority
// are tracked fields: touching any of them appends a history entry.
type UpdateOrderRequest struct {
	SchoolName   *string      `json:"school_name,omitempty" validate:"omitempty,max=200"`
	ContactName  *string      `json:"contact_name,omitempty" validate:"omitempty,max=200"`
	Phone        *string      `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email        *string      `json:"email,omitempty" validate:"omitempty,email"`
	Address      *string      `json:"address,omitempty"`
	Zone         *string      `json:"zone,omitempty"`
	Location     *string      `json:"location,omitempty"`
	Status       *OrderStatus `json:"status,omitempty"`
	AssignedTo   *int64       `json:"assigned_to,omitempty" validate:"omitempty,gt=0"`
	FollowUpDate *time.Time   `json:"follow_up_date,omitempty"`
	Remarks      *string      `json:"remarks,omitempty"`
	Priority     *Priority    `json:"priority,omitempty"`
	PodProofURL  *string      `json:"pod_proof_url,omitempty"`
}

// TouchesTrackedFields reports whether the update carries any of the
// history-tracked fields.
func (r UpdateOrderRequest) TouchesTrackedFields() bool {
	return r.FollowUpDate != nil || r.Remarks != nil || r.Priority != nil
}
