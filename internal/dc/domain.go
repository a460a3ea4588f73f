// Package dc implements the delivery challan workflow engine. A challan
// moves through an approval chain where each step is owned by a different
// role: the employee submits the purchase order, an admin reviews it, a
// manager requests quantities and the warehouse processes the delivery.
package dc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status is the workflow position of a delivery challan.
type Status string

const (
	StatusCreated             Status = "created"
	StatusPOSubmitted         Status = "po_submitted"
	StatusSentToManager       Status = "sent_to_manager"
	StatusPendingDC           Status = "pending_dc"
	StatusWarehouseProcessing Status = "warehouse_processing"
	StatusCompleted           Status = "completed"
	StatusHold                Status = "hold"
)

// AllStatuses lists every workflow status, in lifecycle order.
var AllStatuses = []Status{
	StatusCreated,
	StatusPOSubmitted,
	StatusSentToManager,
	StatusPendingDC,
	StatusWarehouseProcessing,
	StatusCompleted,
	StatusHold,
}

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Operation names a workflow transition.
type Operation string

const (
	OpSubmitPO         Operation = "submit_po"
	OpApprovePO        Operation = "approve_po"
	OpRejectPO         Operation = "reject_po"
	OpRequestWarehouse Operation = "request_warehouse"
	OpProcessWarehouse Operation = "process_warehouse"
	OpHold             Operation = "hold"
	OpCompleteDelivery Operation = "complete_delivery"
)

type transitionRule struct {
	from []Status
	to   Status
}

// transitions is the single source of truth for legal status moves.
// Every service operation resolves its target status here; nothing else
// in the package compares statuses to decide a transition.
var transitions = map[Operation]transitionRule{
	OpSubmitPO:         {from: []Status{StatusCreated}, to: StatusPOSubmitted},
	OpApprovePO:        {from: []Status{StatusPOSubmitted}, to: StatusSentToManager},
	OpRejectPO:         {from: []Status{StatusPOSubmitted}, to: StatusCreated},
	OpRequestWarehouse: {from: []Status{StatusSentToManager}, to: StatusPendingDC},
	OpProcessWarehouse: {from: []Status{StatusPendingDC, StatusWarehouseProcessing}, to: StatusCompleted},
	OpHold:             {from: []Status{StatusPendingDC, StatusWarehouseProcessing}, to: StatusHold},
	OpCompleteDelivery: {from: []Status{StatusWarehouseProcessing, StatusCompleted}, to: StatusCompleted},
}

// AllowedFrom returns the statuses an operation may start from.
func AllowedFrom(op Operation) []Status {
	rule, ok := transitions[op]
	if !ok {
		return nil
	}
	out := make([]Status, len(rule.from))
	copy(out, rule.from)
	return out
}

// Transition resolves the target status for an operation, rejecting it
// when the current status is not a legal starting point.
func Transition(op Operation, current Status) (Status, error) {
	rule, ok := transitions[op]
	if !ok {
		return "", fmt.Errorf("dc: unknown operation %q", op)
	}
	for _, from := range rule.from {
		if current == from {
			return rule.to, nil
		}
	}
	return "", &PreconditionError{Op: op, Required: rule.from, Current: current}
}

// PreconditionError reports a transition attempted from the wrong status.
type PreconditionError struct {
	Op       Operation
	Required []Status
	Current  Status
}

func (e *PreconditionError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("dc must be in '%s' status, got: %s", strings.Join(required, "' or '"), e.Current)
}

// HTTPStatus maps precondition failures to 409.
func (e *PreconditionError) HTTPStatus() int { return http.StatusConflict }

// StatusConflictError is returned by the repository when a conditional
// status update matched the row by id but not by expected status.
type StatusConflictError struct {
	Current Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("dc status changed concurrently, now: %s", e.Current)
}

// Common errors.
var (
	ErrOriginRequired     = errors.New("dc must reference an order or a sale")
	ErrNoEmployee         = errors.New("no employee to assign: pass employee_id or assign the order first")
	ErrProofRequired      = errors.New("purchase order proof url required")
	ErrQuantityRequired   = errors.New("requested quantity must be greater than zero")
	ErrNegativeQuantity   = errors.New("deliverable quantity must not be negative")
	ErrDeliveryNotPending = errors.New("delivery has not been submitted yet")
	ErrLineNotFound       = errors.New("product line does not belong to this challan")
	ErrNotOwner           = errors.New("only the assigned employee may submit the purchase order")
)

// OriginKind tags where a challan was raised from.
type OriginKind string

const (
	OriginDeal OriginKind = "deal"
	OriginSale OriginKind = "sale"
)

// Origin is the commercial record a challan was raised from. Exactly one
// of OrderID or SaleID is set, fixed at creation.
type Origin struct {
	Kind    OriginKind `json:"kind"`
	OrderID int64      `json:"order_id,omitempty"`
	SaleID  int64      `json:"sale_id,omitempty"`
}

// DealOrigin builds an order-backed origin.
func DealOrigin(orderID int64) Origin {
	return Origin{Kind: OriginDeal, OrderID: orderID}
}

// SaleOrigin builds a sale-backed origin.
func SaleOrigin(saleID int64) Origin {
	return Origin{Kind: OriginSale, SaleID: saleID}
}

// Valid reports whether exactly one origin link is set.
func (o Origin) Valid() bool {
	switch o.Kind {
	case OriginDeal:
		return o.OrderID > 0 && o.SaleID == 0
	case OriginSale:
		return o.SaleID > 0 && o.OrderID == 0
	default:
		return false
	}
}

// ProductLine is one product row on a challan, the operand of the stock
// deduction pass. Available/deliverable/remaining are captured at
// warehouse processing time.
type ProductLine struct {
	ID                  int64   `json:"id" db:"id"`
	DCID                int64   `json:"dc_id" db:"dc_id"`
	Product             string  `json:"product" db:"product"`
	Category            string  `json:"category,omitempty" db:"category"`
	Class               string  `json:"class,omitempty" db:"class"`
	Level               string  `json:"level,omitempty" db:"level"`
	Quantity            int     `json:"quantity" db:"quantity"`
	Strength            int     `json:"strength,omitempty" db:"strength"`
	Price               float64 `json:"price" db:"price"`
	Total               float64 `json:"total" db:"total"`
	AvailableQuantity   int     `json:"available_quantity" db:"available_quantity"`
	DeliverableQuantity int     `json:"deliverable_quantity" db:"deliverable_quantity"`
	RemainingQuantity   *int    `json:"remaining_quantity,omitempty" db:"remaining_quantity"`
}

// DC is a delivery challan. Transition timestamps and actor ids form the
// audit trail as discrete columns; the row is never hard-deleted.
type DC struct {
	ID     int64  `json:"id" db:"id"`
	Code   string `json:"code" db:"code"`
	Origin Origin `json:"origin"`

	EmployeeID  int64  `json:"employee_id" db:"employee_id"`
	AdminID     *int64 `json:"admin_id,omitempty" db:"admin_id"`
	ManagerID   *int64 `json:"manager_id,omitempty" db:"manager_id"`
	WarehouseID *int64 `json:"warehouse_id,omitempty" db:"warehouse_id"`

	CustomerName    string  `json:"customer_name" db:"customer_name"`
	CustomerPhone   *string `json:"customer_phone,omitempty" db:"customer_phone"`
	CustomerEmail   *string `json:"customer_email,omitempty" db:"customer_email"`
	CustomerAddress *string `json:"customer_address,omitempty" db:"customer_address"`

	Product             string        `json:"product" db:"product"`
	RequestedQuantity   int           `json:"requested_quantity" db:"requested_quantity"`
	AvailableQuantity   int           `json:"available_quantity" db:"available_quantity"`
	DeliverableQuantity int           `json:"deliverable_quantity" db:"deliverable_quantity"`
	Lines               []ProductLine `json:"lines,omitempty" db:"-"`

	Status Status `json:"status" db:"status"`

	POSubmittedAt        *time.Time `json:"po_submitted_at,omitempty" db:"po_submitted_at"`
	POSubmittedBy        *int64     `json:"po_submitted_by,omitempty" db:"po_submitted_by"`
	AdminReviewedAt      *time.Time `json:"admin_reviewed_at,omitempty" db:"admin_reviewed_at"`
	AdminReviewedBy      *int64     `json:"admin_reviewed_by,omitempty" db:"admin_reviewed_by"`
	SentToManagerAt      *time.Time `json:"sent_to_manager_at,omitempty" db:"sent_to_manager_at"`
	ManagerRequestedAt   *time.Time `json:"manager_requested_at,omitempty" db:"manager_requested_at"`
	ManagerRequestedBy   *int64     `json:"manager_requested_by,omitempty" db:"manager_requested_by"`
	WarehouseProcessedAt *time.Time `json:"warehouse_processed_at,omitempty" db:"warehouse_processed_at"`
	WarehouseProcessedBy *int64     `json:"warehouse_processed_by,omitempty" db:"warehouse_processed_by"`
	DeliverySubmittedAt  *time.Time `json:"delivery_submitted_at,omitempty" db:"delivery_submitted_at"`
	DeliverySubmittedBy  *int64     `json:"delivery_submitted_by,omitempty" db:"delivery_submitted_by"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy          *int64     `json:"completed_by,omitempty" db:"completed_by"`
	ListedAt             *time.Time `json:"listed_at,omitempty" db:"listed_at"`
	DeliveredAt          *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`

	POPhotoURL    *string `json:"po_photo_url,omitempty" db:"po_photo_url"`
	PODocument    *string `json:"po_document,omitempty" db:"po_document"`
	DeliveryProof *string `json:"delivery_proof,omitempty" db:"delivery_proof"`
	DeliveryNotes *string `json:"delivery_notes,omitempty" db:"delivery_notes"`
	HoldReason    *string `json:"hold_reason,omitempty" db:"hold_reason"`

	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Detail is a challan with its linked names resolved for display.
type Detail struct {
	DC
	EmployeeName *string `json:"employee_name,omitempty"`
	SchoolName   *string `json:"school_name,omitempty"`
	SaleCustomer *string `json:"sale_customer,omitempty"`
}

// Result pairs the challan after a transition with the warnings its
// secondary effects produced. The primary transition commits regardless
// of the warnings.
type Result struct {
	DC       DC       `json:"dc"`
	Warnings []string `json:"warnings,omitempty"`
}

// Stats holds per-status challan counts.
type Stats struct {
	Counts map[Status]int64 `json:"counts"`
	Total  int64            `json:"total"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ProductLineInput is a product row supplied at raise time.
type ProductLineInput struct {
	Product  string  `json:"product" validate:"required,max=200"`
	Category string  `json:"category,omitempty" validate:"max=100"`
	Class    string  `json:"class,omitempty" validate:"max=50"`
	Level    string  `json:"level,omitempty" validate:"max=50"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	Strength int     `json:"strength,omitempty" validate:"gte=0"`
	Price    float64 `json:"price" validate:"gte=0"`
	Total    float64 `json:"total" validate:"gte=0"`
}

// RaiseRequest creates a challan from an order or a sale.
type RaiseRequest struct {
	OrderID    *int64             `json:"order_id,omitempty" validate:"omitempty,gt=0"`
	SaleID     *int64             `json:"sale_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID *int64             `json:"employee_id,omitempty" validate:"omitempty,gt=0"`
	Products   []ProductLineInput `json:"products,omitempty" validate:"omitempty,dive"`
}

// SubmitPORequest uploads the purchase order proof.
type SubmitPORequest struct {
	ProofURL string  `json:"proof_url" validate:"required,max=500"`
	Document *string `json:"document,omitempty" validate:"omitempty,max=500"`
}

// ReviewAction is the admin's verdict on a submitted purchase order.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// ReviewPORequest reviews a submitted purchase order.
type ReviewPORequest struct {
	Action  ReviewAction `json:"action" validate:"required,oneof=approve reject"`
	Remarks string       `json:"remarks,omitempty" validate:"max=500"`
}

// RequestWarehouseRequest asks the warehouse for a quantity.
type RequestWarehouseRequest struct {
	RequestedQuantity int `json:"requested_quantity" validate:"required,gt=0"`
}

// ProcessLineInput carries operator overrides for one product line.
type ProcessLineInput struct {
	LineID              int64 `json:"line_id" validate:"required,gt=0"`
	AvailableQuantity   int   `json:"available_quantity" validate:"gte=0"`
	DeliverableQuantity int   `json:"deliverable_quantity" validate:"gte=0"`
	RemainingQuantity   *int  `json:"remaining_quantity,omitempty"`
}

// ProcessRequest completes warehouse processing and deducts stock.
type ProcessRequest struct {
	AvailableQuantity   int                `json:"available_quantity" validate:"gte=0"`
	DeliverableQuantity int                `json:"deliverable_quantity" validate:"gte=0"`
	Lines               []ProcessLineInput `json:"lines,omitempty" validate:"omitempty,dive"`
}

// HoldRequest parks a challan.
type HoldRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// SubmitDeliveryRequest records delivery evidence.
type SubmitDeliveryRequest struct {
	ProofURL string  `json:"proof_url" validate:"required,max=500"`
	Notes    *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}
