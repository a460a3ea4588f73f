package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edusales-crm/edusales-crm/internal/shared"
)

// RepositoryPort defines data access for deals.
type RepositoryPort interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)
	CreateOrder(ctx context.Context, o Order) (int64, error)
	UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error
	AppendHistory(ctx context.Context, entry HistoryEntry) (int64, error)
	ListHistory(ctx context.Context, orderID int64) ([]HistoryEntry, error)
	ListDueFollowUps(ctx context.Context, due time.Time) ([]Order, error)
}

// DCRaiser raises a delivery challan for a newly assigned deal.
type DCRaiser interface {
	RaiseForOrder(ctx context.Context, orderID, employeeID int64, actor shared.Actor) error
}

// Service handles deal business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	raiser DCRaiser
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetDCRaiser wires the delivery challan workflow for auto-raising.
func (s *Service) SetDCRaiser(raiser DCRaiser) {
	s.raiser = raiser
}

// GetOrder returns one deal.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns deals, newest first.
func (s *Service) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, limit, offset)
}

// CreateOrder records a deal. When any tracked field is supplied the
// first history entry is seeded immediately, and when the deal already
// has an assignee a delivery challan is raised for it. The auto-raise is
// a secondary effect: its failure is reported as a warning, not an error.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, actor shared.Actor) (Order, []string, error) {
	if req.Priority != nil && !req.Priority.IsValid() {
		return Order{}, nil, fmt.Errorf("orders: unknown priority %q", *req.Priority)
	}
	var total float64
	for i := range req.Products {
		if req.Products[i].Total == 0 {
			req.Products[i].Total = float64(req.Products[i].Quantity) * req.Products[i].Price
		}
		total += req.Products[i].Total
	}
	order := Order{
		SchoolName:   req.SchoolName,
		ContactName:  req.ContactName,
		Phone:        req.Phone,
		Email:        req.Email,
		Address:      req.Address,
		Zone:         req.Zone,
		Location:     req.Location,
		Products:     req.Products,
		TotalAmount:  total,
		Priority:     req.Priority,
		Status:       OrderStatusSaved,
		AssignedTo:   req.AssignedTo,
		CreatedBy:    actor.ID,
		FollowUpDate: req.FollowUpDate,
		Remarks:      req.Remarks,
	}
	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return Order{}, nil, err
	}

	if req.FollowUpDate != nil || req.Remarks != nil || req.Priority != nil {
		entry := HistoryEntry{
			OrderID:      id,
			FollowUpDate: req.FollowUpDate,
			Remarks:      req.Remarks,
			Priority:     req.Priority,
			UpdatedBy:    actor.ID,
		}
		if _, err := s.repo.AppendHistory(ctx, entry); err != nil {
			return Order{}, nil, fmt.Errorf("orders: seed history: %w", err)
		}
	}

	var warnings []string
	if req.AssignedTo != nil && s.raiser != nil {
		if err := s.raiser.RaiseForOrder(ctx, id, *req.AssignedTo, actor); err != nil {
			s.logger.Warn("auto-raise dc for order failed", slog.Int64("order_id", id), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("delivery challan not raised: %v", err))
		}
	}

	created, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, warnings, err
	}
	return created, warnings, nil
}

// UpdateOrder applies a partial update. Edits to follow-up date, remarks
// or priority append exactly one history entry carrying the new values.
func (s *Service) UpdateOrder(ctx context.Context, id int64, req UpdateOrderRequest, actor shared.Actor) (Order, error) {
	if req.Priority != nil && !req.Priority.IsValid() {
		return Order{}, fmt.Errorf("orders: unknown priority %q", *req.Priority)
	}
	if req.Status != nil && !req.Status.IsValid() {
		return Order{}, fmt.Errorf("orders: unknown status %q", *req.Status)
	}
	if _, err := s.repo.GetOrder(ctx, id); err != nil {
		return Order{}, err
	}

	updates := make(map[string]interface{})
	if req.SchoolName != nil {
		updates["school_name"] = *req.SchoolName
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = req.Email
	}
	if req.Address != nil {
		updates["address"] = req.Address
	}
	if req.Zone != nil {
		updates["zone"] = req.Zone
	}
	if req.Location != nil {
		updates["location"] = req.Location
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.AssignedTo != nil {
		updates["assigned_to"] = *req.AssignedTo
	}
	if req.FollowUpDate != nil {
		updates["follow_up_date"] = *req.FollowUpDate
	}
	if req.Remarks != nil {
		updates["remarks"] = req.Remarks
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.PodProofURL != nil {
		updates["pod_proof_url"] = req.PodProofURL
	}

	if err := s.repo.UpdateOrder(ctx, id, updates); err != nil {
		return Order{}, err
	}

	if req.TouchesTrackedFields() {
		entry := HistoryEntry{
			OrderID:      id,
			FollowUpDate: req.FollowUpDate,
			Remarks:      req.Remarks,
			Priority:     req.Priority,
			UpdatedBy:    actor.ID,
		}
		if _, err := s.repo.AppendHistory(ctx, entry); err != nil {
			return Order{}, fmt.Errorf("orders: append history: %w", err)
		}
	}

	return s.repo.GetOrder(ctx, id)
}

// History returns the update trail for an order, newest first. Orders
// with tracked state but no recorded entries get a single synthetic
// initial entry derived from the legacy fields, so the trail is never
// empty for an order carrying any state.
func (s *Service) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 && (order.FollowUpDate != nil || order.Remarks != nil || order.Priority != nil) {
		entries = []HistoryEntry{{
			OrderID:      orderID,
			FollowUpDate: order.FollowUpDate,
			Remarks:      order.Remarks,
			Priority:     order.Priority,
			UpdatedBy:    order.CreatedBy,
			UpdatedAt:    order.CreatedAt,
		}}
	}
	return entries, nil
}

// Assign back-fills the deal assignee, used when a delivery challan is
// raised with an explicit employee for an unassigned deal.
func (s *Service) Assign(ctx context.Context, id, employeeID int64) error {
	return s.repo.UpdateOrder(ctx, id, map[string]interface{}{"assigned_to": employeeID})
}

// MarkCompleted flips the deal to commercial closure. Called when the
// linked delivery challan's purchase order is approved; fulfillment
// continues on the challan independently.
func (s *Service) MarkCompleted(ctx context.Context, id int64) error {
	return s.repo.UpdateOrder(ctx, id, map[string]interface{}{"status": OrderStatusCompleted})
}

// ListDueFollowUps returns open deals whose follow-up date has arrived.
func (s *Service) ListDueFollowUps(ctx context.Context, due time.Time) ([]Order, error) {
	return s.repo.ListDueFollowUps(ctx, due)
}

// AttachPodProof stores the proof-of-delivery artifact on the deal.
func (s *Service) AttachPodProof(ctx context.Context, id int64, proofURL string) error {
	if proofURL == "" {
		return fmt.Errorf("orders: proof url required")
	}
	return s.repo.UpdateOrder(ctx, id, map[string]interface{}{"pod_proof_url": proofURL})
}
