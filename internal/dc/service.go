package dc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/sales"
	"github.com/edusales-crm/edusales-crm/internal/shared"
	"github.com/edusales-crm/edusales-crm/internal/warehouse"
)

// RepositoryPort defines data access for delivery challans.
type RepositoryPort interface {
	Create(ctx context.Context, d DC) (int64, error)
	Get(ctx context.Context, id int64) (DC, error)
	GetByOrderID(ctx context.Context, orderID int64) (DC, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]DC, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, allowed []Status, to Status, updates map[string]interface{}) error
	ReplaceLines(ctx context.Context, dcID int64, lines []ProductLine) error
	UpdateLine(ctx context.Context, dcID, lineID int64, available, deliverable int, remaining *int) error
	GetDetail(ctx context.Context, id int64) (Detail, error)
}

// DealPort is the slice of the deal store the workflow consumes.
// Satisfied by orders.Service.
type DealPort interface {
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	Assign(ctx context.Context, id, employeeID int64) error
	MarkCompleted(ctx context.Context, id int64) error
	AttachPodProof(ctx context.Context, id int64, proofURL string) error
}

// SalePort is the slice of the sale store the workflow consumes.
// Satisfied by sales.Service.
type SalePort interface {
	GetSale(ctx context.Context, id int64) (sales.Sale, error)
	SetStatus(ctx context.Context, id int64, status sales.SaleStatus) error
	AttachPODocument(ctx context.Context, id int64, docURL string, actorID int64) error
	LinkDC(ctx context.Context, id, dcID int64) error
}

// StockPort deducts warehouse stock for a delivery.
// Satisfied by warehouse.Service.
type StockPort interface {
	DeductForDelivery(ctx context.Context, input warehouse.DeductionInput) (warehouse.DeductionResult, error)
}

// IdempotencyPort guards one-shot side effects.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records workflow actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts status transitions.
type MetricsPort interface {
	DCTransition(from, to string)
}

// ServiceParams wires the workflow engine.
type ServiceParams struct {
	Repo    RepositoryPort
	Deals   DealPort
	Sales   SalePort
	Stock   StockPort
	Idem    IdempotencyPort
	Audit   AuditPort
	Metrics MetricsPort
	Cache   *Cache
	Logger  *slog.Logger
}

// Service owns the challan status field and enforces the legal transition
// sequence. Primary transitions commit on their own; cross-entity
// bookkeeping (deal, sale, stock) runs after and reports as warnings.
type Service struct {
	repo    RepositoryPort
	deals   DealPort
	sales   SalePort
	stock   StockPort
	idem    IdempotencyPort
	audit   AuditPort
	metrics MetricsPort
	cache   *Cache
	logger  *slog.Logger
}

// NewService builds Service instance.
func NewService(p ServiceParams) *Service {
	return &Service{
		repo:    p.Repo,
		deals:   p.Deals,
		sales:   p.Sales,
		stock:   p.Stock,
		idem:    p.Idem,
		audit:   p.Audit,
		metrics: p.Metrics,
		cache:   p.Cache,
		logger:  p.Logger,
	}
}

// Get returns one challan with linked names resolved.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

// List returns challans newest-first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *Status, limit, offset int) ([]DC, error) {
	if status != nil && !status.IsValid() {
		return nil, fmt.Errorf("dc: unknown status %q", *status)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// ============================================================================
// RAISE
// ============================================================================

// Raise creates a challan from a deal or a sale, or updates the existing
// one when the deal already has a challan. Exactly one origin link is
// required and it never changes afterwards.
func (s *Service) Raise(ctx context.Context, req RaiseRequest, actor shared.Actor) (Result, error) {
	switch {
	case req.OrderID != nil && req.SaleID == nil:
		return s.raiseFromDeal(ctx, *req.OrderID, req, actor)
	case req.SaleID != nil && req.OrderID == nil:
		return s.raiseFromSale(ctx, *req.SaleID, req, actor)
	default:
		return Result{}, ErrOriginRequired
	}
}

// RaiseForOrder lets the deal store auto-raise a challan when a deal is
// created with an assignee.
func (s *Service) RaiseForOrder(ctx context.Context, orderID, employeeID int64, actor shared.Actor) error {
	_, err := s.Raise(ctx, RaiseRequest{OrderID: &orderID, EmployeeID: &employeeID}, actor)
	return err
}

func (s *Service) raiseFromDeal(ctx context.Context, orderID int64, req RaiseRequest, actor shared.Actor) (Result, error) {
	order, err := s.deals.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	employeeID, err := resolveEmployee(req.EmployeeID, order.AssignedTo, actor)
	if err != nil {
		return Result{}, err
	}

	lines := linesFromRequest(req.Products)
	if lines == nil {
		lines = linesFromDeal(order.Products)
	}

	existing, err := s.repo.GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		return s.updateRaisedDC(ctx, existing, order, employeeID, lines, actor)
	case errors.Is(err, shared.ErrNotFound):
		// no challan yet, fall through to create
	default:
		return Result{}, err
	}

	d := DC{
		Code:          uuid.NewString(),
		Origin:        DealOrigin(orderID),
		EmployeeID:    employeeID,
		CustomerName:  order.SchoolName,
		CustomerPhone: &order.Phone,
		CustomerEmail: order.Email,
		Product:       primaryProduct(lines),
		Lines:         lines,
		Status:        StatusCreated,
		POPhotoURL:    order.PodProofURL,
		CreatedBy:     actor.ID,
	}
	if order.Address != nil {
		d.CustomerAddress = order.Address
	}
	id, err := s.repo.Create(ctx, d)
	if err != nil {
		return Result{}, err
	}

	var warnings []string
	if order.AssignedTo == nil {
		if err := s.deals.Assign(ctx, orderID, employeeID); err != nil {
			s.logger.Warn("backfill deal assignee failed", slog.Int64("order_id", orderID), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("deal assignee not backfilled: %v", err))
		}
	}
	s.recordAudit(ctx, actor, "dc.raise", id, map[string]any{"order_id": orderID})

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{DC: created, Warnings: warnings}, nil
}

// updateRaisedDC refreshes an existing challan instead of duplicating it.
// The PO artifact already on the challan is preserved; the deal's proof is
// adopted only when the challan has none.
func (s *Service) updateRaisedDC(ctx context.Context, existing DC, order orders.Order, employeeID int64, lines []ProductLine, actor shared.Actor) (Result, error) {
	updates := map[string]interface{}{
		"employee_id":    employeeID,
		"customer_name":  order.SchoolName,
		"customer_phone": order.Phone,
		"customer_email": order.Email,
	}
	if order.Address != nil {
		updates["customer_address"] = order.Address
	}
	if len(lines) > 0 {
		updates["product"] = primaryProduct(lines)
	}
	if existing.POPhotoURL == nil && order.PodProofURL != nil {
		updates["po_photo_url"] = order.PodProofURL
	}
	if err := s.repo.Update(ctx, existing.ID, updates); err != nil {
		return Result{}, err
	}
	if len(lines) > 0 {
		if err := s.repo.ReplaceLines(ctx, existing.ID, lines); err != nil {
			return Result{}, err
		}
	}
	s.recordAudit(ctx, actor, "dc.raise.update", existing.ID, map[string]any{"order_id": order.ID})

	updated, err := s.repo.Get(ctx, existing.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{DC: updated}, nil
}

func (s *Service) raiseFromSale(ctx context.Context, saleID int64, req RaiseRequest, actor shared.Actor) (Result, error) {
	sale, err := s.sales.GetSale(ctx, saleID)
	if err != nil {
		return Result{}, err
	}
	var saleAssignee *int64
	if sale.AssignedTo > 0 {
		saleAssignee = &sale.AssignedTo
	}
	employeeID, err := resolveEmployee(req.EmployeeID, saleAssignee, actor)
	if err != nil {
		return Result{}, err
	}

	lines := linesFromRequest(req.Products)
	product := sale.Product
	if len(lines) > 0 {
		product = primaryProduct(lines)
	}

	d := DC{
		Code:              uuid.NewString(),
		Origin:            SaleOrigin(saleID),
		EmployeeID:        employeeID,
		CustomerName:      sale.CustomerName,
		CustomerPhone:     &sale.CustomerPhone,
		CustomerEmail:     sale.CustomerEmail,
		Product:           product,
		RequestedQuantity: sale.Quantity,
		Lines:             lines,
		Status:            StatusCreated,
		PODocument:        sale.PODocument,
		CreatedBy:         actor.ID,
	}
	id, err := s.repo.Create(ctx, d)
	if err != nil {
		return Result{}, err
	}

	var warnings []string
	if err := s.sales.LinkDC(ctx, saleID, id); err != nil {
		s.logger.Warn("link dc to sale failed", slog.Int64("sale_id", saleID), slog.Any("error", err))
		warnings = append(warnings, fmt.Sprintf("sale not linked: %v", err))
	}
	s.recordAudit(ctx, actor, "dc.raise", id, map[string]any{"sale_id": saleID})

	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{DC: created, Warnings: warnings}, nil
}

// resolveEmployee picks the owning employee: explicit parameter, then the
// source record's assignee, then the acting user. No candidate is a loud
// failure rather than an orphaned challan.
func resolveEmployee(explicit, assigned *int64, actor shared.Actor) (int64, error) {
	switch {
	case explicit != nil && *explicit > 0:
		return *explicit, nil
	case assigned != nil && *assigned > 0:
		return *assigned, nil
	case actor.ID > 0:
		return actor.ID, nil
	default:
		return 0, ErrNoEmployee
	}
}

func linesFromRequest(inputs []ProductLineInput) []ProductLine {
	if len(inputs) == 0 {
		return nil
	}
	lines := make([]ProductLine, len(inputs))
	for i, in := range inputs {
		lines[i] = ProductLine{
			Product:  in.Product,
			Category: in.Category,
			Class:    in.Class,
			Level:    in.Level,
			Quantity: in.Quantity,
			Strength: in.Strength,
			Price:    in.Price,
			Total:    in.Total,
		}
	}
	return lines
}

func linesFromDeal(products []orders.ProductLine) []ProductLine {
	if len(products) == 0 {
		return nil
	}
	lines := make([]ProductLine, len(products))
	for i, p := range products {
		lines[i] = ProductLine{
			Product:  p.Product,
			Category: p.Category,
			Class:    p.Class,
			Level:    p.Level,
			Quantity: p.Quantity,
			Strength: p.Strength,
			Price:    p.Price,
			Total:    p.Total,
		}
	}
	return lines
}

func primaryProduct(lines []ProductLine) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0].Product
}

// ============================================================================
// TRANSITIONS
// ============================================================================

// SubmitPO uploads the purchase order proof and moves the challan to
// po_submitted. Only the assigned employee may submit.
func (s *Service) SubmitPO(ctx context.Context, id int64, req SubmitPORequest, actor shared.Actor) (Result, error) {
	if req.ProofURL == "" {
		return Result{}, ErrProofRequired
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if d.EmployeeID != actor.ID {
		return Result{}, ErrNotOwner
	}

	document := req.ProofURL
	if req.Document != nil && *req.Document != "" {
		document = *req.Document
	}
	now := time.Now()
	err = s.applyTransition(ctx, d, OpSubmitPO, actor, map[string]interface{}{
		"po_photo_url":    req.ProofURL,
		"po_document":     document,
		"po_submitted_at": now,
		"po_submitted_by": actor.ID,
		"hold_reason":     nil,
	})
	if err != nil {
		return Result{}, err
	}

	var warnings []string
	switch d.Origin.Kind {
	case OriginSale:
		if err := s.sales.AttachPODocument(ctx, d.Origin.SaleID, document, actor.ID); err != nil {
			s.logger.Warn("push po to sale failed", slog.Int64("sale_id", d.Origin.SaleID), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("sale po not updated: %v", err))
		}
	case OriginDeal:
		if err := s.deals.AttachPodProof(ctx, d.Origin.OrderID, req.ProofURL); err != nil {
			s.logger.Warn("push po to deal failed", slog.Int64("order_id", d.Origin.OrderID), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("deal proof not updated: %v", err))
		}
	}

	return s.result(ctx, id, warnings)
}

// ReviewPO is the admin verdict on a submitted purchase order. Approval
// sends the challan to the manager and, as a secondary effect, marks the
// originating deal commercially closed. Rejection bounces the challan
// back to created with the proof cleared so the employee can resubmit.
func (s *Service) ReviewPO(ctx context.Context, id int64, req ReviewPORequest, actor shared.Actor) (Result, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	now := time.Now()

	if req.Action == ReviewReject {
		reason := "Rejected by admin"
		if req.Remarks != "" {
			reason = "Rejected by admin: " + req.Remarks
		}
		err = s.applyTransition(ctx, d, OpRejectPO, actor, map[string]interface{}{
			"admin_id":          actor.ID,
			"admin_reviewed_at": now,
			"admin_reviewed_by": actor.ID,
			"po_photo_url":      nil,
			"po_document":       nil,
			"po_submitted_at":   nil,
			"po_submitted_by":   nil,
			"hold_reason":       reason,
		})
		if err != nil {
			return Result{}, err
		}
		return s.result(ctx, id, nil)
	}

	err = s.applyTransition(ctx, d, OpApprovePO, actor, map[string]interface{}{
		"admin_id":           actor.ID,
		"admin_reviewed_at":  now,
		"admin_reviewed_by":  actor.ID,
		"sent_to_manager_at": now,
	})
	if err != nil {
		return Result{}, err
	}

	// Commercial closure: the deal completes at PO approval while the
	// challan keeps moving through fulfillment. The two statuses drift on
	// purpose from here on.
	var warnings []string
	if d.Origin.Kind == OriginDeal {
		if err := s.deals.MarkCompleted(ctx, d.Origin.OrderID); err != nil {
			s.logger.Warn("mark deal completed failed", slog.Int64("order_id", d.Origin.OrderID), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("deal not marked completed: %v", err))
		}
	}
	return s.result(ctx, id, warnings)
}

// RequestFromWarehouse records the quantity the manager asks the
// warehouse to fulfil and moves the challan to pending_dc.
func (s *Service) RequestFromWarehouse(ctx context.Context, id int64, req RequestWarehouseRequest, actor shared.Actor) (Result, error) {
	if req.RequestedQuantity <= 0 {
		return Result{}, ErrQuantityRequired
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	err = s.applyTransition(ctx, d, OpRequestWarehouse, actor, map[string]interface{}{
		"requested_quantity":   req.RequestedQuantity,
		"manager_id":           actor.ID,
		"manager_requested_at": time.Now(),
		"manager_requested_by": actor.ID,
	})
	if err != nil {
		return Result{}, err
	}
	return s.result(ctx, id, nil)
}

// ProcessInWarehouse captures the warehouse operator's quantities,
// completes the challan and deducts stock. The deduction runs at most
// once per challan; replays of the transition skip it with a warning.
func (s *Service) ProcessInWarehouse(ctx context.Context, id int64, req ProcessRequest, actor shared.Actor) (Result, error) {
	if req.DeliverableQuantity < 0 || req.AvailableQuantity < 0 {
		return Result{}, ErrNegativeQuantity
	}
	for _, line := range req.Lines {
		if line.DeliverableQuantity < 0 || line.AvailableQuantity < 0 {
			return Result{}, ErrNegativeQuantity
		}
	}
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	// Reject before any line write so a precondition failure leaves the
	// challan untouched.
	if _, err := Transition(OpProcessWarehouse, d.Status); err != nil {
		return Result{}, err
	}

	for _, line := range req.Lines {
		if err := s.repo.UpdateLine(ctx, d.ID, line.LineID, line.AvailableQuantity, line.DeliverableQuantity, line.RemainingQuantity); err != nil {
			return Result{}, fmt.Errorf("dc: update line %d: %w", line.LineID, err)
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"available_quantity":     req.AvailableQuantity,
		"deliverable_quantity":   req.DeliverableQuantity,
		"warehouse_id":           actor.ID,
		"warehouse_processed_at": now,
		"warehouse_processed_by": actor.ID,
		"completed_at":           now,
		"completed_by":           actor.ID,
	}
	if req.AvailableQuantity > req.DeliverableQuantity {
		updates["listed_at"] = now
	}
	if err := s.applyTransition(ctx, d, OpProcessWarehouse, actor, updates); err != nil {
		return Result{}, err
	}

	warnings := s.deductStock(ctx, id, actor)
	return s.result(ctx, id, warnings)
}

// deductStock runs the one-shot stock deduction for a processed challan.
// Failures never undo the completed transition; they surface as warnings.
func (s *Service) deductStock(ctx context.Context, id int64, actor shared.Actor) []string {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return []string{fmt.Sprintf("stock deduction skipped: %v", err)}
	}
	if len(d.Lines) == 0 {
		return nil
	}

	key := fmt.Sprintf("dc-deduct:%d", id)
	if err := s.idem.CheckAndInsert(ctx, key, "dc"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			return []string{"stock already deducted"}
		}
		return []string{fmt.Sprintf("stock deduction skipped: %v", err)}
	}

	input := warehouse.DeductionInput{
		DCID:         d.ID,
		DCCode:       d.Code,
		CustomerName: d.CustomerName,
		ActorID:      actor.ID,
	}
	if d.Origin.Kind == OriginSale {
		saleID := d.Origin.SaleID
		input.RelatedSaleID = &saleID
	}
	for _, line := range d.Lines {
		input.Lines = append(input.Lines, warehouse.DeductionLine{
			Product:             line.Product,
			Category:            line.Category,
			Level:               line.Level,
			Quantity:            line.Quantity,
			AvailableQuantity:   line.AvailableQuantity,
			DeliverableQuantity: line.DeliverableQuantity,
			RemainingQuantity:   line.RemainingQuantity,
		})
	}

	result, err := s.stock.DeductForDelivery(ctx, input)
	if err != nil {
		// Release the key so a retry can deduct.
		if delErr := s.idem.Delete(ctx, key); delErr != nil {
			s.logger.Error("release deduction key failed", slog.String("key", key), slog.Any("error", delErr))
		}
		s.logger.Warn("stock deduction failed", slog.Int64("dc_id", id), slog.Any("error", err))
		return []string{fmt.Sprintf("stock deduction failed: %v", err)}
	}
	return result.Warnings
}

// Hold parks a challan that is adjacent to warehouse processing.
func (s *Service) Hold(ctx context.Context, id int64, req HoldRequest, actor shared.Actor) (Result, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	reason := req.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	err = s.applyTransition(ctx, d, OpHold, actor, map[string]interface{}{
		"hold_reason": reason,
	})
	if err != nil {
		return Result{}, err
	}
	return s.result(ctx, id, nil)
}

// SubmitDelivery records delivery evidence without moving the status.
func (s *Service) SubmitDelivery(ctx context.Context, id int64, req SubmitDeliveryRequest, actor shared.Actor) (Result, error) {
	if req.ProofURL == "" {
		return Result{}, ErrProofRequired
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Result{}, err
	}
	now := time.Now()
	err := s.repo.Update(ctx, id, map[string]interface{}{
		"delivery_proof":        req.ProofURL,
		"delivery_notes":        req.Notes,
		"delivered_at":          now,
		"delivery_submitted_at": now,
		"delivery_submitted_by": actor.ID,
	})
	if err != nil {
		return Result{}, err
	}
	s.recordAudit(ctx, actor, "dc.delivery_submit", id, nil)
	return s.result(ctx, id, nil)
}

// CompleteDelivery is the legacy completion path: it requires submitted
// delivery evidence and cascades the linked sale to Completed.
func (s *Service) CompleteDelivery(ctx context.Context, id int64, actor shared.Actor) (Result, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if d.DeliverySubmittedAt == nil {
		return Result{}, ErrDeliveryNotPending
	}
	now := time.Now()
	err = s.applyTransition(ctx, d, OpCompleteDelivery, actor, map[string]interface{}{
		"completed_at": now,
		"completed_by": actor.ID,
	})
	if err != nil {
		return Result{}, err
	}

	var warnings []string
	if d.Origin.Kind == OriginSale {
		if err := s.sales.SetStatus(ctx, d.Origin.SaleID, sales.SaleStatusCompleted); err != nil {
			s.logger.Warn("cascade sale completion failed", slog.Int64("sale_id", d.Origin.SaleID), slog.Any("error", err))
			warnings = append(warnings, fmt.Sprintf("sale not completed: %v", err))
		}
	}
	return s.result(ctx, id, warnings)
}

// applyTransition resolves the target status from the transition table
// and commits it with a compare-and-swap write. A concurrent move by
// another request surfaces as the same precondition error an illegal
// call would get.
func (s *Service) applyTransition(ctx context.Context, d DC, op Operation, actor shared.Actor, updates map[string]interface{}) error {
	target, err := Transition(op, d.Status)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, d.ID, AllowedFrom(op), target, updates); err != nil {
		var conflict *StatusConflictError
		if errors.As(err, &conflict) {
			return &PreconditionError{Op: op, Required: AllowedFrom(op), Current: conflict.Current}
		}
		return err
	}

	if s.metrics != nil {
		s.metrics.DCTransition(string(d.Status), string(target))
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump stats cache failed", slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actor, "dc."+string(op), d.ID, map[string]any{
		"from": string(d.Status),
		"to":   string(target),
	})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "dc",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) result(ctx context.Context, id int64, warnings []string) (Result, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return Result{DC: d, Warnings: warnings}, nil
}

// ============================================================================
// STATS
// ============================================================================

// Stats counts challans per status, fanning the queries out in parallel.
// Results are cached; transitions bump the cache version so stale counts
// age out immediately after a write.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.cache != nil {
		key, err := s.cache.BuildKey(ctx, "dc", "stats")
		if err == nil {
			var cached Stats
			err = s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (interface{}, error) {
				return s.computeStats(ctx)
			})
			if err == nil {
				return cached, nil
			}
		}
		s.logger.Warn("stats load via cache failed, recomputing", slog.Any("error", err))
	}
	return s.computeStats(ctx)
}

func (s *Service) computeStats(ctx context.Context) (Stats, error) {
	counts := make([]int64, len(AllStatuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, status := range AllStatuses {
		i, status := i, status
		g.Go(func() error {
			n, err := s.repo.CountByStatus(gctx, status)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats := Stats{Counts: make(map[Status]int64, len(AllStatuses))}
	for i, status := range AllStatuses {
		stats.Counts[status] = counts[i]
		stats.Total += counts[i]
	}
	return stats, nil
}
