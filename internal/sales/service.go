package sales

import (
	"context"
	"fmt"
	"time"
)

// RepositoryPort defines data access for sales.
type RepositoryPort interface {
	GetSale(ctx context.Context, id int64) (Sale, error)
	ListSales(ctx context.Context, limit, offset int) ([]Sale, error)
	CreateSale(ctx context.Context, s Sale) (int64, error)
	UpdateSale(ctx context.Context, id int64, updates map[string]interface{}) error
}

// Service handles sale business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetSale returns one sale.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales returns sales, newest first.
func (s *Service) ListSales(ctx context.Context, limit, offset int) ([]Sale, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListSales(ctx, limit, offset)
}

// CreateSale records a new sale in Pending status.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest, createdBy int64) (Sale, error) {
	sale := Sale{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Product:       req.Product,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		TotalAmount:   float64(req.Quantity) * req.UnitPrice,
		Status:        SaleStatusPending,
		AssignedTo:    req.AssignedTo,
		Notes:         req.Notes,
		CreatedBy:     createdBy,
	}
	id, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return Sale{}, err
	}
	return s.repo.GetSale(ctx, id)
}

// SetStatus moves a sale to the given status.
func (s *Service) SetStatus(ctx context.Context, id int64, status SaleStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("sales: unknown status %q", status)
	}
	return s.repo.UpdateSale(ctx, id, map[string]interface{}{"status": status})
}

// AttachPODocument stores the purchase order proof submitted by the
// owning employee.
func (s *Service) AttachPODocument(ctx context.Context, id int64, docURL string, actorID int64) error {
	if docURL == "" {
		return fmt.Errorf("sales: po document url required")
	}
	return s.repo.UpdateSale(ctx, id, map[string]interface{}{
		"po_document":     docURL,
		"po_submitted_at": time.Now(),
		"po_submitted_by": actorID,
	})
}

// LinkDC stores the delivery challan reference on the sale.
func (s *Service) LinkDC(ctx context.Context, id, dcID int64) error {
	return s.repo.UpdateSale(ctx, id, map[string]interface{}{"dc_id": dcID})
}
