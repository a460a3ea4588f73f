package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/edusales-crm/edusales-crm/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	CreateItem(ctx context.Context, item Item) (int64, error)
	UpdateItem(ctx context.Context, item Item) error
	ListMovements(ctx context.Context, itemID *int64, limit int) ([]Movement, error)
	RefreshItemStatuses(ctx context.Context) (int64, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	FindItemForUpdate(ctx context.Context, name string, category, level *string) (Item, error)
	UpdateItemStock(ctx context.Context, id int64, currentStock int, status ItemStatus) error
	InsertMovement(ctx context.Context, mv Movement) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates warehouse stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns all items.
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	return s.repo.ListItems(ctx)
}

// ListMovements returns ledger entries, newest first.
func (s *Service) ListMovements(ctx context.Context, itemID *int64, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListMovements(ctx, itemID, limit)
}

// CreateItem registers a new stocked product. The derived status is
// computed here, never accepted from the caller.
func (s *Service) CreateItem(ctx context.Context, req CreateItemRequest, actorID int64) (Item, error) {
	if req.ProductName == "" {
		return Item{}, errors.New("warehouse: product name required")
	}
	unit := req.Unit
	if unit == "" {
		unit = "pcs"
	}
	item := Item{
		ProductName:  req.ProductName,
		ProductCode:  req.ProductCode,
		Category:     req.Category,
		Level:        req.Level,
		CurrentStock: req.CurrentStock,
		MinStock:     req.MinStock,
		UnitPrice:    req.UnitPrice,
		Unit:         unit,
		Status:       StatusFor(req.CurrentStock, req.MinStock),
		CreatedBy:    actorID,
	}
	id, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, err
	}
	return s.repo.GetItem(ctx, id)
}

// UpdateItem updates master data and recomputes the derived status.
func (s *Service) UpdateItem(ctx context.Context, id int64, req UpdateItemRequest) (Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if req.ProductName != nil {
		item.ProductName = *req.ProductName
	}
	if req.ProductCode != nil {
		item.ProductCode = req.ProductCode
	}
	if req.Category != nil {
		item.Category = req.Category
	}
	if req.Level != nil {
		item.Level = req.Level
	}
	if req.MinStock != nil {
		item.MinStock = *req.MinStock
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if req.Unit != nil {
		item.Unit = *req.Unit
	}
	item.Status = StatusFor(item.CurrentStock, item.MinStock)
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return Item{}, err
	}
	return s.repo.GetItem(ctx, id)
}

// AdjustStock applies a manual movement to one item and records a ledger
// entry. In and Return add, Out subtracts, Adjustment sets the absolute
// quantity.
func (s *Service) AdjustStock(ctx context.Context, itemID int64, req StockUpdateRequest, actorID int64) (Item, error) {
	if !req.Type.IsValid() {
		return Item{}, ErrInvalidMovement
	}
	if req.Quantity < 0 {
		return Item{}, errors.New("warehouse: quantity must not be negative")
	}
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		newStock := item.CurrentStock
		switch req.Type {
		case MovementIn, MovementReturn:
			newStock += req.Quantity
		case MovementOut:
			newStock -= req.Quantity
			if newStock < 0 {
				return fmt.Errorf("%w: have %d, requested %d", ErrInsufficientStock, item.CurrentStock, req.Quantity)
			}
		case MovementAdjustment:
			newStock = req.Quantity
		}
		status := StatusFor(newStock, item.MinStock)
		if err := tx.UpdateItemStock(ctx, item.ID, newStock, status); err != nil {
			return err
		}
		mv := Movement{
			Code:      uuid.NewString(),
			ItemID:    item.ID,
			Type:      req.Type,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			CreatedBy: actorID,
		}
		if _, err := tx.InsertMovement(ctx, mv); err != nil {
			return err
		}
		item.CurrentStock = newStock
		item.Status = status
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("warehouse:%s", req.Type),
			Entity:   "warehouse_item",
			EntityID: fmt.Sprintf("%d", itemID),
			Meta:     map[string]any{"quantity": req.Quantity, "reason": req.Reason},
		})
	}
	return updated, nil
}

// DeductForDelivery runs the per-line stock deduction for a completed
// delivery challan. The whole pass runs in one transaction, but unmatched
// or empty lines are skipped with a warning instead of aborting: forward
// progress of the delivery wins over strict inventory accounting.
func (s *Service) DeductForDelivery(ctx context.Context, input DeductionInput) (DeductionResult, error) {
	var result DeductionResult
	if len(input.Lines) == 0 {
		return result, nil
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for i, line := range input.Lines {
			deliverable := line.DeliverableQuantity
			if deliverable <= 0 {
				deliverable = line.Quantity
			}
			if deliverable <= 0 {
				result.Warnings = append(result.Warnings, fmt.Sprintf("line %d (%s): no deliverable quantity, skipped", i+1, line.Product))
				continue
			}

			item, err := s.matchItem(ctx, tx, line)
			if err != nil {
				if errors.Is(err, ErrItemNotFound) {
					result.Warnings = append(result.Warnings, fmt.Sprintf("line %d (%s): no matching warehouse item, skipped", i+1, line.Product))
					continue
				}
				return err
			}

			available := line.AvailableQuantity
			if available <= 0 {
				available = item.CurrentStock
			}
			remaining := available - deliverable
			if line.RemainingQuantity != nil {
				remaining = *line.RemainingQuantity
			}
			if remaining < 0 {
				remaining = 0
			}

			status := StatusFor(remaining, item.MinStock)
			if err := tx.UpdateItemStock(ctx, item.ID, remaining, status); err != nil {
				return fmt.Errorf("update stock for %s: %w", item.ProductName, err)
			}
			mv := Movement{
				Code:          uuid.NewString(),
				ItemID:        item.ID,
				Type:          MovementOut,
				Quantity:      deliverable,
				Reason:        fmt.Sprintf("DC %s delivery for %s", input.DCCode, input.CustomerName),
				RelatedSaleID: input.RelatedSaleID,
				CreatedBy:     input.ActorID,
			}
			if _, err := tx.InsertMovement(ctx, mv); err != nil {
				return fmt.Errorf("record movement for %s: %w", item.ProductName, err)
			}
			result.LinesDeducted++
		}
		return nil
	})
	if err != nil {
		return DeductionResult{}, err
	}
	if s.audit != nil && result.LinesDeducted > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "warehouse:deduct_delivery",
			Entity:   "dc",
			EntityID: fmt.Sprintf("%d", input.DCID),
			Meta:     map[string]any{"lines": result.LinesDeducted, "warnings": len(result.Warnings)},
		})
	}
	return result, nil
}

// matchItem resolves the warehouse item for a line by progressively looser
// match: name+category+level, then name+category, then name alone.
func (s *Service) matchItem(ctx context.Context, tx TxRepository, line DeductionLine) (Item, error) {
	if line.Product == "" {
		return Item{}, ErrItemNotFound
	}
	type match struct {
		category *string
		level    *string
	}
	var tiers []match
	if line.Category != "" && line.Level != "" {
		tiers = append(tiers, match{category: &line.Category, level: &line.Level})
	}
	if line.Category != "" {
		tiers = append(tiers, match{category: &line.Category})
	}
	tiers = append(tiers, match{})
	for _, m := range tiers {
		item, err := tx.FindItemForUpdate(ctx, line.Product, m.category, m.level)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrItemNotFound) {
			return Item{}, err
		}
	}
	return Item{}, ErrItemNotFound
}

// RefreshStatuses recomputes the derived status for every item. Used by
// the nightly maintenance job.
func (s *Service) RefreshStatuses(ctx context.Context) (int64, error) {
	return s.repo.RefreshItemStatuses(ctx)
}
