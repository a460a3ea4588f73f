package warehouse

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items     map[int64]Item
	movements []Movement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) addItem(item Item) Item {
	r.nextID++
	item.ID = r.nextID
	if item.Status == "" {
		item.Status = StatusFor(item.CurrentStock, item.MinStock)
	}
	r.items[item.ID] = item
	return item
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	if it, ok := r.items[id]; ok {
		return it, nil
	}
	return Item{}, ErrItemNotFound
}

func (r *memoryRepo) ListItems(ctx context.Context) ([]Item, error) {
	items := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		items = append(items, it)
	}
	return items, nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (int64, error) {
	return r.addItem(item).ID, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, item Item) error {
	if _, ok := r.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	r.items[item.ID] = item
	return nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, itemID *int64, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(r.movements) - 1; i >= 0 && len(out) < limit; i-- {
		mv := r.movements[i]
		if itemID != nil && mv.ItemID != *itemID {
			continue
		}
		out = append(out, mv)
	}
	return out, nil
}

func (r *memoryRepo) RefreshItemStatuses(ctx context.Context) (int64, error) {
	var changed int64
	for id, it := range r.items {
		status := StatusFor(it.CurrentStock, it.MinStock)
		if it.Status != status {
			it.Status = status
			r.items[id] = it
			changed++
		}
	}
	return changed, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) FindItemForUpdate(ctx context.Context, name string, category, level *string) (Item, error) {
	for _, it := range tx.repo.items {
		if !strings.EqualFold(it.ProductName, name) {
			continue
		}
		if category != nil && !strings.EqualFold(deref(it.Category), *category) {
			continue
		}
		if level != nil && !strings.EqualFold(deref(it.Level), *level) {
			continue
		}
		return it, nil
	}
	return Item{}, ErrItemNotFound
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, id int64, currentStock int, status ItemStatus) error {
	it, ok := tx.repo.items[id]
	if !ok {
		return ErrItemNotFound
	}
	it.CurrentStock = currentStock
	it.Status = status
	tx.repo.items[id] = it
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, mv Movement) (int64, error) {
	tx.repo.nextID++
	mv.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, mv)
	return mv.ID, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strptr(s string) *string { return &s }

func TestDeductForDelivery(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Abacus", Category: strptr("Math"), Level: strptr("L1"), CurrentStock: 100, MinStock: 10})
	svc := NewService(repo, nil)
	ctx := context.Background()

	result, err := svc.DeductForDelivery(ctx, DeductionInput{
		DCID:         1,
		DCCode:       "DC-001",
		CustomerName: "Sunrise School",
		ActorID:      7,
		Lines: []DeductionLine{
			{Product: "Abacus", Category: "Math", Level: "L1", Quantity: 40, DeliverableQuantity: 40},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.LinesDeducted)
	require.Empty(t, result.Warnings)

	updated, err := repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, 60, updated.CurrentStock)
	require.Equal(t, StatusInStock, updated.Status)

	require.Len(t, repo.movements, 1)
	mv := repo.movements[0]
	require.Equal(t, MovementOut, mv.Type)
	require.Equal(t, 40, mv.Quantity)
	require.Contains(t, mv.Reason, "DC-001")
	require.Contains(t, mv.Reason, "Sunrise School")
	require.Equal(t, int64(7), mv.CreatedBy)
}

func TestDeductFallsBackThroughMatchTiers(t *testing.T) {
	repo := newMemoryRepo()
	// Only a name-level match exists; category/level on the line differ.
	item := repo.addItem(Item{ProductName: "Abacus", CurrentStock: 30, MinStock: 5})
	svc := NewService(repo, nil)

	result, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode:       "DC-002",
		CustomerName: "Hillview",
		Lines: []DeductionLine{
			{Product: "abacus", Category: "Math", Level: "L2", DeliverableQuantity: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.LinesDeducted)

	updated, _ := repo.GetItem(context.Background(), item.ID)
	require.Equal(t, 20, updated.CurrentStock)
}

func TestDeductClampsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Globe", CurrentStock: 5, MinStock: 2})
	svc := NewService(repo, nil)

	_, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-003",
		Lines:  []DeductionLine{{Product: "Globe", DeliverableQuantity: 9}},
	})
	require.NoError(t, err)

	updated, _ := repo.GetItem(context.Background(), item.ID)
	require.Equal(t, 0, updated.CurrentStock)
	require.Equal(t, StatusOutOfStock, updated.Status)
}

func TestDeductUnmatchedLineSkipsWithoutBlocking(t *testing.T) {
	repo := newMemoryRepo()
	matched := repo.addItem(Item{ProductName: "Abacus", CurrentStock: 50, MinStock: 5})
	svc := NewService(repo, nil)

	result, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-004",
		Lines: []DeductionLine{
			{Product: "Nonexistent Kit", DeliverableQuantity: 5},
			{Product: "Abacus", DeliverableQuantity: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.LinesDeducted)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "Nonexistent Kit")

	updated, _ := repo.GetItem(context.Background(), matched.ID)
	require.Equal(t, 40, updated.CurrentStock)
	require.Len(t, repo.movements, 1)
}

func TestDeductHonoursExplicitRemaining(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Abacus", CurrentStock: 100, MinStock: 5})
	svc := NewService(repo, nil)

	remaining := 73
	_, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-005",
		Lines: []DeductionLine{
			{Product: "Abacus", DeliverableQuantity: 10, RemainingQuantity: &remaining},
		},
	})
	require.NoError(t, err)

	updated, _ := repo.GetItem(context.Background(), item.ID)
	require.Equal(t, 73, updated.CurrentStock)
}

func TestDeductUsesLineAvailableSnapshot(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Abacus", CurrentStock: 100, MinStock: 5})
	svc := NewService(repo, nil)

	_, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-006",
		Lines: []DeductionLine{
			{Product: "Abacus", AvailableQuantity: 30, DeliverableQuantity: 10},
		},
	})
	require.NoError(t, err)

	updated, _ := repo.GetItem(context.Background(), item.ID)
	require.Equal(t, 20, updated.CurrentStock)
}

func TestDeductSkipsEmptyLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.addItem(Item{ProductName: "Abacus", CurrentStock: 100, MinStock: 5})
	svc := NewService(repo, nil)

	result, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-007",
		Lines:  []DeductionLine{{Product: "Abacus", Quantity: 0, DeliverableQuantity: 0}},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.LinesDeducted)
	require.Len(t, result.Warnings, 1)
	require.Empty(t, repo.movements)
}

func TestDeductFallsBackToLineQuantity(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Abacus", CurrentStock: 100, MinStock: 5})
	svc := NewService(repo, nil)

	_, err := svc.DeductForDelivery(context.Background(), DeductionInput{
		DCCode: "DC-008",
		Lines:  []DeductionLine{{Product: "Abacus", Quantity: 25}},
	})
	require.NoError(t, err)

	updated, _ := repo.GetItem(context.Background(), item.ID)
	require.Equal(t, 75, updated.CurrentStock)
	require.Equal(t, 25, repo.movements[0].Quantity)
}

func TestAdjustStock(t *testing.T) {
	repo := newMemoryRepo()
	item := repo.addItem(Item{ProductName: "Globe", CurrentStock: 10, MinStock: 4})
	svc := NewService(repo, nil)
	ctx := context.Background()

	updated, err := svc.AdjustStock(ctx, item.ID, StockUpdateRequest{Type: MovementIn, Quantity: 5, Reason: "restock"}, 1)
	require.NoError(t, err)
	require.Equal(t, 15, updated.CurrentStock)

	updated, err = svc.AdjustStock(ctx, item.ID, StockUpdateRequest{Type: MovementOut, Quantity: 12, Reason: "issue"}, 1)
	require.NoError(t, err)
	require.Equal(t, 3, updated.CurrentStock)
	require.Equal(t, StatusLowStock, updated.Status)

	_, err = svc.AdjustStock(ctx, item.ID, StockUpdateRequest{Type: MovementOut, Quantity: 99, Reason: "too much"}, 1)
	require.ErrorIs(t, err, ErrInsufficientStock)

	updated, err = svc.AdjustStock(ctx, item.ID, StockUpdateRequest{Type: MovementAdjustment, Quantity: 0, Reason: "recount"}, 1)
	require.NoError(t, err)
	require.Equal(t, 0, updated.CurrentStock)
	require.Equal(t, StatusOutOfStock, updated.Status)

	require.Len(t, repo.movements, 3)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, StatusOutOfStock, StatusFor(0, 5))
	require.Equal(t, StatusLowStock, StatusFor(5, 5))
	require.Equal(t, StatusInStock, StatusFor(6, 5))
}
