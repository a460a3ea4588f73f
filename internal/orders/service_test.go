package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edusales-crm/edusales-crm/internal/shared"
)

type memoryRepo struct {
	orders  map[int64]Order
	history []HistoryEntry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]Order), nextID: 1}
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, limit, offset int) ([]Order, error) {
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) CreateOrder(_ context.Context, o Order) (int64, error) {
	o.ID = m.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	m.orders[o.ID] = o
	m.nextID++
	return o.ID, nil
}

func (m *memoryRepo) UpdateOrder(_ context.Context, id int64, updates map[string]interface{}) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	for col, val := range updates {
		switch col {
		case "status":
			o.Status = val.(OrderStatus)
		case "assigned_to":
			v := val.(int64)
			o.AssignedTo = &v
		case "follow_up_date":
			v := val.(time.Time)
			o.FollowUpDate = &v
		case "remarks":
			o.Remarks = val.(*string)
		case "priority":
			v := val.(Priority)
			o.Priority = &v
		case "pod_proof_url":
			o.PodProofURL = val.(*string)
		}
	}
	o.UpdatedAt = time.Now()
	m.orders[id] = o
	return nil
}

func (m *memoryRepo) AppendHistory(_ context.Context, entry HistoryEntry) (int64, error) {
	entry.ID = int64(len(m.history) + 1)
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	m.history = append(m.history, entry)
	return entry.ID, nil
}

func (m *memoryRepo) ListHistory(_ context.Context, orderID int64) ([]HistoryEntry, error) {
	var out []HistoryEntry
	for _, e := range m.history {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memoryRepo) ListDueFollowUps(_ context.Context, due time.Time) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.FollowUpDate == nil || o.FollowUpDate.After(due) {
			continue
		}
		if o.Status == OrderStatusCompleted || o.Status == OrderStatusHold {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRaiser struct {
	calls []int64
	err   error
}

func (f *fakeRaiser) RaiseForOrder(_ context.Context, orderID, _ int64, _ shared.Actor) error {
	f.calls = append(f.calls, orderID)
	return f.err
}

func testService(repo *memoryRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func strPtr(s string) *string { return &s }

func TestCreateOrderSeedsHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	actor := shared.Actor{ID: 3, Name: "Asha"}

	prio := PriorityHot
	order, warnings, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "Sunrise Public School",
		ContactName: "Principal Rao",
		Phone:       "9876500001",
		Products:    []ProductLine{{Product: "Abacus Kit", Quantity: 10, Price: 250}},
		Priority:    &prio,
		Remarks:     strPtr("first visit done"),
	}, actor)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, OrderStatusSaved, order.Status)
	require.Equal(t, 2500.0, order.TotalAmount)

	entries, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, actor.ID, entries[0].UpdatedBy)
	require.Equal(t, PriorityHot, *entries[0].Priority)
	require.Equal(t, "first visit done", *entries[0].Remarks)
}

func TestCreateOrderWithoutTrackedFieldsHasEmptyHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	order, _, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "Green Valley",
		ContactName: "Coordinator",
		Phone:       "9876500002",
	}, shared.Actor{ID: 1})
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCreateOrderAutoRaisesDC(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	raiser := &fakeRaiser{}
	svc.SetDCRaiser(raiser)

	emp := int64(42)
	order, warnings, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "Lakeview Academy",
		ContactName: "Admin",
		Phone:       "9876500003",
		AssignedTo:  &emp,
	}, shared.Actor{ID: 1})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, []int64{order.ID}, raiser.calls)
}

func TestCreateOrderAutoRaiseFailureIsWarning(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	svc.SetDCRaiser(&fakeRaiser{err: errors.New("employee inactive")})

	emp := int64(42)
	order, warnings, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "Hillcrest",
		ContactName: "Admin",
		Phone:       "9876500004",
		AssignedTo:  &emp,
	}, shared.Actor{ID: 1})
	require.NoError(t, err)
	require.NotZero(t, order.ID)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "delivery challan not raised")
}

func TestUpdateAppendsExactlyOneHistoryEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	actor := shared.Actor{ID: 5}

	order, _, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "St Marys",
		ContactName: "Office",
		Phone:       "9876500005",
	}, actor)
	require.NoError(t, err)

	followUp := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	prio := PriorityWarm
	_, err = svc.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{
		FollowUpDate: &followUp,
		Remarks:      strPtr("demo scheduled"),
		Priority:     &prio,
	}, actor)
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, followUp, *entries[0].FollowUpDate)
	require.Equal(t, "demo scheduled", *entries[0].Remarks)
	require.Equal(t, PriorityWarm, *entries[0].Priority)
}

func TestUpdateUntrackedFieldsSkipHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	actor := shared.Actor{ID: 5}

	order, _, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "Riverside",
		ContactName: "Office",
		Phone:       "9876500006",
	}, actor)
	require.NoError(t, err)

	status := OrderStatusPending
	_, err = svc.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{Status: &status}, actor)
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHistoryIsAppendOnlyAndNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	actor := shared.Actor{ID: 2}

	order, _, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		SchoolName:  "City Montessori",
		ContactName: "Office",
		Phone:       "9876500007",
		Remarks:     strPtr("initial call"),
	}, actor)
	require.NoError(t, err)

	for i, remark := range []string{"second call", "third call"} {
		_, err = svc.UpdateOrder(context.Background(), order.ID, UpdateOrderRequest{Remarks: strPtr(remark)}, actor)
		require.NoError(t, err, "update %d", i)
	}

	entries, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "third call", *entries[0].Remarks)
	require.Equal(t, "initial call", *entries[2].Remarks)
}

func TestHistorySynthesizesInitialEntryFromLegacyFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	// Legacy row: tracked fields set on the order but no history recorded.
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	prio := PriorityCold
	repo.orders[99] = Order{
		ID:         99,
		SchoolName: "Old Town School",
		Remarks:    strPtr("migrated remark"),
		Priority:   &prio,
		CreatedBy:  7,
		CreatedAt:  created,
	}

	entries, err := svc.History(context.Background(), 99)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "migrated remark", *entries[0].Remarks)
	require.Equal(t, PriorityCold, *entries[0].Priority)
	require.Equal(t, int64(7), entries[0].UpdatedBy)
	require.Equal(t, created, entries[0].UpdatedAt)
}

func TestHistoryUnknownOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	_, err := svc.History(context.Background(), 404)
	require.ErrorIs(t, err, ErrOrderNotFound)
}
