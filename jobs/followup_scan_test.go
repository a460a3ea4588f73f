package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/users"
)

type fakeLister struct {
	due []orders.Order
	err error
}

func (f *fakeLister) ListDueFollowUps(_ context.Context, _ time.Time) ([]orders.Order, error) {
	return f.due, f.err
}

type fakeDirectory struct {
	users map[int64]users.User
}

func (f *fakeDirectory) GetUser(_ context.Context, id int64) (users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return users.User{}, errors.New("no such user")
	}
	return u, nil
}

type fakeEnqueuer struct {
	sent []SendEmailPayload
	err  error
}

func (f *fakeEnqueuer) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func TestFollowupScanEnqueuesMailPerAssignedDeal(t *testing.T) {
	lister := &fakeLister{due: []orders.Order{
		{ID: 1, SchoolName: "Sunrise Public School", ContactName: "Principal Rao", Phone: "9876500001", AssignedTo: int64Ptr(11), Remarks: strPtr("demo pending")},
		{ID: 2, SchoolName: "Green Valley", ContactName: "Coordinator", Phone: "9876500002", AssignedTo: int64Ptr(12)},
	}}
	directory := &fakeDirectory{users: map[int64]users.User{
		11: {ID: 11, Email: "asha@edusales.local", Name: "Asha"},
		12: {ID: 12, Email: "ravi@edusales.local", Name: "Ravi"},
	}}
	enqueuer := &fakeEnqueuer{}

	task, err := NewFollowupScanTask(time.Date(2026, 8, 30, 7, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	handler := NewFollowupScanHandler(lister, directory, enqueuer, testLogger())
	require.NoError(t, handler(context.Background(), task))

	require.Len(t, enqueuer.sent, 2)
	require.Equal(t, "asha@edusales.local", enqueuer.sent[0].To)
	require.Equal(t, "Follow-up due: Sunrise Public School", enqueuer.sent[0].Subject)
	require.Contains(t, enqueuer.sent[0].Body, "demo pending")
	require.Equal(t, "ravi@edusales.local", enqueuer.sent[1].To)
}

func TestFollowupScanSkipsUnassignedAndUnknownAssignees(t *testing.T) {
	lister := &fakeLister{due: []orders.Order{
		{ID: 1, SchoolName: "Hillcrest", ContactName: "Office", Phone: "9876500003"},
		{ID: 2, SchoolName: "Riverside", ContactName: "Office", Phone: "9876500004", AssignedTo: int64Ptr(99)},
		{ID: 3, SchoolName: "Lakeview", ContactName: "Office", Phone: "9876500005", AssignedTo: int64Ptr(11)},
	}}
	directory := &fakeDirectory{users: map[int64]users.User{
		11: {ID: 11, Email: "asha@edusales.local"},
	}}
	enqueuer := &fakeEnqueuer{}

	task, err := NewFollowupScanTask(time.Now())
	require.NoError(t, err)

	handler := NewFollowupScanHandler(lister, directory, enqueuer, testLogger())
	require.NoError(t, handler(context.Background(), task))

	require.Len(t, enqueuer.sent, 1)
	require.Equal(t, "asha@edusales.local", enqueuer.sent[0].To)
}

func TestFollowupScanPropagatesListerError(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	handler := NewFollowupScanHandler(lister, &fakeDirectory{}, &fakeEnqueuer{}, testLogger())

	task, err := NewFollowupScanTask(time.Now())
	require.NoError(t, err)
	require.Error(t, handler(context.Background(), task))
}

func TestFollowupScanBadPayloadSkipsRetry(t *testing.T) {
	handler := NewFollowupScanHandler(&fakeLister{}, &fakeDirectory{}, &fakeEnqueuer{}, testLogger())
	err := handler(context.Background(), asynq.NewTask(TaskFollowupScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeRefresher struct {
	changed int64
	err     error
	calls   int
}

func (f *fakeRefresher) RefreshStatuses(_ context.Context) (int64, error) {
	f.calls++
	return f.changed, f.err
}

func TestWarehouseStatusRefreshHandler(t *testing.T) {
	refresher := &fakeRefresher{changed: 7}
	handler := NewWarehouseStatusRefreshHandler(refresher, testLogger())

	task, err := NewWarehouseStatusRefreshTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, 1, refresher.calls)

	refresher.err = errors.New("db down")
	require.Error(t, handler(context.Background(), task))
}
