package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TaskWarehouseStatusRefresh recomputes every item's derived stock
// status nightly, catching rows written before a min-stock change.
const TaskWarehouseStatusRefresh = "warehouse:status_refresh"

// StockRefresher is the warehouse surface the refresh task needs.
type StockRefresher interface {
	RefreshStatuses(ctx context.Context) (int64, error)
}

// WarehouseStatusRefreshPayload carries scheduling metadata.
type WarehouseStatusRefreshPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewWarehouseStatusRefreshTask constructs the refresh task.
func NewWarehouseStatusRefreshTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(WarehouseStatusRefreshPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarehouseStatusRefresh, body, asynq.Queue(QueueDefault)), nil
}

// NewWarehouseStatusRefreshHandler builds the task handler.
func NewWarehouseStatusRefreshHandler(stock StockRefresher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload WarehouseStatusRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		updated, err := stock.RefreshStatuses(ctx)
		if err != nil {
			logger.Error("warehouse status refresh failed", slog.Any("error", err))
			return err
		}
		logger.Info("warehouse status refresh done", slog.Int64("items_updated", updated))
		return nil
	}
}
