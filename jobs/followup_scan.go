package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/edusales-crm/edusales-crm/internal/orders"
	"github.com/edusales-crm/edusales-crm/internal/users"
)

// TaskFollowupScan finds deals whose follow-up date has arrived and
// notifies the assigned employees by mail.
const TaskFollowupScan = "orders:followup_scan"

// FollowUpLister is the deal-store surface the scan needs.
type FollowUpLister interface {
	ListDueFollowUps(ctx context.Context, due time.Time) ([]orders.Order, error)
}

// UserDirectory resolves assignees to mail recipients.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// EmailEnqueuer hands notification mails back to the queue.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// FollowupScanPayload carries scheduling metadata.
type FollowupScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewFollowupScanTask constructs the scan task.
func NewFollowupScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(FollowupScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFollowupScan, body, asynq.Queue(QueueDefault)), nil
}

// NewFollowupScanHandler builds the task handler. Per-deal failures are
// logged and skipped so one bad assignee never blocks the whole scan.
func NewFollowupScanHandler(deals FollowUpLister, directory UserDirectory, mail EmailEnqueuer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload FollowupScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		due := payload.ScheduledFor
		if due.IsZero() {
			due = time.Now()
		}
		dueOrders, err := deals.ListDueFollowUps(ctx, due)
		if err != nil {
			logger.Error("follow-up scan failed", slog.Any("error", err))
			return err
		}

		notified := 0
		for _, order := range dueOrders {
			if order.AssignedTo == nil {
				continue
			}
			assignee, err := directory.GetUser(ctx, *order.AssignedTo)
			if err != nil {
				logger.Warn("follow-up assignee lookup failed", slog.Int64("order_id", order.ID), slog.Any("error", err))
				continue
			}
			body := fmt.Sprintf("Follow up due for %s (contact %s, phone %s).", order.SchoolName, order.ContactName, order.Phone)
			if order.Remarks != nil {
				body += "\nLast remarks: " + *order.Remarks
			}
			_, err = mail.EnqueueSendEmail(ctx, SendEmailPayload{
				To:      assignee.Email,
				Subject: "Follow-up due: " + order.SchoolName,
				Body:    body,
			})
			if err != nil {
				logger.Warn("follow-up mail enqueue failed", slog.Int64("order_id", order.ID), slog.Any("error", err))
				continue
			}
			notified++
		}
		logger.Info("follow-up scan done", slog.Int("due", len(dueOrders)), slog.Int("notified", notified))
		return nil
	}
}
