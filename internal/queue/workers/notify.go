package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nominahq/payslip-service/internal/notify"
	"github.com/nominahq/payslip-service/internal/queue"
)

// NotifyWorker drains the notification queue. Returning the delivery error
// lets asynq retry with backoff; after max retries the task is dropped,
// since notifications are best-effort by contract.
type NotifyWorker struct {
	notifier notify.Notifier
}

func NewNotifyWorker(n notify.Notifier) *NotifyWorker {
	return &NotifyWorker{notifier: n}
}

func (w *NotifyWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.NotifyDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	err := w.notifier.Deliver(ctx, notify.Notification{
		Event:      payload.Event,
		EmployeeID: payload.EmployeeID,
		ItemID:     payload.ItemID,
	})
	if err != nil {
		slog.Warn("notification delivery failed", "event", payload.Event, "item_id", payload.ItemID, "error", err)
		return err
	}
	return nil
}
