// Package publication promotes reviewed items to employee-visible payslips
// and handles the irreversible revocation path.
package publication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/queue"
	"github.com/nominahq/payslip-service/internal/registry"
)

const bulkConcurrency = 8

// NotifyQueue is the slice of the task queue the controller needs.
// Notification is best-effort: enqueue failures are logged and never roll
// back a transition that already committed.
type NotifyQueue interface {
	EnqueueNotifyDeliver(payload queue.NotifyDeliverPayload) error
}

type Controller struct {
	store *batch.Store
	reg   registry.Registry
	queue NotifyQueue
}

func NewController(store *batch.Store, reg registry.Registry, q NotifyQueue) *Controller {
	return &Controller{store: store, reg: reg, queue: q}
}

// Publish makes a READY item visible to its assigned employee. The
// employee's active flag is re-checked here, not trusted from match time:
// people get deactivated between matching and publication. An inactive
// employee parks the item in BLOCKED_INACTIVE and the call is rejected with
// the item's real state.
func (c *Controller) Publish(ctx context.Context, itemID uuid.UUID, actor string) (*models.BatchItem, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ItemStatusReady {
		return nil, &models.GuardViolation{Op: "publish", ItemID: itemID.String(), Current: item.Status}
	}
	if item.AssignedEmployeeID == nil {
		return nil, &models.GuardViolation{Op: "publish", ItemID: itemID.String(), Current: item.Status}
	}

	active, err := c.reg.IsActive(ctx, *item.AssignedEmployeeID)
	if err != nil {
		return nil, err
	}
	if !active {
		blocked, berr := c.store.Block(ctx, itemID, actor)
		if berr != nil {
			return nil, berr
		}
		return blocked, &models.GuardViolation{Op: "publish", ItemID: itemID.String(), Current: blocked.Status}
	}

	published, err := c.store.Publish(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}

	c.notify(queue.EventPublished, published)
	return published, nil
}

// Revoke irreversibly withdraws a published item. The reason is optional
// but always recorded; nothing leaves REVOKED.
func (c *Controller) Revoke(ctx context.Context, itemID uuid.UUID, reason, actor string) (*models.BatchItem, error) {
	item, err := c.store.Revoke(ctx, itemID, reason, actor)
	if err != nil {
		return nil, err
	}
	c.notify(queue.EventRevoked, item)
	return item, nil
}

// RevokeBatch revokes every currently published item in the batch and
// returns how many actually transitioned. Items already revoked or never
// published are not counted and never fail the call; an empty set revokes
// zero items successfully.
func (c *Controller) RevokeBatch(ctx context.Context, batchID uuid.UUID, reason, actor string) (int, error) {
	if _, err := c.store.GetBatch(ctx, batchID); err != nil {
		return 0, err
	}

	ids, err := c.store.ListPublishedItemIDs(ctx, batchID)
	if err != nil {
		return 0, err
	}

	var revoked atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := c.Revoke(gctx, id, reason, actor); err != nil {
				var guard *models.GuardViolation
				if errors.As(err, &guard) {
					// Lost a race with a concurrent revoke; the item is
					// already withdrawn, nothing to count.
					return nil
				}
				return err
			}
			revoked.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(revoked.Load()), fmt.Errorf("revoke batch: %w", err)
	}
	return int(revoked.Load()), nil
}

func (c *Controller) notify(event string, item *models.BatchItem) {
	if item.AssignedEmployeeID == nil {
		return
	}
	err := c.queue.EnqueueNotifyDeliver(queue.NotifyDeliverPayload{
		Event:      event,
		EmployeeID: item.AssignedEmployeeID.String(),
		ItemID:     item.ID.String(),
	})
	if err != nil {
		slog.Error("enqueue notification failed", "event", event, "item_id", item.ID, "error", err)
	}
}
