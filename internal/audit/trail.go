// Package audit reads the item_events trail. Events are written by the
// batch store inside each transition's transaction; this package is the
// query side only.
package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominahq/payslip-service/internal/db"
	"github.com/nominahq/payslip-service/internal/models"
)

type Trail struct {
	pool db.Pool
}

func NewTrail(pool db.Pool) *Trail {
	return &Trail{pool: pool}
}

// ItemHistory returns every recorded transition for one item, oldest first.
func (t *Trail) ItemHistory(ctx context.Context, itemID uuid.UUID) ([]models.ItemEvent, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT id, item_id, from_status, to_status, actor, reason, created_at
		 FROM item_events WHERE item_id = $1 ORDER BY created_at, id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list item events: %w", err)
	}
	defer rows.Close()

	var events []models.ItemEvent
	for rows.Next() {
		var e models.ItemEvent
		var from, to string
		if err := rows.Scan(&e.ID, &e.ItemID, &from, &to, &e.Actor, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item event: %w", err)
		}
		e.FromStatus = models.ItemStatus(from)
		e.ToStatus = models.ItemStatus(to)
		events = append(events, e)
	}
	return events, rows.Err()
}
