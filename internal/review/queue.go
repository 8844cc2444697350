// Package review is the manual-triage surface over a batch's items:
// paginated listing plus skip and bulk-skip.
package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/db"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/registry"
)

// bulkConcurrency bounds the parallel fan-out of skipMany. Each skip is an
// independent transaction; partial success is the contract, not a failure.
const bulkConcurrency = 8

type Queue struct {
	pool     db.Pool
	store    *batch.Store
	reg      registry.Registry
	pageSize int
}

func NewQueue(pool db.Pool, store *batch.Store, reg registry.Registry, pageSize int) *Queue {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Queue{pool: pool, store: store, reg: reg, pageSize: pageSize}
}

// Filter narrows a listing. Status accepts legacy vocabulary and is
// normalized before querying.
type Filter struct {
	Status   *models.ItemStatus
	Page     int
	PageSize int
}

type Page struct {
	Items    []models.BatchItem `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ListItems pages through a batch's items in creation order (page number,
// then insertion) so pagination is deterministic across calls absent
// concurrent mutation.
func (q *Queue) ListItems(ctx context.Context, batchID uuid.UUID, f Filter) (*Page, error) {
	if _, err := q.store.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size <= 0 {
		size = q.pageSize
	}
	offset := (page - 1) * size

	where := `batch_id = $1`
	args := []any{batchID}
	if f.Status != nil {
		where += ` AND status = $2`
		args = append(args, *f.Status)
	}

	var total int
	if err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM payslip_items WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count queue items: %w", err)
	}

	listArgs := append(args, size, offset)
	rows, err := q.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM payslip_items WHERE %s
			 ORDER BY page_number, created_at, id
			 LIMIT $%d OFFSET $%d`, batch.ItemColumns, where, len(args)+1, len(args)+2),
		listArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	items := []models.BatchItem{}
	for rows.Next() {
		item, err := batch.ScanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue rows: %w", err)
	}

	return &Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Assign resolves an item to an employee. An inactive target parks the item
// in BLOCKED_INACTIVE instead of failing outright, so the reviewer can
// retry with somebody else.
func (q *Queue) Assign(ctx context.Context, itemID, employeeID uuid.UUID, actor string) (*models.BatchItem, error) {
	emp, err := q.reg.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return q.store.Assign(ctx, itemID, emp.ID, emp.Active, actor)
}

// Skip terminally discards one item. Reason is mandatory.
func (q *Queue) Skip(ctx context.Context, itemID uuid.UUID, reason, actor string) (*models.BatchItem, error) {
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Reason: "required"}
	}
	return q.store.Skip(ctx, itemID, reason, actor)
}

// BulkResult reports skipMany outcomes per id. Ids in a non-skippable state
// land in Failed without aborting the rest.
type BulkResult struct {
	Succeeded []uuid.UUID `json:"succeeded"`
	Failed    []uuid.UUID `json:"failed"`
}

// SkipMany applies Skip to every id independently. Not atomic across ids:
// the caller re-queries to learn final state, there is no rollback.
func (q *Queue) SkipMany(ctx context.Context, itemIDs []uuid.UUID, reason, actor string) (*BulkResult, error) {
	if reason == "" {
		return nil, &models.ValidationError{Field: "reason", Reason: "required"}
	}

	var mu sync.Mutex
	result := &BulkResult{Succeeded: []uuid.UUID{}, Failed: []uuid.UUID{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, id := range itemIDs {
		g.Go(func() error {
			_, err := q.store.Skip(gctx, id, reason, actor)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, id)
				var guard *models.GuardViolation
				if !errors.As(err, &guard) && !errors.Is(err, models.ErrNotFound) {
					// Infrastructure failure, not a state conflict; still
					// reported per-id rather than failing the whole call.
					return err
				}
				return nil
			}
			result.Succeeded = append(result.Succeeded, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("bulk skip: %w", err)
	}
	return result, nil
}
