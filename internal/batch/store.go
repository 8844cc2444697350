package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nominahq/payslip-service/internal/db"
	"github.com/nominahq/payslip-service/internal/models"
)

const batchColumns = `id, original_file_name, original_file_type, uploaded_by, source_path,
	page_count, status, pending_ocr_count, pending_review_count, ready_count,
	published_count, revoked_count, skipped_count, blocked_count, error_count,
	total_count, cancelled_at, cancel_reason, created_at, updated_at`

// ItemColumns is the canonical select list for payslip_items, shared with
// the review queue's read path.
const ItemColumns = `id, batch_id, source_ref, page_number, detected_dni, detected_name,
	confidence, assigned_employee_id, status, visible, status_reason,
	revocation_reason, published_at, revoked_at, created_at, updated_at`

// Store owns all persistence for batches and their items. Items are the
// canonical state; the batch row's counts and status are a projection
// recomputed inside the same transaction as every item write.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateBatch(ctx context.Context, b *models.Batch) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO payslip_batches (id, original_file_name, original_file_type, uploaded_by, source_path, page_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		b.ID, b.OriginalFileName, b.OriginalFileType, b.UploadedBy, b.SourcePath, b.PageCount, models.BatchStatusProcessing,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	b.Status = models.BatchStatusProcessing
	return nil
}

func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	b, err := scanBatch(s.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM payslip_batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func (s *Store) ListBatches(ctx context.Context, uploadedBy uuid.UUID, limit, offset int) ([]models.Batch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM payslip_batches
		 WHERE uploaded_by = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		uploadedBy, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CancelBatch soft-cancels a batch. One-way: cancelling an already
// cancelled batch is a no-op that returns the current row.
func (s *Store) CancelBatch(ctx context.Context, id uuid.UUID, reason string) (*models.Batch, error) {
	_, err := s.pool.Exec(ctx,
		`UPDATE payslip_batches
		 SET cancelled_at = now(), cancel_reason = $2, status = $3, updated_at = now()
		 WHERE id = $1 AND cancelled_at IS NULL`,
		id, reason, models.BatchStatusCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel batch: %w", err)
	}
	return s.GetBatch(ctx, id)
}

// InsertItem creates an item in PENDING_OCR and refreshes the parent
// projection in the same transaction.
func (s *Store) InsertItem(ctx context.Context, item *models.BatchItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert item: %w", err)
	}
	defer tx.Rollback(ctx)

	item.Status = models.ItemStatusPendingOCR
	err = tx.QueryRow(ctx,
		`INSERT INTO payslip_items (id, batch_id, source_ref, page_number, detected_dni, detected_name, confidence, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		item.ID, item.BatchID, item.SourceRef, item.PageNumber, item.DetectedDNI, item.DetectedName, item.Confidence, item.Status,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}

	if err := s.refreshProjection(ctx, tx, item.BatchID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.BatchItem, error) {
	item, err := ScanItem(s.pool.QueryRow(ctx,
		`SELECT `+ItemColumns+` FROM payslip_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListPublishedItemIDs returns the ids of a batch's currently published
// items, in creation order.
func (s *Store) ListPublishedItemIDs(ctx context.Context, batchID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM payslip_items
		 WHERE batch_id = $1 AND status = $2
		 ORDER BY page_number, created_at, id`,
		batchID, models.ItemStatusPublished,
	)
	if err != nil {
		return nil, fmt.Errorf("list published items: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// mutation is one guarded item transition. The update SQL must target
// exactly the locked row ($1 = item id) and may set any item columns except
// batch_id.
type mutation struct {
	op     string
	guard  func(models.ItemStatus) bool
	update string
	args   []any
	actor  string
	reason string
	to     models.ItemStatus
}

// transition runs read-validate-write as one critical section: the item row
// is locked FOR UPDATE, the guard checked against its current status, the
// update applied, the audit event recorded and the parent batch projection
// refreshed, all in one transaction. A concurrent caller losing the race
// observes the winner's committed status in its GuardViolation.
func (s *Store) transition(ctx context.Context, itemID uuid.UUID, m mutation) (*models.BatchItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", m.op, err)
	}
	defer tx.Rollback(ctx)

	current, err := ScanItem(tx.QueryRow(ctx,
		`SELECT `+ItemColumns+` FROM payslip_items WHERE id = $1 FOR UPDATE`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock item for %s: %w", m.op, err)
	}

	if !m.guard(current.Status) {
		return nil, &models.GuardViolation{Op: m.op, ItemID: itemID.String(), Current: current.Status}
	}

	args := append([]any{itemID}, m.args...)
	item, err := ScanItem(tx.QueryRow(ctx, m.update, args...))
	if err != nil {
		return nil, fmt.Errorf("%s item: %w", m.op, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO item_events (item_id, from_status, to_status, actor, reason)
		 VALUES ($1, $2, $3, $4, $5)`,
		itemID, current.Status, m.to, m.actor, m.reason,
	)
	if err != nil {
		return nil, fmt.Errorf("record %s event: %w", m.op, err)
	}

	if err := s.refreshProjection(ctx, tx, item.BatchID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit %s: %w", m.op, err)
	}
	return item, nil
}

// RouteAfterMatch moves a PENDING_OCR item to READY (auto-accepted match)
// or PENDING_REVIEW, recording the matcher's confidence. Assignment is only
// written on the READY path.
func (s *Store) RouteAfterMatch(ctx context.Context, itemID uuid.UUID, confidence float64, assignee *uuid.UUID) (*models.BatchItem, error) {
	to := models.ItemStatusPendingReview
	if assignee != nil {
		to = models.ItemStatusReady
	}
	return s.transition(ctx, itemID, mutation{
		op:    "route",
		guard: func(st models.ItemStatus) bool { return st == models.ItemStatusPendingOCR },
		update: `UPDATE payslip_items
			 SET status = $2, confidence = $3, assigned_employee_id = $4, updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:  []any{to, confidence, assignee},
		actor: "matcher",
		to:    to,
	})
}

// MarkError routes an item to ERROR after an OCR or matcher failure. Valid
// from any non-terminal, non-published status; the item stays actionable in
// the review queue.
func (s *Store) MarkError(ctx context.Context, itemID uuid.UUID, reason string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op: "mark-error",
		guard: func(st models.ItemStatus) bool {
			return !st.Terminal() && st != models.ItemStatusPublished
		},
		update: `UPDATE payslip_items
			 SET status = $2, status_reason = $3, assigned_employee_id = NULL, updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:   []any{models.ItemStatusError, reason},
		actor:  "matcher",
		reason: reason,
		to:     models.ItemStatusError,
	})
}

// Assign sets the item's employee. Active employees take the item to READY;
// inactive ones to BLOCKED_INACTIVE, from where a later assign with an
// active employee retries the transition.
func (s *Store) Assign(ctx context.Context, itemID, employeeID uuid.UUID, active bool, actor string) (*models.BatchItem, error) {
	to := models.ItemStatusReady
	if !active {
		to = models.ItemStatusBlockedInactive
	}
	return s.transition(ctx, itemID, mutation{
		op:    "assign",
		guard: func(st models.ItemStatus) bool { return st.Assignable() },
		update: `UPDATE payslip_items
			 SET status = $2, assigned_employee_id = $3, updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:  []any{to, employeeID},
		actor: actor,
		to:    to,
	})
}

// Skip terminally skips an item under review or in error.
func (s *Store) Skip(ctx context.Context, itemID uuid.UUID, reason, actor string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op:    "skip",
		guard: func(st models.ItemStatus) bool { return st.Skippable() },
		update: `UPDATE payslip_items
			 SET status = $2, status_reason = $3, updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:   []any{models.ItemStatusSkipped, reason},
		actor:  actor,
		reason: reason,
		to:     models.ItemStatusSkipped,
	})
}

// Publish makes a READY item visible to its employee. Visibility flips in
// the same UPDATE as the status so there is no window where they disagree.
func (s *Store) Publish(ctx context.Context, itemID uuid.UUID, actor string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op:    "publish",
		guard: func(st models.ItemStatus) bool { return st == models.ItemStatusReady },
		update: `UPDATE payslip_items
			 SET status = $2, visible = TRUE, published_at = now(), updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:  []any{models.ItemStatusPublished},
		actor: actor,
		to:    models.ItemStatusPublished,
	})
}

// Block parks a READY item whose employee turned inactive between matching
// and publication.
func (s *Store) Block(ctx context.Context, itemID uuid.UUID, actor string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op:    "block",
		guard: func(st models.ItemStatus) bool { return st == models.ItemStatusReady },
		update: `UPDATE payslip_items
			 SET status = $2, updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:  []any{models.ItemStatusBlockedInactive},
		actor: actor,
		to:    models.ItemStatusBlockedInactive,
	})
}

// Revoke irreversibly withdraws a published item. The assignment stays on
// the row as the audit record of who it was published to.
func (s *Store) Revoke(ctx context.Context, itemID uuid.UUID, reason, actor string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op:    "revoke",
		guard: func(st models.ItemStatus) bool { return st == models.ItemStatusPublished },
		update: `UPDATE payslip_items
			 SET status = $2, visible = FALSE, revocation_reason = $3, revoked_at = now(), updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:   []any{models.ItemStatusRevoked, reason},
		actor:  actor,
		reason: reason,
		to:     models.ItemStatusRevoked,
	})
}

// Resubmit sends an ERROR item back through OCR.
func (s *Store) Resubmit(ctx context.Context, itemID uuid.UUID, actor string) (*models.BatchItem, error) {
	return s.transition(ctx, itemID, mutation{
		op:    "resubmit",
		guard: func(st models.ItemStatus) bool { return st == models.ItemStatusError },
		update: `UPDATE payslip_items
			 SET status = $2, status_reason = '', updated_at = now()
			 WHERE id = $1 RETURNING ` + ItemColumns,
		args:  []any{models.ItemStatusPendingOCR},
		actor: actor,
		to:    models.ItemStatusPendingOCR,
	})
}

// CountItems recomputes the per-status counts straight from the items
// table. Used by the projection refresh and by the count-projection
// integrity check.
func (s *Store) CountItems(ctx context.Context, batchID uuid.UUID) (models.Counts, error) {
	return countItems(ctx, s.pool, batchID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func countItems(ctx context.Context, q querier, batchID uuid.UUID) (models.Counts, error) {
	rows, err := q.Query(ctx,
		`SELECT status, count(*) FROM payslip_items WHERE batch_id = $1 GROUP BY status`,
		batchID,
	)
	if err != nil {
		return models.Counts{}, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	var c models.Counts
	for rows.Next() {
		var raw string
		var n int
		if err := rows.Scan(&raw, &n); err != nil {
			return models.Counts{}, fmt.Errorf("scan count: %w", err)
		}
		status, err := models.ParseItemStatus(raw)
		if err != nil {
			return models.Counts{}, fmt.Errorf("count items: %w", err)
		}
		switch status {
		case models.ItemStatusPendingOCR:
			c.PendingOCR += n
		case models.ItemStatusPendingReview:
			c.PendingReview += n
		case models.ItemStatusReady:
			c.Ready += n
		case models.ItemStatusPublished:
			c.Published += n
		case models.ItemStatusRevoked:
			c.Revoked += n
		case models.ItemStatusSkipped:
			c.Skipped += n
		case models.ItemStatusBlockedInactive:
			c.Blocked += n
		case models.ItemStatusError:
			c.Error += n
		}
		c.Total += n
	}
	return c, rows.Err()
}

// refreshProjection recomputes the batch's cached counts and derived status
// inside the caller's transaction. The batch row is locked first so two
// concurrent item transitions in the same batch serialize their recounts
// and the later one sees the earlier one's committed items.
func (s *Store) refreshProjection(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error {
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx,
		`SELECT cancelled_at FROM payslip_batches WHERE id = $1 FOR UPDATE`, batchID,
	).Scan(&cancelledAt)
	if err != nil {
		return fmt.Errorf("lock batch: %w", err)
	}

	c, err := countItems(ctx, tx, batchID)
	if err != nil {
		return err
	}

	status := AggregateStatus(c, cancelledAt != nil)
	_, err = tx.Exec(ctx,
		`UPDATE payslip_batches SET
			pending_ocr_count = $2, pending_review_count = $3, ready_count = $4,
			published_count = $5, revoked_count = $6, skipped_count = $7,
			blocked_count = $8, error_count = $9, total_count = $10,
			status = $11, updated_at = now()
		 WHERE id = $1`,
		batchID,
		c.PendingOCR, c.PendingReview, c.Ready, c.Published, c.Revoked,
		c.Skipped, c.Blocked, c.Error, c.Total, status,
	)
	if err != nil {
		return fmt.Errorf("refresh batch projection: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	var b models.Batch
	var status string
	err := row.Scan(
		&b.ID, &b.OriginalFileName, &b.OriginalFileType, &b.UploadedBy, &b.SourcePath,
		&b.PageCount, &status, &b.Counts.PendingOCR, &b.Counts.PendingReview,
		&b.Counts.Ready, &b.Counts.Published, &b.Counts.Revoked, &b.Counts.Skipped,
		&b.Counts.Blocked, &b.Counts.Error, &b.Counts.Total,
		&b.CancelledAt, &b.CancelReason, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = models.BatchStatus(status)
	b.Progress = Progress(b.Counts)
	return &b, nil
}

// ScanItem scans one payslip_items row selected with ItemColumns,
// normalizing legacy status strings.
func ScanItem(row rowScanner) (*models.BatchItem, error) {
	var item models.BatchItem
	var raw string
	err := row.Scan(
		&item.ID, &item.BatchID, &item.SourceRef, &item.PageNumber,
		&item.DetectedDNI, &item.DetectedName, &item.Confidence,
		&item.AssignedEmployeeID, &raw, &item.Visible, &item.StatusReason,
		&item.RevocationReason, &item.PublishedAt, &item.RevokedAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseItemStatus(raw)
	if err != nil {
		return nil, err
	}
	item.Status = status
	return &item, nil
}
