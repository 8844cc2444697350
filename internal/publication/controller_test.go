package publication

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/queue"
	"github.com/nominahq/payslip-service/internal/registry"
)

type fakeRegistry struct {
	active map[uuid.UUID]bool
}

func (f *fakeRegistry) FindByDNI(_ context.Context, _ string) (*models.Employee, error) {
	return nil, nil
}

func (f *fakeRegistry) FindByNameFuzzy(_ context.Context, _ string) ([]registry.NameMatch, error) {
	return nil, nil
}

func (f *fakeRegistry) GetByID(_ context.Context, id uuid.UUID) (*models.Employee, error) {
	active, ok := f.active[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.Employee{ID: id, Active: active}, nil
}

func (f *fakeRegistry) IsActive(_ context.Context, id uuid.UUID) (bool, error) {
	active, ok := f.active[id]
	if !ok {
		return false, models.ErrNotFound
	}
	return active, nil
}

func (f *fakeRegistry) Search(_ context.Context, _ string, _ int) ([]models.Employee, error) {
	return nil, nil
}

type fakeNotifyQueue struct {
	mu       sync.Mutex
	payloads []queue.NotifyDeliverPayload
	err      error
}

func (f *fakeNotifyQueue) EnqueueNotifyDeliver(p queue.NotifyDeliverPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

var itemCols = []string{
	"id", "batch_id", "source_ref", "page_number", "detected_dni", "detected_name",
	"confidence", "assigned_employee_id", "status", "visible", "status_reason",
	"revocation_reason", "published_at", "revoked_at", "created_at", "updated_at",
}

func itemRows(id, batchID uuid.UUID, status models.ItemStatus, assignee *uuid.UUID) *pgxmock.Rows {
	now := time.Now()
	visible := status == models.ItemStatusPublished
	return pgxmock.NewRows(itemCols).AddRow(
		id, batchID, "batches/b/page-1.pdf", 1, "12345678Z", "MARIA GARCIA",
		1.0, assignee, string(status), visible, "",
		"", (*time.Time)(nil), (*time.Time)(nil), now, now,
	)
}

func expectProjectionRefresh(mock pgxmock.PgxPoolIface, batchID uuid.UUID, status string, n int) {
	mock.ExpectQuery(`SELECT cancelled_at FROM payslip_batches WHERE id = (.+) FOR UPDATE`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow((*time.Time)(nil)))
	mock.ExpectQuery(`SELECT status, count\(\*\) FROM payslip_items WHERE batch_id =`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).AddRow(status, n))

	var c models.Counts
	switch models.ItemStatus(status) {
	case models.ItemStatusPublished:
		c.Published = n
	case models.ItemStatusRevoked:
		c.Revoked = n
	case models.ItemStatusBlockedInactive:
		c.Blocked = n
	}
	c.Total = n
	mock.ExpectExec(`UPDATE payslip_batches SET`).
		WithArgs(batchID, c.PendingOCR, c.PendingReview, c.Ready, c.Published, c.Revoked,
			c.Skipped, c.Blocked, c.Error, c.Total, batch.AggregateStatus(c, false)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func newController(t *testing.T, reg *fakeRegistry, nq *fakeNotifyQueue) (*Controller, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewController(batch.NewStore(mock), reg, nq), mock
}

func TestPublish_Success(t *testing.T) {
	empID := uuid.New()
	itemID, batchID := uuid.New(), uuid.New()
	nq := &fakeNotifyQueue{}
	c, mock := newController(t, &fakeRegistry{active: map[uuid.UUID]bool{empID: true}}, nq)

	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id =`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusReady, &empID))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id = (.+) FOR UPDATE`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusReady, &empID))
	mock.ExpectQuery(`UPDATE payslip_items`).
		WithArgs(itemID, models.ItemStatusPublished).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusPublished, &empID))
	mock.ExpectExec(`INSERT INTO item_events`).
		WithArgs(itemID, models.ItemStatusReady, models.ItemStatusPublished, "reviewer-1", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectProjectionRefresh(mock, batchID, "PUBLISHED", 1)
	mock.ExpectCommit()
	mock.ExpectRollback()

	item, err := c.Publish(context.Background(), itemID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusPublished, item.Status)
	assert.True(t, item.Visible)

	require.Len(t, nq.payloads, 1)
	assert.Equal(t, queue.EventPublished, nq.payloads[0].Event)
	assert.Equal(t, empID.String(), nq.payloads[0].EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_NotReady(t *testing.T) {
	itemID, batchID := uuid.New(), uuid.New()
	c, mock := newController(t, &fakeRegistry{}, &fakeNotifyQueue{})

	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id =`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusPendingReview, nil))

	_, err := c.Publish(context.Background(), itemID, "reviewer-1")
	var guard *models.GuardViolation
	require.ErrorAs(t, err, &guard)
	assert.Equal(t, models.ItemStatusPendingReview, guard.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_UnassignedReadyRejected(t *testing.T) {
	itemID, batchID := uuid.New(), uuid.New()
	c, mock := newController(t, &fakeRegistry{}, &fakeNotifyQueue{})

	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id =`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusReady, nil))

	_, err := c.Publish(context.Background(), itemID, "reviewer-1")
	var guard *models.GuardViolation
	require.ErrorAs(t, err, &guard)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_InactiveEmployeeBlocks(t *testing.T) {
	empID := uuid.New()
	itemID, batchID := uuid.New(), uuid.New()
	nq := &fakeNotifyQueue{}
	c, mock := newController(t, &fakeRegistry{active: map[uuid.UUID]bool{empID: false}}, nq)

	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id =`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusReady, &empID))

	// Deactivation discovered at publish time parks the item instead of
	// publishing to a former employee.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id = (.+) FOR UPDATE`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusReady, &empID))
	mock.ExpectQuery(`UPDATE payslip_items`).
		WithArgs(itemID, models.ItemStatusBlockedInactive).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusBlockedInactive, &empID))
	mock.ExpectExec(`INSERT INTO item_events`).
		WithArgs(itemID, models.ItemStatusReady, models.ItemStatusBlockedInactive, "reviewer-1", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectProjectionRefresh(mock, batchID, "BLOCKED_INACTIVE", 1)
	mock.ExpectCommit()
	mock.ExpectRollback()

	item, err := c.Publish(context.Background(), itemID, "reviewer-1")

	var guard *models.GuardViolation
	require.ErrorAs(t, err, &guard)
	assert.Equal(t, models.ItemStatusBlockedInactive, guard.Current)
	require.NotNil(t, item)
	assert.Equal(t, models.ItemStatusBlockedInactive, item.Status)
	assert.Empty(t, nq.payloads, "no notification for a blocked publish")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeBatch_EmptySet(t *testing.T) {
	batchID := uuid.New()
	c, mock := newController(t, &fakeRegistry{}, &fakeNotifyQueue{})

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM payslip_batches WHERE id =`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "original_file_name", "original_file_type", "uploaded_by", "source_path",
			"page_count", "status", "pending_ocr_count", "pending_review_count", "ready_count",
			"published_count", "revoked_count", "skipped_count", "blocked_count", "error_count",
			"total_count", "cancelled_at", "cancel_reason", "created_at", "updated_at",
		}).AddRow(
			batchID, "nominas.pdf", "pdf", uuid.New(), "batches/b/nominas.pdf",
			3, string(models.BatchStatusCompleted), 0, 0, 0,
			0, 0, 3, 0, 0,
			3, (*time.Time)(nil), "", now, now,
		))
	mock.ExpectQuery(`SELECT id FROM payslip_items`).
		WithArgs(batchID, models.ItemStatusPublished).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	count, err := c.RevokeBatch(context.Background(), batchID, "payroll error", "admin")
	require.NoError(t, err)
	assert.Equal(t, 0, count, "revoking a batch with nothing published succeeds with zero")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeBatch_RevokesOnlyPublishedItems(t *testing.T) {
	empA, empB := uuid.New(), uuid.New()
	idA, idB := uuid.New(), uuid.New()
	batchID := uuid.New()
	nq := &fakeNotifyQueue{}
	c, mock := newController(t, &fakeRegistry{}, nq)

	// The revoke fan-out runs concurrently, so the per-item transactions
	// may interleave in any order.
	mock.MatchExpectationsInOrder(false)

	now := time.Now()
	mock.ExpectQuery(`SELECT (.+) FROM payslip_batches WHERE id =`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "original_file_name", "original_file_type", "uploaded_by", "source_path",
			"page_count", "status", "pending_ocr_count", "pending_review_count", "ready_count",
			"published_count", "revoked_count", "skipped_count", "blocked_count", "error_count",
			"total_count", "cancelled_at", "cancel_reason", "created_at", "updated_at",
		}).AddRow(
			batchID, "nominas.pdf", "pdf", uuid.New(), "batches/b/nominas.pdf",
			3, string(models.BatchStatusPartial), 0, 0, 0,
			2, 0, 1, 0, 0,
			3, (*time.Time)(nil), "", now, now,
		))
	// Only the two published items are listed; the skipped one is never
	// touched and never counted.
	mock.ExpectQuery(`SELECT id FROM payslip_items`).
		WithArgs(batchID, models.ItemStatusPublished).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(idA).AddRow(idB))

	for _, tc := range []struct {
		id  uuid.UUID
		emp *uuid.UUID
	}{{idA, &empA}, {idB, &empB}} {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id = (.+) FOR UPDATE`).
			WithArgs(tc.id).
			WillReturnRows(itemRows(tc.id, batchID, models.ItemStatusPublished, tc.emp))
		mock.ExpectQuery(`UPDATE payslip_items`).
			WithArgs(tc.id, models.ItemStatusRevoked, "payroll error").
			WillReturnRows(itemRows(tc.id, batchID, models.ItemStatusRevoked, tc.emp))
		mock.ExpectExec(`INSERT INTO item_events`).
			WithArgs(tc.id, models.ItemStatusPublished, models.ItemStatusRevoked, "admin", "payroll error").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(`SELECT cancelled_at FROM payslip_batches WHERE id = (.+) FOR UPDATE`).
			WithArgs(batchID).
			WillReturnRows(pgxmock.NewRows([]string{"cancelled_at"}).AddRow((*time.Time)(nil)))
		mock.ExpectQuery(`SELECT status, count\(\*\) FROM payslip_items WHERE batch_id =`).
			WithArgs(batchID).
			WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
				AddRow("REVOKED", 2).AddRow("SKIPPED", 1))
		mock.ExpectExec(`UPDATE payslip_batches SET`).
			WithArgs(batchID, 0, 0, 0, 0, 2, 1, 0, 0, 3, models.BatchStatusCompleted).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	count, err := c.RevokeBatch(context.Background(), batchID, "payroll error", "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only the published items count as revoked")
	assert.Len(t, nq.payloads, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeBatch_BatchNotFound(t *testing.T) {
	c, mock := newController(t, &fakeRegistry{}, &fakeNotifyQueue{})

	mock.ExpectQuery(`SELECT (.+) FROM payslip_batches WHERE id =`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := c.RevokeBatch(context.Background(), uuid.New(), "", "admin")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevoke_NotificationFailureDoesNotFail(t *testing.T) {
	empID := uuid.New()
	itemID, batchID := uuid.New(), uuid.New()
	nq := &fakeNotifyQueue{err: assert.AnError}
	c, mock := newController(t, &fakeRegistry{}, nq)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payslip_items WHERE id = (.+) FOR UPDATE`).
		WithArgs(itemID).
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusPublished, &empID))
	mock.ExpectQuery(`UPDATE payslip_items`).
		WithArgs(itemID, models.ItemStatusRevoked, "wrong amount").
		WillReturnRows(itemRows(itemID, batchID, models.ItemStatusRevoked, &empID))
	mock.ExpectExec(`INSERT INTO item_events`).
		WithArgs(itemID, models.ItemStatusPublished, models.ItemStatusRevoked, "admin", "wrong amount").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectProjectionRefresh(mock, batchID, "REVOKED", 1)
	mock.ExpectCommit()
	mock.ExpectRollback()

	item, err := c.Revoke(context.Background(), itemID, "wrong amount", "admin")
	require.NoError(t, err, "a failed notification enqueue never rolls back the revoke")
	assert.Equal(t, models.ItemStatusRevoked, item.Status)
	assert.False(t, item.Visible)
	assert.NoError(t, mock.ExpectationsWereMet())
}
