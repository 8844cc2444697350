package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/matcher"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/queue"
)

// IngestWorker runs the matching stage for one item: feed the stored OCR
// detection through the identity matcher and route the item to READY or
// PENDING_REVIEW. Matcher/registry failures route it to ERROR instead;
// an item is never dropped mid-pipeline.
type IngestWorker struct {
	store   *batch.Store
	matcher *matcher.Matcher
}

func NewIngestWorker(store *batch.Store, m *matcher.Matcher) *IngestWorker {
	return &IngestWorker{store: store, matcher: m}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.PayslipIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	itemID, err := uuid.Parse(payload.ItemID)
	if err != nil {
		return fmt.Errorf("parse item ID: %w", err)
	}

	item, err := w.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			slog.Warn("ingest task for missing item", "item_id", itemID)
			return nil
		}
		return fmt.Errorf("get item: %w", err)
	}
	if item.Status != models.ItemStatusPendingOCR {
		// Task redelivery after a processed item; routing already happened.
		slog.Info("item already routed", "item_id", itemID, "status", item.Status)
		return nil
	}

	proposal, err := w.matcher.Match(ctx, matcher.Detection{
		SourceRef:    item.SourceRef,
		PageNumber:   item.PageNumber,
		DetectedDNI:  item.DetectedDNI,
		DetectedName: item.DetectedName,
	})
	if err != nil {
		slog.Error("matching failed", "item_id", itemID, "error", err)
		if _, merr := w.store.MarkError(ctx, itemID, err.Error()); merr != nil {
			return fmt.Errorf("mark item error: %w", merr)
		}
		return nil
	}

	confidence := proposal.Confidence
	var assignee *uuid.UUID
	switch {
	case w.matcher.AutoAccept(proposal):
		assignee = proposal.EmployeeID
	case !w.matcher.NeedsReview(proposal):
		// Below the review floor the candidate is noise; the reviewer
		// starts from a blank item rather than a misleading suggestion.
		confidence = 0
	}

	routed, err := w.store.RouteAfterMatch(ctx, itemID, confidence, assignee)
	if err != nil {
		var guard *models.GuardViolation
		if errors.As(err, &guard) {
			// Lost a redelivery race; the first delivery already routed it.
			return nil
		}
		return fmt.Errorf("route item: %w", err)
	}

	slog.Info("item routed",
		"item_id", itemID,
		"status", routed.Status,
		"confidence", confidence,
		"auto_accepted", assignee != nil,
	)
	return nil
}
