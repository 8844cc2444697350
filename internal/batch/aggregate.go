package batch

import "github.com/nominahq/payslip-service/internal/models"

// AggregateStatus derives a batch's status from its item-status counts.
// Pure and total: every reachable combination of counts maps to exactly one
// status. Precedence, highest first: CANCELLED (sticky operator flag),
// all-error ERROR, settled outcomes (READY_TO_PUBLISH / COMPLETED), pending
// work without errors (PROCESSING / REVIEW), partial publication, and
// REVIEW as the catch-all for anything still needing operator action.
func AggregateStatus(c models.Counts, cancelled bool) models.BatchStatus {
	if cancelled {
		return models.BatchStatusCancelled
	}
	if c.Total == 0 {
		// Freshly created batch awaiting the splitter's first item.
		return models.BatchStatusProcessing
	}

	pending := c.PendingOCR + c.PendingReview
	actionable := pending + c.Blocked + c.Error

	if c.Error == c.Total {
		return models.BatchStatusError
	}

	if actionable == 0 {
		if c.Ready > 0 {
			return models.BatchStatusReadyToPublish
		}
		// Everything published, revoked or skipped.
		return models.BatchStatusCompleted
	}

	if pending > 0 && c.Error == 0 {
		reviewed := c.Ready + c.Published + c.Revoked + c.Skipped + c.Blocked
		if reviewed == 0 {
			return models.BatchStatusProcessing
		}
		return models.BatchStatusReview
	}

	if c.Published > 0 {
		return models.BatchStatusPartial
	}

	return models.BatchStatusReview
}

// Progress is the fraction of items that reached a settled outcome
// (published, revoked or skipped). Drives the batch progress bar.
func Progress(c models.Counts) float64 {
	if c.Total == 0 {
		return 0
	}
	settled := c.Published + c.Revoked + c.Skipped
	return float64(settled) / float64(c.Total)
}
