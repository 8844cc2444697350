package models

import (
	"fmt"
	"strings"
)

// ItemStatus is the lifecycle state of one payslip item.
type ItemStatus string

const (
	ItemStatusPendingOCR      ItemStatus = "PENDING_OCR"
	ItemStatusPendingReview   ItemStatus = "PENDING_REVIEW"
	ItemStatusReady           ItemStatus = "READY"
	ItemStatusPublished       ItemStatus = "PUBLISHED"
	ItemStatusRevoked         ItemStatus = "REVOKED"
	ItemStatusSkipped         ItemStatus = "SKIPPED"
	ItemStatusBlockedInactive ItemStatus = "BLOCKED_INACTIVE"
	ItemStatusError           ItemStatus = "ERROR"
)

// legacyItemStatuses maps pre-migration status strings onto the current
// vocabulary. Rows written before the v2 migration may still carry these;
// they are normalized on read and never written back.
var legacyItemStatuses = map[string]ItemStatus{
	"PENDING":  ItemStatusPendingReview,
	"ASSIGNED": ItemStatusReady,
	"SKIPPED":  ItemStatusSkipped,
}

var itemStatuses = map[ItemStatus]struct{}{
	ItemStatusPendingOCR:      {},
	ItemStatusPendingReview:   {},
	ItemStatusReady:           {},
	ItemStatusPublished:       {},
	ItemStatusRevoked:         {},
	ItemStatusSkipped:         {},
	ItemStatusBlockedInactive: {},
	ItemStatusError:           {},
}

// ParseItemStatus normalizes a stored or user-supplied status string,
// accepting both the current vocabulary and legacy aliases.
func ParseItemStatus(s string) (ItemStatus, error) {
	v := ItemStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := itemStatuses[v]; ok {
		return v, nil
	}
	if mapped, ok := legacyItemStatuses[string(v)]; ok {
		return mapped, nil
	}
	return "", fmt.Errorf("unknown item status %q", s)
}

func (s ItemStatus) String() string { return string(s) }

// Terminal reports whether no further transition leaves this status.
func (s ItemStatus) Terminal() bool {
	return s == ItemStatusRevoked || s == ItemStatusSkipped
}

// Skippable reports whether a manual skip is allowed from this status.
func (s ItemStatus) Skippable() bool {
	return s == ItemStatusPendingReview || s == ItemStatusError
}

// Assignable reports whether a manual assignment is allowed from this status.
func (s ItemStatus) Assignable() bool {
	return s == ItemStatusPendingReview || s == ItemStatusBlockedInactive
}

// Assigned reports whether an item in this status carries a live assignment.
// Revoked items keep assigned_employee_id for the audit trail but are not
// considered actively assigned.
func (s ItemStatus) Assigned() bool {
	switch s {
	case ItemStatusReady, ItemStatusPublished, ItemStatusBlockedInactive:
		return true
	}
	return false
}

// BatchStatus is the aggregate state of a batch, derived from its items.
type BatchStatus string

const (
	BatchStatusProcessing     BatchStatus = "PROCESSING"
	BatchStatusReview         BatchStatus = "REVIEW"
	BatchStatusReadyToPublish BatchStatus = "READY_TO_PUBLISH"
	BatchStatusPartial        BatchStatus = "PARTIAL"
	BatchStatusCompleted      BatchStatus = "COMPLETED"
	BatchStatusError          BatchStatus = "ERROR"
	BatchStatusCancelled      BatchStatus = "CANCELLED"
)

func (s BatchStatus) String() string { return string(s) }
