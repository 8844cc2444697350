package models

import (
	"time"

	"github.com/google/uuid"
)

// Batch file types.
const (
	BatchFileTypePDF     = "pdf"
	BatchFileTypeArchive = "zip"
)

// Counts is the cached per-status projection of a batch's items. It is a
// materialized view over payslip_items, recomputed in the same transaction
// as every item write, never independent state.
type Counts struct {
	PendingOCR    int `json:"pending_ocr" db:"pending_ocr_count"`
	PendingReview int `json:"pending_review" db:"pending_review_count"`
	Ready         int `json:"ready" db:"ready_count"`
	Published     int `json:"published" db:"published_count"`
	Revoked       int `json:"revoked" db:"revoked_count"`
	Skipped       int `json:"skipped" db:"skipped_count"`
	Blocked       int `json:"blocked" db:"blocked_count"`
	Error         int `json:"error" db:"error_count"`
	Total         int `json:"total" db:"total_count"`
}

// Sum returns the total across the per-status counts, used to check the
// projection against the stored total.
func (c Counts) Sum() int {
	return c.PendingOCR + c.PendingReview + c.Ready + c.Published +
		c.Revoked + c.Skipped + c.Blocked + c.Error
}

type Batch struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	OriginalFileName string      `json:"original_file_name" db:"original_file_name"`
	OriginalFileType string      `json:"original_file_type" db:"original_file_type"`
	UploadedBy       uuid.UUID   `json:"uploaded_by" db:"uploaded_by"`
	SourcePath       string      `json:"-" db:"source_path"`
	PageCount        int         `json:"page_count,omitempty" db:"page_count"`
	Status           BatchStatus `json:"status" db:"status"`
	Counts           Counts      `json:"counts"`
	Progress         float64     `json:"progress"`
	CancelledAt      *time.Time  `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason     string      `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

func (b *Batch) Cancelled() bool { return b.CancelledAt != nil }

// BatchItem is one page or document inside a batch: the unit that gets
// matched to an employee and published. It points at the underlying content
// via SourceRef and never holds the bytes.
type BatchItem struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	BatchID            uuid.UUID  `json:"batch_id" db:"batch_id"`
	SourceRef          string     `json:"source_ref" db:"source_ref"`
	PageNumber         int        `json:"page_number,omitempty" db:"page_number"`
	DetectedDNI        string     `json:"detected_dni,omitempty" db:"detected_dni"`
	DetectedName       string     `json:"detected_name,omitempty" db:"detected_name"`
	Confidence         float64    `json:"confidence" db:"confidence"`
	AssignedEmployeeID *uuid.UUID `json:"assigned_employee_id,omitempty" db:"assigned_employee_id"`
	Status             ItemStatus `json:"status" db:"status"`
	Visible            bool       `json:"visible" db:"visible"`
	StatusReason       string     `json:"status_reason,omitempty" db:"status_reason"`
	RevocationReason   string     `json:"revocation_reason,omitempty" db:"revocation_reason"`
	PublishedAt        *time.Time `json:"published_at,omitempty" db:"published_at"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Employee is a read-only row from the employee registry. The pipeline
// never mutates employees.
type Employee struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	DNI           string     `json:"dni" db:"dni"`
	FullName      string     `json:"full_name" db:"full_name"`
	Email         string     `json:"email,omitempty" db:"email"`
	Active        bool       `json:"active" db:"active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
}

// ItemEvent is one row of the append-only transition audit trail.
type ItemEvent struct {
	ID         int64      `json:"id" db:"id"`
	ItemID     uuid.UUID  `json:"item_id" db:"item_id"`
	FromStatus ItemStatus `json:"from_status" db:"from_status"`
	ToStatus   ItemStatus `json:"to_status" db:"to_status"`
	Actor      string     `json:"actor,omitempty" db:"actor"`
	Reason     string     `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
