// Package matcher proposes an employee for one OCR-scanned payslip item.
// It only proposes; assignment is a separate transition so auto-match and
// manual match share one code path and one audit trail.
package matcher

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nominahq/payslip-service/internal/config"
	"github.com/nominahq/payslip-service/internal/models"
	"github.com/nominahq/payslip-service/internal/registry"
)

// Confidence bands. An exact DNI hit is certain; a name-only match lands in
// [nameBandFloor, nameBandCeil] scaled by string similarity and can never
// reach the DNI band.
const (
	dniConfidence = 1.0
	nameBandFloor = 0.5
	nameBandCeil  = 0.8
)

// Detection is the already-extracted identity clue for one item. Extraction
// itself belongs to the external OCR service.
type Detection struct {
	SourceRef    string `json:"source_ref"`
	PageNumber   int    `json:"page_number,omitempty"`
	DetectedDNI  string `json:"detected_dni,omitempty"`
	DetectedName string `json:"detected_name,omitempty"`
}

// Proposal is the matcher's verdict: zero or one candidate plus confidence.
type Proposal struct {
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"`
	Confidence float64    `json:"confidence"`
	Active     bool       `json:"active"`
}

type Matcher struct {
	reg registry.Registry
	cfg config.MatchConfig
}

func New(reg registry.Registry, cfg config.MatchConfig) *Matcher {
	return &Matcher{reg: reg, cfg: cfg}
}

// Match is pure over its inputs plus a read-only registry lookup.
// DNI wins outright; otherwise the best fuzzy name candidate is scored into
// the name band; no hit means confidence zero and no candidate.
func (m *Matcher) Match(ctx context.Context, d Detection) (Proposal, error) {
	if dni := registry.NormalizeDNI(d.DetectedDNI); dni != "" {
		emp, err := m.reg.FindByDNI(ctx, dni)
		if err != nil {
			return Proposal{}, &models.CollaboratorError{System: "registry", Err: fmt.Errorf("dni lookup: %w", err)}
		}
		if emp != nil {
			id := emp.ID
			return Proposal{EmployeeID: &id, Confidence: dniConfidence, Active: emp.Active}, nil
		}
	}

	if d.DetectedName != "" {
		candidates, err := m.reg.FindByNameFuzzy(ctx, d.DetectedName)
		if err != nil {
			return Proposal{}, &models.CollaboratorError{System: "registry", Err: fmt.Errorf("name lookup: %w", err)}
		}
		if len(candidates) > 0 {
			best := candidates[0]
			id := best.Employee.ID
			return Proposal{
				EmployeeID: &id,
				Confidence: nameConfidence(best.Similarity),
				Active:     best.Employee.Active,
			}, nil
		}
	}

	return Proposal{Confidence: 0}, nil
}

// AutoAccept reports whether a proposal clears the auto-accept threshold
// with an active employee. Inactive matches always go to review.
func (m *Matcher) AutoAccept(p Proposal) bool {
	return p.EmployeeID != nil && p.Active && p.Confidence >= m.cfg.AutoAcceptThreshold
}

// NeedsReview reports whether the candidate is worth surfacing to a
// reviewer at all.
func (m *Matcher) NeedsReview(p Proposal) bool {
	return p.EmployeeID != nil && p.Confidence >= m.cfg.ReviewFloor
}

// nameConfidence maps a similarity in [0,1] linearly into the name band.
func nameConfidence(similarity float64) float64 {
	if similarity < 0 {
		similarity = 0
	}
	if similarity > 1 {
		similarity = 1
	}
	return nameBandFloor + similarity*(nameBandCeil-nameBandFloor)
}
