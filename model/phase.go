package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PhaseKind discriminates the two persisted phase variants. Contractor
// and sub-contractor phases live in separate tables but share one shape;
// coordinator logic branches on the kind, never on which table a lookup
// happened to succeed against.
type PhaseKind string

const (
	PhaseContractor    PhaseKind = "contractor"
	PhaseSubContractor PhaseKind = "sub_contractor"
)

// KindForUpload returns the phase variant matching an upload type.
func KindForUpload(t UploadType) PhaseKind {
	if t == TypeSubContractor {
		return PhaseSubContractor
	}
	return PhaseContractor
}

// Phase is a unit of billable work derived from one BOQ line item.
// Phases created by ingestion start inactive; activation happens later
// through the project workflow.
type Phase struct {
	ID          string          `json:"id"`
	Kind        PhaseKind       `json:"kind"`
	ProjectID   string          `json:"project_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Budget      decimal.Decimal `json:"budget"`
	Status      string          `json:"status"` // not_started, in_progress, completed
	IsActive    bool            `json:"is_active"`
	FromBOQ     bool            `json:"from_boq"`

	// LinkedContractorPhaseID is set only on sub-contractor phases that
	// were linked to a contractor phase.
	LinkedContractorPhaseID string `json:"linked_contractor_phase_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase status constants
const (
	PhaseNotStarted = "not_started"
	PhaseInProgress = "in_progress"
	PhaseCompleted  = "completed"
)
