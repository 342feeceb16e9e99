package Models

import (
	"time"

	"gorm.io/gorm"
)

// Entity kinds a verification row can document.
const (
	VerificationEntityTaskAssignment = "TASK_ASSIGNMENT"
	VerificationEntityIssue          = "ISSUE"
)

// Verification is the append-only submit/decide ledger. One row per
// completion attempt: a rejected-then-resubmitted assignment carries one row
// per attempt, so history survives later transitions on the assignment
// itself. The decision fields of the open row are filled in exactly once;
// rows are never deleted.
type Verification struct {
	gorm.Model
	CompanyID       uint       `json:"company_id" gorm:"not null;index"`
	EntityType      string     `json:"entity_type" gorm:"not null;index:idx_verification_entity"`
	EntityID        uint       `json:"entity_id" gorm:"not null;index:idx_verification_entity"`
	SubmittedByID   uint       `json:"submitted_by_id"`
	SubmittedByRole string     `json:"submitted_by_role"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	Status          string     `json:"status" gorm:"not null;default:'PENDING'"`
	VerifiedByID    *uint      `json:"verified_by_id"`
	VerifiedByRole  string     `json:"verified_by_role"`
	VerifiedAt      *time.Time `json:"verified_at"`
	RejectionReason string     `json:"rejection_reason"`
}
