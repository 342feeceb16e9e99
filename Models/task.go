package Models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Distribution modes decide which stores receive a task.
const (
	DistributionAllStores      = "ALL_STORES"
	DistributionByRegion       = "BY_REGION"
	DistributionSpecificStores = "SPECIFIC_STORES"
)

// Assignment lifecycle statuses.
const (
	AssignmentPending             = "PENDING"
	AssignmentInProgress          = "IN_PROGRESS"
	AssignmentCompleted           = "COMPLETED"
	AssignmentPendingVerification = "PENDING_VERIFICATION"
	AssignmentVerified            = "VERIFIED"
	AssignmentRejected            = "REJECTED"
	AssignmentOverdue             = "OVERDUE"
)

// Verification decision states, tracked independently of the assignment
// status for the window between submission and decision.
const (
	VerificationPending  = "PENDING"
	VerificationVerified = "VERIFIED"
	VerificationRejected = "REJECTED"
)

// Task is fanned out to stores at creation time. The distribution descriptor
// (type + region/store lists) is immutable once the task exists; changing
// targets means creating a new task.
type Task struct {
	gorm.Model
	CompanyID        uint             `json:"company_id" gorm:"not null;index"`
	Title            string           `json:"title" gorm:"not null"`
	Description      string           `json:"description"`
	Priority         string           `json:"priority" gorm:"default:'NORMAL'"`
	DueTime          *time.Time       `json:"due_time"`
	CreatedByID      uint             `json:"created_by_id"`
	DistributionType string           `json:"distribution_type" gorm:"not null"`
	RegionIDs        datatypes.JSON   `json:"region_ids"`
	StoreIDs         datatypes.JSON   `json:"store_ids"`
	Assignments      []TaskAssignment `json:"assignments,omitempty"`
}

// TaskAssignment is one (task, store) pair with its own lifecycle. Status and
// VerificationStatus are only ever written together by the engine's
// transition code, which keeps the two columns consistent.
type TaskAssignment struct {
	gorm.Model
	CompanyID          uint           `json:"company_id" gorm:"not null;index"`
	TaskID             uint           `json:"task_id" gorm:"not null;uniqueIndex:idx_task_store"`
	StoreID            uint           `json:"store_id" gorm:"not null;uniqueIndex:idx_task_store"`
	Status             string         `json:"status" gorm:"not null;default:'PENDING'"`
	CompletedByID      *uint          `json:"completed_by_id"`
	CompletedAt        *time.Time     `json:"completed_at"`
	Notes              string         `json:"notes"`
	PhotoURLs          datatypes.JSON `json:"photo_urls"`
	VerificationStatus string         `json:"verification_status" gorm:"default:''"`
	VerifiedByID       *uint          `json:"verified_by_id"`
	VerifiedAt         *time.Time     `json:"verified_at"`
	RejectionReason    string         `json:"rejection_reason"`
}
