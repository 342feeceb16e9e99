package Models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records every state transition with before/after snapshots. Writes
// happen inside the same transaction as the transition they document, so a
// committed transition always has its audit row.
type AuditLog struct {
	gorm.Model
	CompanyID       uint           `json:"company_id" gorm:"not null;index"`
	EntityType      string         `json:"entity_type" gorm:"not null;index:idx_audit_entity"`
	EntityID        uint           `json:"entity_id" gorm:"not null;index:idx_audit_entity"`
	Action          string         `json:"action" gorm:"not null"`
	PerformedByID   uint           `json:"performed_by_id"`
	PerformedByRole string         `json:"performed_by_role"`
	PreviousValue   datatypes.JSON `json:"previous_value"`
	NewValue        datatypes.JSON `json:"new_value"`
	FieldChanged    string         `json:"field_changed"`
	Notes           string         `json:"notes"`
}
