package Audit

import (
	"encoding/json"
	"fmt"

	"Beacon/Models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry is one audit record. PreviousValue and NewValue take any
// JSON-marshalable snapshot of the entity before and after the change.
type Entry struct {
	EntityType      string
	EntityID        uint
	Action          string
	PerformedByID   uint
	PerformedByRole string
	PreviousValue   interface{}
	NewValue        interface{}
	FieldChanged    string
	Notes           string
}

// Log writes one audit row. Callers pass the transaction the change itself
// runs in: audit completeness is part of the transition, so a failed audit
// write fails the whole operation.
func Log(tx *gorm.DB, companyID uint, e Entry) error {
	prev, err := snapshot(e.PreviousValue)
	if err != nil {
		return fmt.Errorf("audit previous value: %w", err)
	}
	next, err := snapshot(e.NewValue)
	if err != nil {
		return fmt.Errorf("audit new value: %w", err)
	}

	row := Models.AuditLog{
		CompanyID:       companyID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          e.Action,
		PerformedByID:   e.PerformedByID,
		PerformedByRole: e.PerformedByRole,
		PreviousValue:   prev,
		NewValue:        next,
		FieldChanged:    e.FieldChanged,
		Notes:           e.Notes,
	}
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("audit write: %w", err)
	}
	return nil
}

func snapshot(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
