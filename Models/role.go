package Models

import "gorm.io/gorm"

// Role is per-tenant hierarchy configuration. Level is an integer ranking,
// higher outranks lower. Levels need not be unique within a company; the
// maximum level among active roles is the top of the hierarchy.
//
// Roles referenced by assignments are never hard-deleted, only deactivated.
type Role struct {
	gorm.Model
	CompanyID uint   `json:"company_id" gorm:"not null;uniqueIndex:idx_company_role_key"`
	Key       string `json:"key" gorm:"not null;uniqueIndex:idx_company_role_key"`
	Name      string `json:"name"`
	Level     int    `json:"level" gorm:"not null"`
	IsActive  bool   `json:"is_active"`
}
