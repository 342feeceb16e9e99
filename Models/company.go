package Models

import "gorm.io/gorm"

// Company is the tenant. Every other table in the system carries a CompanyID
// and every query must be scoped by it.
type Company struct {
	gorm.Model
	Name     string `json:"name" gorm:"not null"`
	IsActive bool   `json:"is_active"`
}

type Region struct {
	gorm.Model
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	Name      string `json:"name" gorm:"not null"`
}

type Store struct {
	gorm.Model
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	RegionID  uint   `json:"region_id" gorm:"index"`
	Name      string `json:"name" gorm:"not null"`
	Address   string `json:"address"`
	IsActive  bool   `json:"is_active"`
}
