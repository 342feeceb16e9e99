package Models

import "gorm.io/gorm"

// User belongs to one company. HQ users have no store; store staff carry the
// store they work at. RoleKey references the company's Role table. Email is
// globally unique: login resolves a user by email alone, so the same address
// can never exist in two tenants.
type User struct {
	gorm.Model
	CompanyID uint   `json:"company_id" gorm:"not null;index"`
	Name      string `json:"name"`
	Email     string `json:"email" gorm:"uniqueIndex"`
	Password  []byte `json:"-"`
	RoleKey   string `json:"role_key"`
	StoreID   *uint  `json:"store_id"`
	IsActive  bool   `json:"is_active"`
}

// IsHQ reports whether the user sits at headquarters rather than a store.
func (u User) IsHQ() bool {
	return u.StoreID == nil
}
