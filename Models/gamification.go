package Models

import "gorm.io/gorm"

// PointsEntry is one gamification credit for one action. FirstAttempt is
// false when the action redoes previously rejected work, which earns a
// reduced award.
type PointsEntry struct {
	gorm.Model
	CompanyID    uint   `json:"company_id" gorm:"not null;index"`
	UserID       uint   `json:"user_id" gorm:"not null;index"`
	ActionType   string `json:"action_type" gorm:"not null"`
	EntityType   string `json:"entity_type"`
	EntityID     uint   `json:"entity_id"`
	Points       int    `json:"points"`
	FirstAttempt bool   `json:"first_attempt"`
}
