package Gamification

import (
	"fmt"

	"Beacon/Models"

	"gorm.io/gorm"
)

// Action types recognized by the points ledger.
const (
	ActionTaskCompleted       = "TASK_COMPLETED"
	ActionTaskCompletedOnTime = "TASK_COMPLETED_ON_TIME"
)

const (
	completionPoints = 10
	onTimeBonus      = 5
)

// Service awards gamification credits. Point values are fixed here; the
// engine only decides which actions fire and whether the work is a first
// attempt.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// OnActionCompleted records one credit for the user. Redoing work after a
// rejection earns half the completion award.
func (s *Service) OnActionCompleted(companyID uint, actionType string, userID uint, entityType string, entityID uint, firstAttempt bool) error {
	points := 0
	switch actionType {
	case ActionTaskCompleted:
		points = completionPoints
		if !firstAttempt {
			points = completionPoints / 2
		}
	case ActionTaskCompletedOnTime:
		points = onTimeBonus
	default:
		return fmt.Errorf("unknown gamification action %q", actionType)
	}

	entry := Models.PointsEntry{
		CompanyID:    companyID,
		UserID:       userID,
		ActionType:   actionType,
		EntityType:   entityType,
		EntityID:     entityID,
		Points:       points,
		FirstAttempt: firstAttempt,
	}
	return s.DB.Create(&entry).Error
}
