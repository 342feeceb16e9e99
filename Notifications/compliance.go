package Notifications

import (
	"time"

	"Beacon/Models"

	"gorm.io/gorm"
)

// StoreCompliance counts one store's assignments across the tasks created on
// the given day. Emitted alongside completion events so dashboards can update
// without re-querying.
func StoreCompliance(db *gorm.DB, companyID, storeID uint, day time.Time) (map[string]interface{}, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	base := func() *gorm.DB {
		return db.Model(&Models.TaskAssignment{}).
			Joins("JOIN tasks ON tasks.id = task_assignments.task_id").
			Where("task_assignments.company_id = ? AND task_assignments.store_id = ?", companyID, storeID).
			Where("tasks.created_at >= ? AND tasks.created_at < ?", dayStart, dayEnd)
	}

	var total, completed, pending, overdue int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("task_assignments.status IN ?",
		[]string{Models.AssignmentCompleted, Models.AssignmentVerified}).Count(&completed).Error; err != nil {
		return nil, err
	}
	if err := base().Where("task_assignments.status IN ?",
		[]string{Models.AssignmentPending, Models.AssignmentInProgress, Models.AssignmentPendingVerification}).Count(&pending).Error; err != nil {
		return nil, err
	}
	if err := base().Where("task_assignments.status = ?", Models.AssignmentOverdue).Count(&overdue).Error; err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"store_id":  storeID,
		"date":      dayStart.Format("2006-01-02"),
		"total":     total,
		"completed": completed,
		"pending":   pending,
		"overdue":   overdue,
	}, nil
}
