package TaskEngine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"Beacon/Audit"
	"Beacon/Distribution"
	"Beacon/Gamification"
	"Beacon/Models"
	"Beacon/Roles"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Business-rule failures surfaced to callers. Role failures deliberately say
// nothing about the levels involved.
var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalidInput               = errors.New("invalid input")
	ErrAlreadyCompleted           = errors.New("assignment already completed")
	ErrAlreadyPendingVerification = errors.New("assignment already awaiting verification")
	ErrAlreadyStarted             = errors.New("assignment already started")
	ErrNotPendingVerification     = errors.New("assignment is not awaiting verification")
	ErrInsufficientRole           = errors.New("you are not permitted to verify this submission")
	ErrMissingCompleter           = errors.New("assignment has no completer on record")
	ErrConflict                   = errors.New("assignment was modified concurrently, retry")
)

// Statuses from which a (re)completion attempt is legal. REJECTED is included
// on purpose: resubmission after rejection is a fresh completion.
var completableStatuses = []string{
	Models.AssignmentPending,
	Models.AssignmentInProgress,
	Models.AssignmentOverdue,
	Models.AssignmentRejected,
}

// Engine drives task fan-out and the completion/verification state machine.
// Every operation takes the tenant explicitly and scopes every query by it.
type Engine struct {
	DB         *gorm.DB
	Roles      *Roles.Service
	Dispatcher *Dispatcher
	Now        func() time.Time
}

func New(db *gorm.DB, roles *Roles.Service, dispatcher *Dispatcher) *Engine {
	return &Engine{
		DB:         db,
		Roles:      roles,
		Dispatcher: dispatcher,
		Now:        time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// TaskSpec carries everything needed to create and distribute one task.
type TaskSpec struct {
	Title            string
	Description      string
	Priority         string
	DueTime          *time.Time
	CreatedByID      uint
	CreatedByRole    string
	DistributionType string
	RegionIDs        []uint
	StoreIDs         []uint
}

// CreateTaskWithDistribution resolves the target stores and creates the task
// plus one PENDING assignment per store, all or nothing. A distribution that
// resolves to zero stores aborts creation entirely.
func (e *Engine) CreateTaskWithDistribution(ctx context.Context, companyID uint, spec TaskSpec) (Models.Task, error) {
	if spec.Title == "" {
		return Models.Task{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	storeIDs, err := Distribution.Resolve(e.DB.WithContext(ctx), companyID, spec.DistributionType, spec.RegionIDs, spec.StoreIDs)
	if err != nil {
		return Models.Task{}, err
	}

	task := Models.Task{
		CompanyID:        companyID,
		Title:            spec.Title,
		Description:      spec.Description,
		Priority:         spec.Priority,
		DueTime:          spec.DueTime,
		CreatedByID:      spec.CreatedByID,
		DistributionType: spec.DistributionType,
		RegionIDs:        jsonIDs(spec.RegionIDs),
		StoreIDs:         jsonIDs(spec.StoreIDs),
	}
	if task.Priority == "" {
		task.Priority = "NORMAL"
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}

		assignments := make([]Models.TaskAssignment, 0, len(storeIDs))
		for _, storeID := range storeIDs {
			assignments = append(assignments, Models.TaskAssignment{
				CompanyID: companyID,
				TaskID:    task.ID,
				StoreID:   storeID,
				Status:    Models.AssignmentPending,
			})
		}
		if err := tx.Create(&assignments).Error; err != nil {
			return err
		}
		task.Assignments = assignments

		return Audit.Log(tx, companyID, Audit.Entry{
			EntityType:      "TASK",
			EntityID:        task.ID,
			Action:          "TASK_CREATED",
			PerformedByID:   spec.CreatedByID,
			PerformedByRole: spec.CreatedByRole,
			NewValue: map[string]interface{}{
				"title":             task.Title,
				"distribution_type": task.DistributionType,
				"store_count":       len(storeIDs),
			},
		})
	})
	if err != nil {
		return Models.Task{}, err
	}

	e.Dispatcher.Run(e.taskCreatedEffects(ctx, task, storeIDs))
	return task, nil
}

func (e *Engine) taskCreatedEffects(ctx context.Context, task Models.Task, storeIDs []uint) []Effect {
	payload := map[string]interface{}{
		"task_id": task.ID,
		"title":   task.Title,
	}
	if task.DueTime != nil {
		payload["due_time"] = task.DueTime
	}

	effects := make([]Effect, 0, len(storeIDs)+2)
	for _, storeID := range storeIDs {
		effects = append(effects, storeEvent{StoreID: storeID, Event: "task:assigned", Payload: payload})
	}
	effects = append(effects, hqEvent{CompanyID: task.CompanyID, Event: "task:created", Payload: payload})

	var users []Models.User
	if err := e.DB.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND store_id IN ?", task.CompanyID, true, storeIDs).
		Find(&users).Error; err != nil {
		log.Printf("loading assignees for task %d push: %v", task.ID, err)
		return effects
	}
	userIDs := make([]uint, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}
	effects = append(effects, pushUsers{
		CompanyID: task.CompanyID,
		UserIDs:   userIDs,
		Title:     "New task assigned",
		Body:      task.Title,
		Data:      map[string]string{"task_id": fmt.Sprint(task.ID)},
	})
	return effects
}

// StartAssignment moves a PENDING assignment to IN_PROGRESS. It is purely a
// progress marker; no verification ledger row is opened until completion.
func (e *Engine) StartAssignment(ctx context.Context, companyID, taskID, storeID uint, userID uint, roleKey string) (Models.TaskAssignment, error) {
	assignment, err := e.loadAssignment(ctx, companyID, taskID, storeID)
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Models.TaskAssignment{}).
			Where("id = ? AND company_id = ? AND status = ?", assignment.ID, companyID, Models.AssignmentPending).
			Update("status", Models.AssignmentInProgress)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return e.startGuardError(tx, assignment.ID, companyID)
		}
		return Audit.Log(tx, companyID, Audit.Entry{
			EntityType:      Models.VerificationEntityTaskAssignment,
			EntityID:        assignment.ID,
			Action:          "ASSIGNMENT_STARTED",
			PerformedByID:   userID,
			PerformedByRole: roleKey,
			PreviousValue:   map[string]interface{}{"status": assignment.Status},
			NewValue:        map[string]interface{}{"status": Models.AssignmentInProgress},
			FieldChanged:    "status",
		})
	})
	if err != nil {
		return Models.TaskAssignment{}, err
	}
	return e.reloadAssignment(ctx, companyID, assignment.ID)
}

func (e *Engine) startGuardError(tx *gorm.DB, assignmentID, companyID uint) error {
	var current Models.TaskAssignment
	if err := tx.Where("id = ? AND company_id = ?", assignmentID, companyID).First(&current).Error; err != nil {
		return ErrNotFound
	}
	switch current.Status {
	case Models.AssignmentInProgress:
		return ErrAlreadyStarted
	case Models.AssignmentPendingVerification:
		return ErrAlreadyPendingVerification
	case Models.AssignmentCompleted, Models.AssignmentVerified:
		return ErrAlreadyCompleted
	default:
		return fmt.Errorf("assignment %d cannot be started from %s", assignmentID, current.Status)
	}
}

// CompletionPayload identifies the completer and carries the submitted work.
type CompletionPayload struct {
	UserID    uint
	RoleKey   string
	Notes     string
	PhotoURLs []string
}

// CompleteAssignment drives the completion branch of the state machine. The
// completer's role decides the target state: the top of the hierarchy
// auto-verifies in one atomic transition, everyone else lands in
// PENDING_VERIFICATION. Exactly one Verification row and one audit row are
// written with the assignment update, in one transaction.
func (e *Engine) CompleteAssignment(ctx context.Context, companyID, taskID, storeID uint, p CompletionPayload) (Models.TaskAssignment, error) {
	var task Models.Task
	if err := e.DB.WithContext(ctx).
		Where("id = ? AND company_id = ?", taskID, companyID).
		First(&task).Error; err != nil {
		return Models.TaskAssignment{}, asNotFound(err)
	}

	assignment, err := e.loadAssignment(ctx, companyID, taskID, storeID)
	if err != nil {
		return Models.TaskAssignment{}, err
	}
	if err := completionGuard(assignment.Status); err != nil {
		return Models.TaskAssignment{}, err
	}

	requiresVerification, err := e.Roles.RequiresVerification(ctx, companyID, p.RoleKey)
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	completedAt := e.now()
	isResubmission := assignment.VerificationStatus == Models.VerificationRejected
	transition := completionTransition{
		CompletedByID: p.UserID,
		CompletedAt:   completedAt,
		Notes:         p.Notes,
		PhotoURLs:     p.PhotoURLs,
		AutoVerified:  !requiresVerification,
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Models.TaskAssignment{}).
			Where("id = ? AND company_id = ? AND status IN ?", assignment.ID, companyID, completableStatuses).
			Updates(transition.updates())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// A concurrent request won the race; report what the row looks
			// like now instead of double-applying the completion.
			var current Models.TaskAssignment
			if err := tx.Where("id = ? AND company_id = ?", assignment.ID, companyID).First(&current).Error; err != nil {
				return ErrNotFound
			}
			return completionConflict(current.Status)
		}

		verification := Models.Verification{
			CompanyID:       companyID,
			EntityType:      Models.VerificationEntityTaskAssignment,
			EntityID:        assignment.ID,
			SubmittedByID:   p.UserID,
			SubmittedByRole: p.RoleKey,
			SubmittedAt:     completedAt,
			Status:          Models.VerificationPending,
		}
		action := "ASSIGNMENT_COMPLETED"
		if transition.AutoVerified {
			verification.Status = Models.VerificationVerified
			verification.VerifiedByID = &p.UserID
			verification.VerifiedByRole = p.RoleKey
			verification.VerifiedAt = &completedAt
			action = "ASSIGNMENT_AUTO_VERIFIED"
		}
		if err := tx.Create(&verification).Error; err != nil {
			return err
		}

		return Audit.Log(tx, companyID, Audit.Entry{
			EntityType:      Models.VerificationEntityTaskAssignment,
			EntityID:        assignment.ID,
			Action:          action,
			PerformedByID:   p.UserID,
			PerformedByRole: p.RoleKey,
			PreviousValue:   assignmentSnapshot(assignment),
			NewValue:        transition.snapshot(),
			Notes:           p.Notes,
		})
	})
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	updated, err := e.reloadAssignment(ctx, companyID, assignment.ID)
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	e.Dispatcher.Run(e.completionEffects(ctx, task, updated, p, isResubmission, completedAt))
	return updated, nil
}

func (e *Engine) completionEffects(ctx context.Context, task Models.Task, a Models.TaskAssignment, p CompletionPayload, isResubmission bool, completedAt time.Time) []Effect {
	payload := map[string]interface{}{
		"task_id":       task.ID,
		"assignment_id": a.ID,
		"store_id":      a.StoreID,
		"title":         task.Title,
	}

	var effects []Effect
	if a.Status == Models.AssignmentVerified {
		effects = append(effects,
			storeEvent{StoreID: a.StoreID, Event: "task:completed", Payload: payload},
			complianceSnapshot{CompanyID: task.CompanyID, StoreID: a.StoreID, Day: task.CreatedAt},
		)
	} else {
		effects = append(effects,
			storeEvent{StoreID: a.StoreID, Event: "task:verification_pending", Payload: payload},
			pushUsers{
				CompanyID: task.CompanyID,
				UserIDs:   e.qualifyingVerifierIDs(ctx, task.CompanyID, p.RoleKey),
				Title:     "Verification pending",
				Body:      fmt.Sprintf("%q is waiting for your sign-off", task.Title),
				Data:      map[string]string{"assignment_id": fmt.Sprint(a.ID)},
			},
		)
	}

	effects = append(effects, reward{
		CompanyID:    task.CompanyID,
		ActionType:   Gamification.ActionTaskCompleted,
		UserID:       p.UserID,
		EntityType:   Models.VerificationEntityTaskAssignment,
		EntityID:     a.ID,
		FirstAttempt: !isResubmission,
	})
	if task.DueTime != nil && !completedAt.After(*task.DueTime) {
		effects = append(effects, reward{
			CompanyID:    task.CompanyID,
			ActionType:   Gamification.ActionTaskCompletedOnTime,
			UserID:       p.UserID,
			EntityType:   Models.VerificationEntityTaskAssignment,
			EntityID:     a.ID,
			FirstAttempt: !isResubmission,
		})
	}
	return effects
}

// qualifyingVerifierIDs returns the active users whose role strictly outranks
// the submitter's. Best-effort: a failed lookup only skips the push.
func (e *Engine) qualifyingVerifierIDs(ctx context.Context, companyID uint, submitterRoleKey string) []uint {
	roles, err := e.Roles.ActiveRoles(ctx, companyID)
	if err != nil {
		log.Printf("loading roles for verifier push: %v", err)
		return nil
	}
	submitterLevel := Roles.LevelOf(roles, submitterRoleKey)
	var keys []string
	for _, r := range roles {
		if Roles.CanVerifyLevels(r.Level, submitterLevel) {
			keys = append(keys, r.Key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	var ids []uint
	if err := e.DB.WithContext(ctx).Model(&Models.User{}).
		Where("company_id = ? AND is_active = ? AND role_key IN ?", companyID, true, keys).
		Pluck("id", &ids).Error; err != nil {
		log.Printf("loading verifiers for push: %v", err)
		return nil
	}
	return ids
}

// VerifierPayload identifies who is approving or rejecting.
type VerifierPayload struct {
	UserID  uint
	RoleKey string
}

// VerifyAssignment approves a submission. The verifier must outrank the
// submitter's recorded role; the open Verification row is closed as VERIFIED.
func (e *Engine) VerifyAssignment(ctx context.Context, companyID, assignmentID uint, v VerifierPayload, notes string) (Models.TaskAssignment, error) {
	return e.decide(ctx, companyID, assignmentID, v, decision{Approve: true, Notes: notes})
}

// RejectAssignment rejects a submission with a mandatory reason. The
// assignment can be completed again later; that resubmission opens a new
// Verification row.
func (e *Engine) RejectAssignment(ctx context.Context, companyID, assignmentID uint, v VerifierPayload, reason string) (Models.TaskAssignment, error) {
	if reason == "" {
		return Models.TaskAssignment{}, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}
	return e.decide(ctx, companyID, assignmentID, v, decision{Approve: false, Reason: reason})
}

type decision struct {
	Approve bool
	Notes   string
	Reason  string
}

func (e *Engine) decide(ctx context.Context, companyID, assignmentID uint, v VerifierPayload, d decision) (Models.TaskAssignment, error) {
	var assignment Models.TaskAssignment
	if err := e.DB.WithContext(ctx).
		Where("id = ? AND company_id = ?", assignmentID, companyID).
		First(&assignment).Error; err != nil {
		return Models.TaskAssignment{}, asNotFound(err)
	}

	if assignment.Status != Models.AssignmentPendingVerification {
		return Models.TaskAssignment{}, ErrNotPendingVerification
	}
	if assignment.CompletedByID == nil {
		return Models.TaskAssignment{}, ErrMissingCompleter
	}

	var open Models.Verification
	if err := e.DB.WithContext(ctx).
		Where("company_id = ? AND entity_type = ? AND entity_id = ? AND status = ?",
			companyID, Models.VerificationEntityTaskAssignment, assignmentID, Models.VerificationPending).
		Order("id DESC").
		First(&open).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Models.TaskAssignment{}, ErrMissingCompleter
		}
		return Models.TaskAssignment{}, err
	}

	allowed, err := e.Roles.CanVerify(ctx, companyID, v.RoleKey, open.SubmittedByRole)
	if err != nil {
		return Models.TaskAssignment{}, err
	}
	if !allowed {
		return Models.TaskAssignment{}, ErrInsufficientRole
	}

	decidedAt := e.now()
	transition := decisionTransition{
		Approve:      d.Approve,
		VerifiedByID: v.UserID,
		VerifiedAt:   decidedAt,
		Reason:       d.Reason,
	}
	action := "ASSIGNMENT_VERIFIED"
	if !d.Approve {
		action = "ASSIGNMENT_REJECTED"
	}

	err = e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Models.TaskAssignment{}).
			Where("id = ? AND company_id = ? AND status = ?", assignment.ID, companyID, Models.AssignmentPendingVerification).
			Updates(transition.updates())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Raced with a concurrent decision.
			return ErrNotPendingVerification
		}

		verUpdates := map[string]interface{}{
			"verified_by_id":   v.UserID,
			"verified_by_role": v.RoleKey,
			"verified_at":      decidedAt,
			"status":           Models.VerificationVerified,
		}
		if !d.Approve {
			verUpdates["status"] = Models.VerificationRejected
			verUpdates["rejection_reason"] = d.Reason
		}
		if err := tx.Model(&Models.Verification{}).Where("id = ?", open.ID).Updates(verUpdates).Error; err != nil {
			return err
		}

		return Audit.Log(tx, companyID, Audit.Entry{
			EntityType:      Models.VerificationEntityTaskAssignment,
			EntityID:        assignment.ID,
			Action:          action,
			PerformedByID:   v.UserID,
			PerformedByRole: v.RoleKey,
			PreviousValue:   assignmentSnapshot(assignment),
			NewValue:        transition.snapshot(),
			Notes:           d.Notes,
		})
	})
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	updated, err := e.reloadAssignment(ctx, companyID, assignment.ID)
	if err != nil {
		return Models.TaskAssignment{}, err
	}

	var task Models.Task
	if err := e.DB.WithContext(ctx).Where("id = ? AND company_id = ?", assignment.TaskID, companyID).First(&task).Error; err == nil {
		e.Dispatcher.Run(e.decisionEffects(task, updated, open, d))
	}
	return updated, nil
}

func (e *Engine) decisionEffects(task Models.Task, a Models.TaskAssignment, open Models.Verification, d decision) []Effect {
	payload := map[string]interface{}{
		"task_id":       task.ID,
		"assignment_id": a.ID,
		"store_id":      a.StoreID,
		"title":         task.Title,
	}

	if d.Approve {
		return []Effect{
			storeEvent{StoreID: a.StoreID, Event: "task:completed", Payload: payload},
			complianceSnapshot{CompanyID: task.CompanyID, StoreID: a.StoreID, Day: task.CreatedAt},
			pushUsers{
				CompanyID: task.CompanyID,
				UserIDs:   []uint{open.SubmittedByID},
				Title:     "Task approved",
				Body:      fmt.Sprintf("Your work on %q was verified", task.Title),
				Data:      map[string]string{"assignment_id": fmt.Sprint(a.ID)},
			},
		}
	}
	return []Effect{
		storeEvent{StoreID: a.StoreID, Event: "task:rejected", Payload: payload},
		pushUsers{
			CompanyID: task.CompanyID,
			UserIDs:   []uint{open.SubmittedByID},
			Title:     "Task rejected",
			Body:      fmt.Sprintf("Your work on %q was rejected: %s", task.Title, d.Reason),
			Data:      map[string]string{"assignment_id": fmt.Sprint(a.ID)},
		},
	}
}

// PendingVerification is one submission awaiting a decision, with enough
// context to render a review queue.
type PendingVerification struct {
	Assignment      Models.TaskAssignment `json:"assignment"`
	TaskTitle       string                `json:"task_title"`
	SubmittedByID   uint                  `json:"submitted_by_id"`
	SubmittedByRole string                `json:"submitted_by_role"`
	SubmittedAt     time.Time             `json:"submitted_at"`
}

// PendingVerifications lists submissions the requester's role outranks,
// optionally narrowed to one store.
func (e *Engine) PendingVerifications(ctx context.Context, companyID uint, requesterRoleKey string, storeID *uint) ([]PendingVerification, error) {
	roles, err := e.Roles.ActiveRoles(ctx, companyID)
	if err != nil {
		return nil, err
	}
	requesterLevel := Roles.LevelOf(roles, requesterRoleKey)

	query := e.DB.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, Models.AssignmentPendingVerification)
	if storeID != nil {
		query = query.Where("store_id = ?", *storeID)
	}
	var assignments []Models.TaskAssignment
	if err := query.Order("id").Find(&assignments).Error; err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []PendingVerification{}, nil
	}

	assignmentIDs := make([]uint, 0, len(assignments))
	taskIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		assignmentIDs = append(assignmentIDs, a.ID)
		taskIDs = append(taskIDs, a.TaskID)
	}

	var openRows []Models.Verification
	if err := e.DB.WithContext(ctx).
		Where("company_id = ? AND entity_type = ? AND entity_id IN ? AND status = ?",
			companyID, Models.VerificationEntityTaskAssignment, assignmentIDs, Models.VerificationPending).
		Order("id").
		Find(&openRows).Error; err != nil {
		return nil, err
	}
	openByAssignment := make(map[uint]Models.Verification, len(openRows))
	for _, row := range openRows {
		openByAssignment[row.EntityID] = row
	}

	var tasks []Models.Task
	if err := e.DB.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, taskIDs).
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	titleByTask := make(map[uint]string, len(tasks))
	for _, t := range tasks {
		titleByTask[t.ID] = t.Title
	}

	result := make([]PendingVerification, 0, len(assignments))
	for _, a := range assignments {
		open, ok := openByAssignment[a.ID]
		if !ok {
			continue
		}
		if !Roles.CanVerifyLevels(requesterLevel, Roles.LevelOf(roles, open.SubmittedByRole)) {
			continue
		}
		result = append(result, PendingVerification{
			Assignment:      a,
			TaskTitle:       titleByTask[a.TaskID],
			SubmittedByID:   open.SubmittedByID,
			SubmittedByRole: open.SubmittedByRole,
			SubmittedAt:     open.SubmittedAt,
		})
	}
	return result, nil
}

// AssignmentHistory returns the full verification ledger of one assignment,
// oldest attempt first.
func (e *Engine) AssignmentHistory(ctx context.Context, companyID, assignmentID uint) ([]Models.Verification, error) {
	if _, err := e.reloadAssignment(ctx, companyID, assignmentID); err != nil {
		return nil, err
	}
	var rows []Models.Verification
	err := e.DB.WithContext(ctx).
		Where("company_id = ? AND entity_type = ? AND entity_id = ?",
			companyID, Models.VerificationEntityTaskAssignment, assignmentID).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// MarkOverdue sweeps PENDING/IN_PROGRESS assignments of tasks whose due time
// has passed into OVERDUE. Assignments already submitted or decided are left
// alone. Returns the number of rows moved.
func (e *Engine) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := e.DB.WithContext(ctx).Model(&Models.TaskAssignment{}).
		Where("status IN ?", []string{Models.AssignmentPending, Models.AssignmentInProgress}).
		Where("task_id IN (?)", e.DB.Model(&Models.Task{}).Select("id").
			Where("due_time IS NOT NULL AND due_time < ?", now)).
		Update("status", Models.AssignmentOverdue)
	return res.RowsAffected, res.Error
}

// --- transitions ---

// completionTransition writes the completion fields and both state columns in
// one conditional update. Auto-verification is the same single transition
// with the decision fields filled from the completer.
type completionTransition struct {
	CompletedByID uint
	CompletedAt   time.Time
	Notes         string
	PhotoURLs     []string
	AutoVerified  bool
}

func (t completionTransition) updates() map[string]interface{} {
	u := map[string]interface{}{
		"status":              Models.AssignmentPendingVerification,
		"verification_status": Models.VerificationPending,
		"completed_by_id":     t.CompletedByID,
		"completed_at":        t.CompletedAt,
		"notes":               t.Notes,
		"photo_urls":          jsonStrings(t.PhotoURLs),
		// a resubmission clears the previous decision
		"verified_by_id":   nil,
		"verified_at":      nil,
		"rejection_reason": "",
	}
	if t.AutoVerified {
		u["status"] = Models.AssignmentVerified
		u["verification_status"] = Models.VerificationVerified
		u["verified_by_id"] = t.CompletedByID
		u["verified_at"] = t.CompletedAt
	}
	return u
}

func (t completionTransition) snapshot() map[string]interface{} {
	status := Models.AssignmentPendingVerification
	if t.AutoVerified {
		status = Models.AssignmentVerified
	}
	return map[string]interface{}{
		"status":          status,
		"completed_by_id": t.CompletedByID,
		"completed_at":    t.CompletedAt,
	}
}

// decisionTransition closes a pending submission one way or the other.
type decisionTransition struct {
	Approve      bool
	VerifiedByID uint
	VerifiedAt   time.Time
	Reason       string
}

func (t decisionTransition) updates() map[string]interface{} {
	if t.Approve {
		return map[string]interface{}{
			"status":              Models.AssignmentVerified,
			"verification_status": Models.VerificationVerified,
			"verified_by_id":      t.VerifiedByID,
			"verified_at":         t.VerifiedAt,
		}
	}
	return map[string]interface{}{
		"status":              Models.AssignmentRejected,
		"verification_status": Models.VerificationRejected,
		"verified_by_id":      t.VerifiedByID,
		"verified_at":         t.VerifiedAt,
		"rejection_reason":    t.Reason,
	}
}

func (t decisionTransition) snapshot() map[string]interface{} {
	status := Models.AssignmentVerified
	if !t.Approve {
		status = Models.AssignmentRejected
	}
	return map[string]interface{}{
		"status":         status,
		"verified_by_id": t.VerifiedByID,
		"verified_at":    t.VerifiedAt,
	}
}

// --- helpers ---

func completionGuard(status string) error {
	switch status {
	case Models.AssignmentPending, Models.AssignmentInProgress, Models.AssignmentOverdue, Models.AssignmentRejected:
		return nil
	case Models.AssignmentPendingVerification:
		return ErrAlreadyPendingVerification
	case Models.AssignmentCompleted, Models.AssignmentVerified:
		return ErrAlreadyCompleted
	default:
		return fmt.Errorf("assignment in unexpected status %s", status)
	}
}

// completionConflict names the failure after a guarded completion update
// matched zero rows. When the re-read status itself explains the miss, that
// guard error wins; a status that still looks completable means another
// writer moved the row between statements, which is a retryable conflict.
func completionConflict(status string) error {
	if err := completionGuard(status); err != nil {
		return err
	}
	return ErrConflict
}

func (e *Engine) loadAssignment(ctx context.Context, companyID, taskID, storeID uint) (Models.TaskAssignment, error) {
	var a Models.TaskAssignment
	err := e.DB.WithContext(ctx).
		Where("company_id = ? AND task_id = ? AND store_id = ?", companyID, taskID, storeID).
		First(&a).Error
	if err != nil {
		return Models.TaskAssignment{}, asNotFound(err)
	}
	return a, nil
}

func (e *Engine) reloadAssignment(ctx context.Context, companyID, assignmentID uint) (Models.TaskAssignment, error) {
	var a Models.TaskAssignment
	err := e.DB.WithContext(ctx).
		Where("id = ? AND company_id = ?", assignmentID, companyID).
		First(&a).Error
	if err != nil {
		return Models.TaskAssignment{}, asNotFound(err)
	}
	return a, nil
}

func assignmentSnapshot(a Models.TaskAssignment) map[string]interface{} {
	return map[string]interface{}{
		"status":              a.Status,
		"verification_status": a.VerificationStatus,
		"completed_by_id":     a.CompletedByID,
		"completed_at":        a.CompletedAt,
		"verified_by_id":      a.VerifiedByID,
		"verified_at":         a.VerifiedAt,
		"rejection_reason":    a.RejectionReason,
	}
}

func asNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func jsonIDs(ids []uint) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}

func jsonStrings(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}
