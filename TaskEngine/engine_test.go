package TaskEngine

import (
	"context"
	"testing"
	"time"

	"Beacon/Distribution"
	"Beacon/Gamification"
	"Beacon/Models"
	"Beacon/Roles"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Scope   uint
	Name    string
	Payload map[string]interface{}
}

type recordedPush struct {
	UserIDs []uint
	Title   string
}

type recordedReward struct {
	ActionType   string
	UserID       uint
	EntityID     uint
	FirstAttempt bool
}

// recordingSink implements all three sink interfaces and just remembers what
// it was asked to deliver.
type recordingSink struct {
	storeEvents []recordedEvent
	hqEvents    []recordedEvent
	pushes      []recordedPush
	rewards     []recordedReward
}

func (s *recordingSink) EmitToStore(storeID uint, name string, payload map[string]interface{}) error {
	s.storeEvents = append(s.storeEvents, recordedEvent{Scope: storeID, Name: name, Payload: payload})
	return nil
}

func (s *recordingSink) EmitToHQ(companyID uint, name string, payload map[string]interface{}) error {
	s.hqEvents = append(s.hqEvents, recordedEvent{Scope: companyID, Name: name, Payload: payload})
	return nil
}

func (s *recordingSink) SendToUsers(companyID uint, userIDs []uint, title, body string, data map[string]string) error {
	s.pushes = append(s.pushes, recordedPush{UserIDs: userIDs, Title: title})
	return nil
}

func (s *recordingSink) OnActionCompleted(companyID uint, actionType string, userID uint, entityType string, entityID uint, firstAttempt bool) error {
	s.rewards = append(s.rewards, recordedReward{
		ActionType:   actionType,
		UserID:       userID,
		EntityID:     entityID,
		FirstAttempt: firstAttempt,
	})
	return nil
}

func (s *recordingSink) storeEventNames() []string {
	names := make([]string, 0, len(s.storeEvents))
	for _, e := range s.storeEvents {
		names = append(names, e.Name)
	}
	return names
}

type fixture struct {
	db      *gorm.DB
	engine  *Engine
	sink    *recordingSink
	now     time.Time
	ownerID uint
	clerkID uint
	stores  []uint
}

const testCompany = uint(1)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	Models.Migrate(db)

	sink := &recordingSink{}
	engine := New(db, Roles.NewService(db, nil), &Dispatcher{
		DB:      db,
		Events:  sink,
		Push:    sink,
		Rewards: sink,
	})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time { return now }

	f := &fixture{db: db, engine: engine, sink: sink, now: now}

	require.NoError(t, db.Create(&Models.Role{CompanyID: testCompany, Key: "OWNER", Level: 100, IsActive: true}).Error)
	require.NoError(t, db.Create(&Models.Role{CompanyID: testCompany, Key: "CLERK", Level: 10, IsActive: true}).Error)

	for _, name := range []string{"Downtown", "Airport", "Harbor"} {
		store := Models.Store{CompanyID: testCompany, RegionID: 1, Name: name, IsActive: true}
		require.NoError(t, db.Create(&store).Error)
		f.stores = append(f.stores, store.ID)
	}

	owner := Models.User{CompanyID: testCompany, Name: "Olive", Email: "olive@acme.test", RoleKey: "OWNER", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	f.ownerID = owner.ID

	clerk := Models.User{CompanyID: testCompany, Name: "Casey", Email: "casey@acme.test", RoleKey: "CLERK", StoreID: &f.stores[0], IsActive: true}
	require.NoError(t, db.Create(&clerk).Error)
	f.clerkID = clerk.ID

	return f
}

func (f *fixture) createTask(t *testing.T, spec TaskSpec) Models.Task {
	t.Helper()
	if spec.Title == "" {
		spec.Title = "Restock shelves"
	}
	if spec.DistributionType == "" {
		spec.DistributionType = Models.DistributionAllStores
	}
	spec.CreatedByID = f.ownerID
	spec.CreatedByRole = "OWNER"
	task, err := f.engine.CreateTaskWithDistribution(context.Background(), testCompany, spec)
	require.NoError(t, err)
	return task
}

func (f *fixture) verificationRows(t *testing.T, assignmentID uint) []Models.Verification {
	t.Helper()
	var rows []Models.Verification
	require.NoError(t, f.db.
		Where("entity_type = ? AND entity_id = ?", Models.VerificationEntityTaskAssignment, assignmentID).
		Order("id").Find(&rows).Error)
	return rows
}

func (f *fixture) auditActions(t *testing.T, entityType string, entityID uint) []string {
	t.Helper()
	var rows []Models.AuditLog
	require.NoError(t, f.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).Order("id").Find(&rows).Error)
	actions := make([]string, 0, len(rows))
	for _, r := range rows {
		actions = append(actions, r.Action)
	}
	return actions
}

func TestCreateTaskFansOutToAllStores(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})

	require.Len(t, task.Assignments, 3)
	for _, a := range task.Assignments {
		assert.Equal(t, Models.AssignmentPending, a.Status)
		assert.Equal(t, testCompany, a.CompanyID)
	}
	assert.Equal(t, []string{"TASK_CREATED"}, f.auditActions(t, "TASK", task.ID))
	assert.Equal(t, []string{"task:assigned", "task:assigned", "task:assigned"}, f.sink.storeEventNames())
	require.Len(t, f.sink.hqEvents, 1)
	assert.Equal(t, "task:created", f.sink.hqEvents[0].Name)
}

func TestCreateTaskNoTargetsAbortsCreation(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateTaskWithDistribution(context.Background(), testCompany, TaskSpec{
		Title:            "Ghost task",
		CreatedByID:      f.ownerID,
		DistributionType: Models.DistributionByRegion,
		RegionIDs:        []uint{999},
	})
	assert.ErrorIs(t, err, Distribution.ErrNoTargets)

	var count int64
	require.NoError(t, f.db.Model(&Models.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateTaskWithDistribution(context.Background(), testCompany, TaskSpec{
		DistributionType: Models.DistributionAllStores,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClerkCompletionLandsInPendingVerification(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	f.sink.storeEvents = nil
	f.sink.pushes = nil

	a, err := f.engine.CompleteAssignment(context.Background(), testCompany, task.ID, f.stores[0], CompletionPayload{
		UserID:    f.clerkID,
		RoleKey:   "CLERK",
		Notes:     "done, photos attached",
		PhotoURLs: []string{"https://cdn.test/1.jpg"},
	})
	require.NoError(t, err)

	assert.Equal(t, Models.AssignmentPendingVerification, a.Status)
	assert.Equal(t, Models.VerificationPending, a.VerificationStatus)
	require.NotNil(t, a.CompletedByID)
	assert.Equal(t, f.clerkID, *a.CompletedByID)
	assert.Nil(t, a.VerifiedByID)

	rows := f.verificationRows(t, a.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, Models.VerificationPending, rows[0].Status)
	assert.Equal(t, "CLERK", rows[0].SubmittedByRole)

	assert.Equal(t, []string{"task:verification_pending"}, f.sink.storeEventNames())
	require.Len(t, f.sink.pushes, 1)
	assert.Equal(t, []uint{f.ownerID}, f.sink.pushes[0].UserIDs)

	require.Len(t, f.sink.rewards, 1)
	assert.True(t, f.sink.rewards[0].FirstAttempt)
	assert.Equal(t, []string{"ASSIGNMENT_COMPLETED"}, f.auditActions(t, Models.VerificationEntityTaskAssignment, a.ID))
}

func TestOwnerCompletionAutoVerifiesAtomically(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	f.sink.storeEvents = nil

	a, err := f.engine.CompleteAssignment(context.Background(), testCompany, task.ID, f.stores[0], CompletionPayload{
		UserID:  f.ownerID,
		RoleKey: "OWNER",
	})
	require.NoError(t, err)

	assert.Equal(t, Models.AssignmentVerified, a.Status)
	assert.Equal(t, Models.VerificationVerified, a.VerificationStatus)
	require.NotNil(t, a.CompletedAt)
	require.NotNil(t, a.VerifiedAt)
	assert.True(t, a.CompletedAt.Equal(*a.VerifiedAt))
	require.NotNil(t, a.VerifiedByID)
	assert.Equal(t, f.ownerID, *a.VerifiedByID)

	rows := f.verificationRows(t, a.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, Models.VerificationVerified, rows[0].Status)

	assert.Contains(t, f.sink.storeEventNames(), "task:completed")
	assert.Contains(t, f.sink.storeEventNames(), "store:compliance")
	assert.Equal(t, []string{"ASSIGNMENT_AUTO_VERIFIED"}, f.auditActions(t, Models.VerificationEntityTaskAssignment, a.ID))
}

func TestDoubleCompletionIsRejectedAndAwardedOnce(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	_, err = f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	assert.ErrorIs(t, err, ErrAlreadyPendingVerification)

	// Completing verified work is a different failure.
	_, err = f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[1], CompletionPayload{UserID: f.ownerID, RoleKey: "OWNER"})
	require.NoError(t, err)
	_, err = f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[1], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	completions := 0
	for _, r := range f.sink.rewards {
		if r.EntityID == a.ID {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
	assert.Len(t, f.verificationRows(t, a.ID), 1)
}

func TestOwnerVerifiesClerkSubmission(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)
	f.sink.storeEvents = nil
	f.sink.pushes = nil

	verified, err := f.engine.VerifyAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "looks good")
	require.NoError(t, err)

	assert.Equal(t, Models.AssignmentVerified, verified.Status)
	assert.Equal(t, Models.VerificationVerified, verified.VerificationStatus)
	require.NotNil(t, verified.VerifiedByID)
	assert.Equal(t, f.ownerID, *verified.VerifiedByID)

	// History shows submission and approval on the same attempt row.
	rows := f.verificationRows(t, a.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, Models.VerificationVerified, rows[0].Status)
	assert.Equal(t, "CLERK", rows[0].SubmittedByRole)
	assert.Equal(t, "OWNER", rows[0].VerifiedByRole)
	require.NotNil(t, rows[0].VerifiedAt)

	assert.Contains(t, f.sink.storeEventNames(), "task:completed")
	require.Len(t, f.sink.pushes, 1)
	assert.Equal(t, []uint{f.clerkID}, f.sink.pushes[0].UserIDs)
	assert.Equal(t, []string{"ASSIGNMENT_COMPLETED", "ASSIGNMENT_VERIFIED"}, f.auditActions(t, Models.VerificationEntityTaskAssignment, a.ID))
}

func TestClerkCannotVerifyClerk(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	_, err = f.engine.VerifyAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: 99, RoleKey: "CLERK"}, "")
	assert.ErrorIs(t, err, ErrInsufficientRole)

	reloaded, err := f.engine.reloadAssignment(ctx, testCompany, a.ID)
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentPendingVerification, reloaded.Status)
}

func TestVerifyOutsidePendingVerificationFails(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})

	_, err := f.engine.VerifyAssignment(context.Background(), testCompany, task.Assignments[0].ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "")
	assert.ErrorIs(t, err, ErrNotPendingVerification)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	_, err = f.engine.RejectAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	reloaded, err := f.engine.reloadAssignment(ctx, testCompany, a.ID)
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentPendingVerification, reloaded.Status)
}

func TestRejectThenResubmitOpensNewAttempt(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	rejected, err := f.engine.RejectAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "shelf 4 untouched")
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentRejected, rejected.Status)
	assert.Equal(t, Models.VerificationRejected, rejected.VerificationStatus)
	assert.Equal(t, "shelf 4 untouched", rejected.RejectionReason)

	f.sink.rewards = nil
	resubmitted, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentPendingVerification, resubmitted.Status)
	assert.Empty(t, resubmitted.RejectionReason)

	rows := f.verificationRows(t, a.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, Models.VerificationRejected, rows[0].Status)
	assert.Equal(t, "shelf 4 untouched", rows[0].RejectionReason)
	assert.Equal(t, Models.VerificationPending, rows[1].Status)

	require.Len(t, f.sink.rewards, 1)
	assert.False(t, f.sink.rewards[0].FirstAttempt)
}

func TestResubmissionPersistsReducedAward(t *testing.T) {
	f := newFixture(t)
	f.engine.Dispatcher.Rewards = Gamification.NewService(f.db)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)
	_, err = f.engine.RejectAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "missing photos")
	require.NoError(t, err)
	_, err = f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	var entries []Models.PointsEntry
	require.NoError(t, f.db.Where("entity_id = ?", a.ID).Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, 10, entries[0].Points)
	assert.True(t, entries[0].FirstAttempt)
	assert.Equal(t, 5, entries[1].Points)
	assert.False(t, entries[1].FirstAttempt)
}

func TestOnTimeCompletionEarnsBonus(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(2 * time.Hour)
	task := f.createTask(t, TaskSpec{Title: "Morning count", DueTime: &due})

	_, err := f.engine.CompleteAssignment(context.Background(), testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	actions := make([]string, 0, len(f.sink.rewards))
	for _, r := range f.sink.rewards {
		actions = append(actions, r.ActionType)
	}
	assert.Equal(t, []string{"TASK_COMPLETED", "TASK_COMPLETED_ON_TIME"}, actions)
}

func TestMarkOverdueThenLateCompletion(t *testing.T) {
	f := newFixture(t)
	due := f.now.Add(-time.Hour)
	task := f.createTask(t, TaskSpec{Title: "Yesterday's count", DueTime: &due})
	ctx := context.Background()

	moved, err := f.engine.MarkOverdue(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), moved)

	// Late completion is still legal, it just earns no on-time bonus.
	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentPendingVerification, a.Status)

	for _, r := range f.sink.rewards {
		assert.NotEqual(t, "TASK_COMPLETED_ON_TIME", r.ActionType)
	}
}

func TestCompletionConflictNamesTheFailure(t *testing.T) {
	// A guarded update that matches nothing while the row still reads as
	// completable means a concurrent writer moved it between statements.
	assert.ErrorIs(t, completionConflict(Models.AssignmentPending), ErrConflict)
	assert.ErrorIs(t, completionConflict(Models.AssignmentOverdue), ErrConflict)
	assert.ErrorIs(t, completionConflict(Models.AssignmentPendingVerification), ErrAlreadyPendingVerification)
	assert.ErrorIs(t, completionConflict(Models.AssignmentVerified), ErrAlreadyCompleted)
}

func TestStartAssignment(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.StartAssignment(ctx, testCompany, task.ID, f.stores[0], f.clerkID, "CLERK")
	require.NoError(t, err)
	assert.Equal(t, Models.AssignmentInProgress, a.Status)

	_, err = f.engine.StartAssignment(ctx, testCompany, task.ID, f.stores[0], f.clerkID, "CLERK")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestPendingVerificationsFilteredByRank(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	for _, storeID := range f.stores[:2] {
		_, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, storeID, CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
		require.NoError(t, err)
	}

	forOwner, err := f.engine.PendingVerifications(ctx, testCompany, "OWNER", nil)
	require.NoError(t, err)
	assert.Len(t, forOwner, 2)
	assert.Equal(t, "CLERK", forOwner[0].SubmittedByRole)
	assert.Equal(t, task.Title, forOwner[0].TaskTitle)

	forClerk, err := f.engine.PendingVerifications(ctx, testCompany, "CLERK", nil)
	require.NoError(t, err)
	assert.Empty(t, forClerk)

	scoped, err := f.engine.PendingVerifications(ctx, testCompany, "OWNER", &f.stores[0])
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, f.stores[0], scoped[0].Assignment.StoreID)
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	// Another tenant can neither see nor mutate company 1's data.
	_, err := f.engine.CompleteAssignment(ctx, 2, task.ID, f.stores[0], CompletionPayload{UserID: 1, RoleKey: "OWNER"})
	assert.ErrorIs(t, err, ErrNotFound)

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	_, err = f.engine.VerifyAssignment(ctx, 2, a.ID, VerifierPayload{UserID: 1, RoleKey: "OWNER"}, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.AssignmentHistory(ctx, 2, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssignmentHistoryOrder(t *testing.T) {
	f := newFixture(t)
	task := f.createTask(t, TaskSpec{})
	ctx := context.Background()

	a, err := f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)
	_, err = f.engine.RejectAssignment(ctx, testCompany, a.ID, VerifierPayload{UserID: f.ownerID, RoleKey: "OWNER"}, "redo")
	require.NoError(t, err)
	_, err = f.engine.CompleteAssignment(ctx, testCompany, task.ID, f.stores[0], CompletionPayload{UserID: f.clerkID, RoleKey: "CLERK"})
	require.NoError(t, err)

	history, err := f.engine.AssignmentHistory(ctx, testCompany, a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, Models.VerificationRejected, history[0].Status)
	assert.Equal(t, Models.VerificationPending, history[1].Status)
}
