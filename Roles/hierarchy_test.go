package Roles

import (
	"context"
	"testing"

	"Beacon/Models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	Models.Migrate(db)
	return db
}

func seedRole(t *testing.T, db *gorm.DB, companyID uint, key string, level int, active bool) {
	t.Helper()
	require.NoError(t, db.Create(&Models.Role{
		CompanyID: companyID,
		Key:       key,
		Level:     level,
		IsActive:  active,
	}).Error)
}

func TestRequiresVerificationFailsOpenWithoutRoles(t *testing.T) {
	s := NewService(testDB(t), nil)

	// Misconfigured tenant with no roles at all must not block completion.
	needs, err := s.RequiresVerification(context.Background(), 1, "STORE_MANAGER")
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestRequiresVerificationTopLevelSelfVerifies(t *testing.T) {
	db := testDB(t)
	seedRole(t, db, 1, "OWNER", 100, true)
	seedRole(t, db, 1, "STORE_MANAGER", 50, true)
	seedRole(t, db, 1, "CLERK", 10, true)
	s := NewService(db, nil)

	needs, err := s.RequiresVerification(context.Background(), 1, "OWNER")
	require.NoError(t, err)
	assert.False(t, needs)

	needs, err = s.RequiresVerification(context.Background(), 1, "STORE_MANAGER")
	require.NoError(t, err)
	assert.True(t, needs)

	needs, err = s.RequiresVerification(context.Background(), 1, "CLERK")
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestRequiresVerificationIgnoresInactiveRoles(t *testing.T) {
	db := testDB(t)
	seedRole(t, db, 1, "FOUNDER", 200, false)
	seedRole(t, db, 1, "OWNER", 100, true)
	s := NewService(db, nil)

	// The deactivated FOUNDER level must not count as top of hierarchy.
	needs, err := s.RequiresVerification(context.Background(), 1, "OWNER")
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestCanVerifyStrictOrdering(t *testing.T) {
	db := testDB(t)
	seedRole(t, db, 1, "OWNER", 100, true)
	seedRole(t, db, 1, "CLERK", 10, true)
	seedRole(t, db, 1, "CASHIER", 10, true)
	s := NewService(db, nil)
	ctx := context.Background()

	ok, err := s.CanVerify(ctx, 1, "OWNER", "CLERK")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CanVerify(ctx, 1, "CLERK", "OWNER")
	require.NoError(t, err)
	assert.False(t, ok)

	// Same level, and the same role, can never verify.
	ok, err = s.CanVerify(ctx, 1, "CLERK", "CASHIER")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CanVerify(ctx, 1, "CLERK", "CLERK")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanVerifyUnknownKeysResolveToZero(t *testing.T) {
	db := testDB(t)
	seedRole(t, db, 1, "CLERK", 10, true)
	s := NewService(db, nil)
	ctx := context.Background()

	// Unknown submitter: anyone with a real role outranks level 0.
	ok, err := s.CanVerify(ctx, 1, "CLERK", "GHOST")
	require.NoError(t, err)
	assert.True(t, ok)

	// Unknown verifier can verify nothing.
	ok, err = s.CanVerify(ctx, 1, "GHOST", "CLERK")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CanVerify(ctx, 1, "GHOST", "GHOST")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveRolesAreTenantScoped(t *testing.T) {
	db := testDB(t)
	seedRole(t, db, 1, "OWNER", 100, true)
	seedRole(t, db, 2, "OWNER", 100, true)
	seedRole(t, db, 2, "CLERK", 10, true)
	s := NewService(db, nil)

	roles, err := s.ActiveRoles(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
	for _, r := range roles {
		assert.Equal(t, uint(2), r.CompanyID)
	}
}
