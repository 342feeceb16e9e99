package Distribution

import (
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

func seedStore(t *testing.T, db *gorm.DB, companyID, regionID uint, name string, active bool) uint {
	t.Helper()
	store := Models.Store{CompanyID: companyID, RegionID: regionID, Name: name, IsActive: active}
	require.NoError(t, db.Create(&store).Error)
	return store.ID
}

func TestResolveAllStores(t *testing.T) {
	db := testDB(t)
	s1 := seedStore(t, db, 1, 1, "Downtown", true)
	s2 := seedStore(t, db, 1, 2, "Airport", true)
	seedStore(t, db, 1, 1, "Closed Branch", false)
	seedStore(t, db, 2, 1, "Other Tenant", true)

	ids, err := Resolve(db, 1, Models.DistributionAllStores, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{s1, s2}, ids)
}

func TestResolveAllStoresNoActiveStores(t *testing.T) {
	db := testDB(t)
	seedStore(t, db, 1, 1, "Closed Branch", false)

	_, err := Resolve(db, 1, Models.DistributionAllStores, nil, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestResolveByRegion(t *testing.T) {
	db := testDB(t)
	s1 := seedStore(t, db, 1, 1, "Downtown", true)
	seedStore(t, db, 1, 2, "Airport", true)
	seedStore(t, db, 1, 1, "Closed Branch", false)

	ids, err := Resolve(db, 1, Models.DistributionByRegion, []uint{1}, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint{s1}, ids)
}

func TestResolveByRegionEmptyList(t *testing.T) {
	db := testDB(t)

	_, err := Resolve(db, 1, Models.DistributionByRegion, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveByRegionNoStoresInRegion(t *testing.T) {
	db := testDB(t)
	seedStore(t, db, 1, 1, "Downtown", true)

	_, err := Resolve(db, 1, Models.DistributionByRegion, []uint{99}, nil)
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestResolveSpecificStores(t *testing.T) {
	db := testDB(t)

	// Existence is not checked here; duplicates and zeros are dropped and the
	// result is sorted.
	ids, err := Resolve(db, 1, Models.DistributionSpecificStores, nil, []uint{7, 3, 7, 0})
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 7}, ids)
}

func TestResolveSpecificStoresEmptyList(t *testing.T) {
	db := testDB(t)

	_, err := Resolve(db, 1, Models.DistributionSpecificStores, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveUnknownType(t *testing.T) {
	db := testDB(t)

	_, err := Resolve(db, 1, "EVERYONE", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveIsIdempotent(t *testing.T) {
	db := testDB(t)
	seedStore(t, db, 1, 1, "Downtown", true)
	seedStore(t, db, 1, 2, "Airport", true)

	first, err := Resolve(db, 1, Models.DistributionAllStores, nil, nil)
	require.NoError(t, err)
	second, err := Resolve(db, 1, Models.DistributionAllStores, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
