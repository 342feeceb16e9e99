package Models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmailUniqueAcrossCompanies(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	Migrate(db)

	require.NoError(t, db.Create(&User{
		CompanyID: 1, Name: "Olive", Email: "olive@acme.test", RoleKey: "OWNER", IsActive: true,
	}).Error)

	// The same address in another tenant would make login ambiguous.
	err = db.Create(&User{
		CompanyID: 2, Name: "Impostor", Email: "olive@acme.test", RoleKey: "OWNER", IsActive: true,
	}).Error
	assert.Error(t, err)
}

func TestInactiveUserPersistsAsInactive(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	Migrate(db)

	require.NoError(t, db.Create(&User{
		CompanyID: 1, Name: "Former", Email: "former@acme.test", RoleKey: "CLERK", IsActive: false,
	}).Error)

	var user User
	require.NoError(t, db.Where("email = ?", "former@acme.test").First(&user).Error)
	assert.False(t, user.IsActive)
}
