package seed

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&ledgerdomain.Invoice{},
		&ledgerdomain.Receipt{},
		&ledgerdomain.FollowUp{},
	))
	return db
}

func countCustomers(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&customerdomain.Customer{}).
		Where("tenant_id = ?", demoTenantID).
		Count(&count).Error)
	return count
}

func TestEnsureDemoTenantIsIdempotent(t *testing.T) {
	db := newSeedDB(t)

	require.NoError(t, EnsureDemoTenant(db))
	assert.Equal(t, int64(len(demoBook)), countCustomers(t, db))

	require.NoError(t, EnsureDemoTenant(db))
	assert.Equal(t, int64(len(demoBook)), countCustomers(t, db),
		"a second run must not double-seed")
}

func TestEnsureDemoTenantToleratesConcurrentSeed(t *testing.T) {
	db := newSeedDB(t)

	// A row on the first deterministic ID simulates another instance that won
	// the race mid-seed; the primary-key collision must not surface as an
	// error and the transaction must roll back cleanly.
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID:       demoID(0, 0),
		TenantID: demoTenantID + 1,
		Name:     "already there",
	}).Error)

	require.NoError(t, EnsureDemoTenant(db))
	assert.Zero(t, countCustomers(t, db))
}
