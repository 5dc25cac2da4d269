package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	categorydomain "github.com/smallbiznis/duekeeper/internal/category/domain"
	categoryrepo "github.com/smallbiznis/duekeeper/internal/category/repository"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	customerrepo "github.com/smallbiznis/duekeeper/internal/customer/repository"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/duekeeper/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/duekeeper/internal/ledger/service"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testTenant = snowflake.ID(7001)

var fixedNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&ledgerdomain.Invoice{},
		&ledgerdomain.Receipt{},
		&categorydomain.CategoryRule{},
	))
	return db
}

func newService(t *testing.T, db *gorm.DB, cfg config.Config) *Service {
	t.Helper()
	log := zaptest.NewLogger(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ledger := ledgerservice.New(ledgerservice.Params{
		DB:        db,
		Log:       log,
		Repo:      ledgerrepo.Provide(),
		Customers: customerrepo.Provide(),
		Clock:     clock.NewFakeClock(fixedNow),
		GenID:     node,
	})
	svc := New(Params{
		DB:        db,
		Log:       log,
		Cfg:       cfg,
		Policy:    config.NewStaticPolicyHolder(config.DefaultCollectionsPolicy()),
		Clock:     clock.NewFakeClock(fixedNow),
		Repo:      categoryrepo.Provide(),
		Customers: customerrepo.Provide(),
		Ledger:    ledger,
	})
	return svc.(*Service)
}

func seedCustomer(t *testing.T, db *gorm.DB, id int64, category customerdomain.Category, override bool) {
	t.Helper()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID:                     snowflake.ID(id),
		TenantID:               testTenant,
		Name:                   fmt.Sprintf("customer-%d", id),
		Category:               category,
		CreditLimit:            decimal.NewFromInt(1000000),
		OpeningBalance:         decimal.Zero,
		PaymentTermsDays:       30,
		CategoryManualOverride: override,
	}).Error)
}

func seedInvoice(t *testing.T, db *gorm.DB, id, customerID int64, amount float64, due time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&ledgerdomain.Invoice{
		ID:          snowflake.ID(id),
		TenantID:    testTenant,
		CustomerID:  snowflake.ID(customerID),
		Amount:      decimal.NewFromFloat(amount),
		InvoiceDate: due.AddDate(0, 0, -30),
		DueDate:     due,
	}).Error)
}

func tenantCtx() context.Context {
	return tenantctx.WithTenantID(context.Background(), int64(testTenant))
}

func TestRecalculateReassignsFromDefaultRules(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{RecalcPageSize: 50})

	// 600000 outstanding, 90 days overdue: the top rule demands delta.
	seedCustomer(t, db, 1, customerdomain.CategoryBeta, false)
	seedInvoice(t, db, 101, 1, 600000, fixedNow.AddDate(0, 0, -90))

	// Manually pinned customers are never touched.
	seedCustomer(t, db, 2, customerdomain.CategoryAlpha, true)
	seedInvoice(t, db, 102, 2, 600000, fixedNow.AddDate(0, 0, -90))

	// Clean ledger matches no rule and keeps its category.
	seedCustomer(t, db, 3, customerdomain.CategoryAlpha, false)

	summary, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Pages)
	assert.Equal(t, 3, summary.Visited)
	assert.Equal(t, 1, summary.Reassigned)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, 1, summary.Skipped)

	var reassigned, pinned, clean customerdomain.Customer
	require.NoError(t, db.First(&reassigned, "id = ?", 1).Error)
	require.NoError(t, db.First(&pinned, "id = ?", 2).Error)
	require.NoError(t, db.First(&clean, "id = ?", 3).Error)
	assert.Equal(t, customerdomain.CategoryDelta, reassigned.Category)
	assert.Equal(t, customerdomain.CategoryAlpha, pinned.Category)
	assert.Equal(t, customerdomain.CategoryAlpha, clean.Category)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{RecalcPageSize: 50})

	seedCustomer(t, db, 1, customerdomain.CategoryBeta, false)
	seedInvoice(t, db, 101, 1, 600000, fixedNow.AddDate(0, 0, -90))

	first, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Reassigned)

	second, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)
	assert.Zero(t, second.Reassigned)
	assert.Equal(t, 1, second.Unchanged)
}

func TestRecalculateSkipsInvalidLedgerData(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{RecalcPageSize: 50})

	seedCustomer(t, db, 1, customerdomain.CategoryBeta, false)
	seedInvoice(t, db, 101, 1, -250, fixedNow.AddDate(0, 0, -45))

	seedCustomer(t, db, 2, customerdomain.CategoryBeta, false)
	seedInvoice(t, db, 102, 2, 600000, fixedNow.AddDate(0, 0, -90))

	summary, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Reassigned)

	var broken customerdomain.Customer
	require.NoError(t, db.First(&broken, "id = ?", 1).Error)
	assert.Equal(t, customerdomain.CategoryBeta, broken.Category, "skipped customer keeps its category")
}

func TestRecalculatePagesThroughTenant(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{RecalcPageSize: 2})

	for i := int64(1); i <= 5; i++ {
		seedCustomer(t, db, i, customerdomain.CategoryBeta, false)
		seedInvoice(t, db, 100+i, i, 600000, fixedNow.AddDate(0, 0, -90))
	}

	summary, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Pages)
	assert.Equal(t, 5, summary.Visited)
	assert.Equal(t, 5, summary.Reassigned)
}

func TestRecalculatePrefersPersistedRules(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{RecalcPageSize: 50})

	min := decimal.NewFromInt(1)
	require.NoError(t, db.Create(&categorydomain.CategoryRule{
		ID:             snowflake.ID(9001),
		TenantID:       testTenant,
		Priority:       1,
		MinBalance:     &min,
		TargetCategory: customerdomain.CategoryGamma,
	}).Error)

	seedCustomer(t, db, 1, customerdomain.CategoryBeta, false)
	seedInvoice(t, db, 101, 1, 600000, fixedNow.AddDate(0, 0, -90))

	summary, err := svc.Recalculate(tenantCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reassigned)

	var got customerdomain.Customer
	require.NoError(t, db.First(&got, "id = ?", 1).Error)
	assert.Equal(t, customerdomain.CategoryGamma, got.Category)
}

func TestRecalculateRequiresTenant(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{})

	_, err := svc.Recalculate(context.Background())
	assert.ErrorIs(t, err, categorydomain.ErrInvalidTenant)
}

func TestListRulesFallsBackToPolicy(t *testing.T) {
	db := newTestDB(t)
	svc := newService(t, db, config.Config{})

	rules, err := svc.ListRules(tenantCtx())
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, customerdomain.CategoryDelta, rules[0].TargetCategory)
}
