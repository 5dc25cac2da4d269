package scheduler

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
	categoryservice "github.com/smallbiznis/duekeeper/internal/category/service"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	customerrepo "github.com/smallbiznis/duekeeper/internal/customer/repository"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/duekeeper/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/duekeeper/internal/ledger/service"
	reportservice "github.com/smallbiznis/duekeeper/internal/report/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T) (*Scheduler, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&ledgerdomain.Invoice{},
		&ledgerdomain.Receipt{},
		&ledgerdomain.FollowUp{},
		&categorydomain.CategoryRule{},
	))

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(fixedNow)
	appCfg := config.Config{RecalcPageSize: 100, EngineTenantConcurrent: 2}
	policy := config.NewStaticPolicyHolder(config.DefaultCollectionsPolicy())

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ledger := ledgerservice.New(ledgerservice.Params{
		DB:        db,
		Log:       log,
		Repo:      ledgerrepo.Provide(),
		Customers: customerrepo.Provide(),
		Clock:     clk,
		GenID:     node,
	})
	categories := categoryservice.New(categoryservice.Params{
		DB:        db,
		Log:       log,
		Cfg:       appCfg,
		Policy:    policy,
		Clock:     clk,
		Repo:      categoryrepo.Provide(),
		Customers: customerrepo.Provide(),
		Ledger:    ledger,
	})
	reports := reportservice.New(reportservice.Params{
		DB:        db,
		Log:       log,
		Cfg:       appCfg,
		Policy:    policy,
		Clock:     clk,
		Customers: customerrepo.Provide(),
		Ledger:    ledger,
	})

	sched := New(Params{
		DB:          db,
		Log:         log,
		AppCfg:      appCfg,
		Clock:       clk,
		CategorySvc: categories,
		Reports:     reports,
	})
	return sched, db
}

func seedTenantCustomer(t *testing.T, db *gorm.DB, tenantID, customerID int64) {
	t.Helper()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID:             snowflake.ID(customerID),
		TenantID:       snowflake.ID(tenantID),
		Name:           fmt.Sprintf("c-%d", customerID),
		Category:       customerdomain.CategoryBeta,
		CreditLimit:    decimal.NewFromInt(1000000),
		OpeningBalance: decimal.Zero,
	}).Error)
	require.NoError(t, db.Create(&ledgerdomain.Invoice{
		ID:          snowflake.ID(customerID * 1000),
		TenantID:    snowflake.ID(tenantID),
		CustomerID:  snowflake.ID(customerID),
		Amount:      decimal.NewFromInt(600000),
		InvoiceDate: fixedNow.AddDate(0, 0, -120),
		DueDate:     fixedNow.AddDate(0, 0, -90),
	}).Error)
}

func TestRunOnceRecalculatesEveryTenant(t *testing.T) {
	sched, db := newScheduler(t)

	seedTenantCustomer(t, db, 100, 1)
	seedTenantCustomer(t, db, 200, 2)

	require.NoError(t, sched.RunOnce(context.Background()))

	var a, b customerdomain.Customer
	require.NoError(t, db.First(&a, "id = ?", 1).Error)
	require.NoError(t, db.First(&b, "id = ?", 2).Error)
	assert.Equal(t, customerdomain.CategoryDelta, a.Category)
	assert.Equal(t, customerdomain.CategoryDelta, b.Category)
}

func TestRunOnceEmptyDatabase(t *testing.T) {
	sched, _ := newScheduler(t)

	assert.NoError(t, sched.RunOnce(context.Background()))
}

func TestJobFilter(t *testing.T) {
	sched, db := newScheduler(t)
	sched.cfg.EnabledJobs = []string{"readmodel_refresh"}

	seedTenantCustomer(t, db, 100, 1)

	require.NoError(t, sched.RunOnce(context.Background()))

	var got customerdomain.Customer
	require.NoError(t, db.First(&got, "id = ?", 1).Error)
	assert.Equal(t, customerdomain.CategoryBeta, got.Category, "disabled job must not run")
}
