package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	categorydomain "github.com/smallbiznis/duekeeper/internal/category/domain"
	categoryrepo "github.com/smallbiznis/duekeeper/internal/category/repository"
	categoryservice "github.com/smallbiznis/duekeeper/internal/category/service"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	customerrepo "github.com/smallbiznis/duekeeper/internal/customer/repository"
	customerservice "github.com/smallbiznis/duekeeper/internal/customer/service"
	"github.com/smallbiznis/duekeeper/internal/export"
	"github.com/smallbiznis/duekeeper/internal/followup"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/duekeeper/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/duekeeper/internal/ledger/service"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	reportservice "github.com/smallbiznis/duekeeper/internal/report/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testTenant = snowflake.ID(8001)

// Monday, so follow-up buckets are stable across the test run.
var fixedNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg config.Config) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
	policy := config.NewStaticPolicyHolder(config.DefaultCollectionsPolicy())
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	customers := customerservice.New(customerservice.Params{
		DB:   db,
		Log:  log,
		Repo: customerrepo.Provide(),
	})
	ledgers := ledgerservice.New(ledgerservice.Params{
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
		Cfg:       cfg,
		Policy:    policy,
		Clock:     clk,
		Repo:      categoryrepo.Provide(),
		Customers: customerrepo.Provide(),
		Ledger:    ledgers,
	})
	reports := reportservice.New(reportservice.Params{
		DB:        db,
		Log:       log,
		Cfg:       cfg,
		Policy:    policy,
		Clock:     clk,
		Customers: customerrepo.Provide(),
		Ledger:    ledgers,
	})
	exports := export.New(export.Params{
		Log:     log,
		Reports: reports,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		CustomerSvc: customers,
		LedgerSvc:   ledgers,
		CategorySvc: categories,
		ReportSvc:   reports,
		ExportSvc:   exports,
	})
	return srv, db
}

func seedCustomer(t *testing.T, db *gorm.DB, id int64, name string, opening float64) {
	t.Helper()
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID:             snowflake.ID(id),
		TenantID:       testTenant,
		Name:           name,
		Category:       customerdomain.CategoryBeta,
		CreditLimit:    decimal.NewFromInt(500000),
		OpeningBalance: decimal.NewFromFloat(opening),
	}).Error)
}

func seedInvoice(t *testing.T, db *gorm.DB, id, customerID int64, amount float64, dueOffsetDays int) {
	t.Helper()
	due := fixedNow.AddDate(0, 0, dueOffsetDays)
	require.NoError(t, db.Create(&ledgerdomain.Invoice{
		ID:          snowflake.ID(id),
		TenantID:    testTenant,
		CustomerID:  snowflake.ID(customerID),
		Amount:      decimal.NewFromFloat(amount),
		InvoiceDate: due.AddDate(0, 0, -30),
		DueDate:     due,
	}).Error)
}

func doRequest(srv *Server, method, path, tenant string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func TestListDebtorsEndpoint(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 11, "Acme Traders", 50000)
	seedInvoice(t, db, 111, 11, 125000, -20)

	rec := doRequest(srv, http.MethodGet, "/v1/debtors", testTenant.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data reportdomain.DebtorsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Debtors, 1)

	row := body.Data.Debtors[0]
	assert.Equal(t, "Acme Traders", row.Name)
	assert.True(t, row.OutstandingBalance.Equal(decimal.NewFromInt(175000)),
		"outstanding = %s", row.OutstandingBalance)
	assert.Equal(t, 20, row.OverdueDays)
}

func TestMissingTenantHeaderRejected(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{RecalcPageSize: 100})

	rec := doRequest(srv, http.MethodGet, "/v1/debtors", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_tenant")
}

func TestDefaultTenantFallback(t *testing.T) {
	srv, db := newTestServer(t, config.Config{
		RecalcPageSize:  100,
		DefaultTenantID: int64(testTenant),
	})
	seedCustomer(t, db, 21, "Fallback Co", 100)

	rec := doRequest(srv, http.MethodGet, "/v1/customers", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fallback Co")
}

func TestGetCustomerByIDNotFound(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{RecalcPageSize: 100})

	rec := doRequest(srv, http.MethodGet, "/v1/customers/424242", testTenant.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTenantSummaryPathMustMatchHeader(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 31, "Summary Co", 1000)

	rec := doRequest(srv, http.MethodGet, "/v1/tenants/999/summary", testTenant.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(srv, http.MethodGet, fmt.Sprintf("/v1/tenants/%s/summary", testTenant), testTenant.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data reportdomain.TenantSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Customers)
}

func TestScheduleFollowUpEndpoint(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 41, "FollowUp Co", 0)

	next := fixedNow.AddDate(0, 0, 3)
	payload, err := json.Marshal(map[string]any{
		"next_follow_up_at": next,
		"notes":             "promised payment on Thursday",
	})
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodPost, "/v1/customers/41/follow-ups", testTenant.String(), payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Data ledgerdomain.FollowUp `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotZero(t, body.Data.ID)
	assert.Equal(t, snowflake.ID(41), body.Data.CustomerID)

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.FollowUp{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestScheduleFollowUpRefreshesFollowUpStats(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 42, "Reminder Co", 0)

	getStats := func() reportdomain.FollowUpStats {
		rec := doRequest(srv, http.MethodGet, "/v1/debtors/followup-stats", testTenant.String(), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data reportdomain.FollowUpStats `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body.Data
	}

	// Prime the cache before the mutation.
	before := getStats()
	assert.Equal(t, 1, before.Buckets[followup.BucketNoFollowUp])

	next := fixedNow.AddDate(0, 0, 1)
	payload, err := json.Marshal(map[string]any{"next_follow_up_at": next})
	require.NoError(t, err)
	rec := doRequest(srv, http.MethodPost, "/v1/customers/42/follow-ups", testTenant.String(), payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	// The write invalidates the cached stats, so the very next read must
	// already see the customer in its new bucket.
	after := getStats()
	assert.Zero(t, after.Buckets[followup.BucketNoFollowUp])
	assert.Equal(t, 1, after.Buckets[followup.BucketDueTomorrow])
}

func TestScheduleFollowUpUnknownCustomer(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{RecalcPageSize: 100})

	rec := doRequest(srv, http.MethodPost, "/v1/customers/404/follow-ups", testTenant.String(), []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportDebtorsCSV(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 51, "Export Co", 250)

	rec := doRequest(srv, http.MethodGet, "/v1/debtors/export?format=csv", testTenant.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "debtors-")
	assert.Contains(t, rec.Body.String(), "Export Co")
}

func TestExportDebtorsUnknownFormat(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{RecalcPageSize: 100})

	rec := doRequest(srv, http.MethodGet, "/v1/debtors/export?format=xlsx", testTenant.String(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecalculateCategoriesEndpoint(t *testing.T) {
	srv, db := newTestServer(t, config.Config{RecalcPageSize: 100})
	seedCustomer(t, db, 61, "Delinquent Co", 0)
	seedInvoice(t, db, 611, 61, 600000, -90)

	rec := doRequest(srv, http.MethodPost, "/v1/category-rules/recalculate", testTenant.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data categorydomain.RecalcSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.Reassigned)

	var stored customerdomain.Customer
	require.NoError(t, db.First(&stored, "id = ?", 61).Error)
	assert.Equal(t, customerdomain.CategoryDelta, stored.Category)
}

func TestListCategoryRulesFallsBackToDefaults(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{RecalcPageSize: 100})

	rec := doRequest(srv, http.MethodGet, "/v1/category-rules", testTenant.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Rules []categorydomain.CategoryRule `json:"rules"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Rules, len(config.DefaultCollectionsPolicy().DefaultCategoryRules))
}
