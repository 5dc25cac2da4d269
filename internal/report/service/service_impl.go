package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/cache"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/smallbiznis/duekeeper/internal/followup"
	"github.com/smallbiznis/duekeeper/internal/forecast"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/smallbiznis/duekeeper/internal/observability/metrics"
	"github.com/smallbiznis/duekeeper/internal/report/domain"
	"github.com/smallbiznis/duekeeper/pkg/db/pagination"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Policy    *config.CollectionsPolicyHolder
	Clock     clock.Clock
	Customers customerdomain.Repository
	Ledger    ledgerdomain.Service
	Metrics   *metrics.EngineMetrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	policy    *config.CollectionsPolicyHolder
	clock     clock.Clock
	customers customerdomain.Repository
	ledger    ledgerdomain.Service
	metrics   *metrics.EngineMetrics
	workers   int

	statsCache   *cache.Cache[snowflake.ID, domain.FollowUpStats]
	summaryCache *cache.Cache[snowflake.ID, domain.TenantSummary]
}

func New(p Params) domain.Service {
	workers := p.Cfg.EngineWorkers
	if workers <= 0 || workers > runtime.GOMAXPROCS(0) {
		workers = runtime.GOMAXPROCS(0)
	}

	ttl := time.Duration(p.Policy.Get().SnapshotCacheTTLSec) * time.Second

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("report.service"),
		cfg:          p.Cfg,
		policy:       p.Policy,
		clock:        p.Clock,
		customers:    p.Customers,
		ledger:       p.Ledger,
		metrics:      p.Metrics,
		workers:      workers,
		statsCache:   cache.New[snowflake.ID, domain.FollowUpStats](p.Clock, ttl),
		summaryCache: cache.New[snowflake.ID, domain.TenantSummary](p.Clock, ttl),
	}
}

func (s *Service) InvalidateTenant(tenantID snowflake.ID) {
	s.statsCache.Delete(tenantID)
	s.summaryCache.Delete(tenantID)
}

func (s *Service) Debtors(ctx context.Context, req domain.DebtorsRequest) (domain.DebtorsResponse, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.DebtorsResponse{}, customerdomain.ErrInvalidTenant
	}

	customers, pageInfo, err := s.pageCustomers(ctx, tenantID, req.PageToken, req.PageSize, req.Category, req.Search)
	if err != nil {
		return domain.DebtorsResponse{}, err
	}

	now := s.clock.Now()
	rows, skipped, err := s.materializeRows(ctx, tenantID, customers, now)
	if err != nil {
		return domain.DebtorsResponse{}, err
	}

	if bucket := strings.TrimSpace(req.Bucket); bucket != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if string(row.FollowUpBucket) == bucket {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	resp := domain.DebtorsResponse{
		Debtors:  rows,
		Rollups:  rollup(rows),
		Skipped:  skipped,
		SyncedAt: now,
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) FollowUpStats(ctx context.Context) (domain.FollowUpStats, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.FollowUpStats{}, customerdomain.ErrInvalidTenant
	}

	if cached, hit := s.statsCache.Get(tenantID); hit {
		return cached, nil
	}

	now := s.clock.Now()
	stats := domain.FollowUpStats{
		Buckets:  make(map[followup.Bucket]int, len(followup.Buckets())),
		SyncedAt: now,
	}
	for _, b := range followup.Buckets() {
		stats.Buckets[b] = 0
	}

	err := s.eachPage(ctx, tenantID, func(customers []*customerdomain.Customer) error {
		ids := customerIDs(customers)
		next, err := s.ledger.NextFollowUpsForCustomers(ctx, ids)
		if err != nil {
			return err
		}
		for _, c := range customers {
			stats.Total++
			stats.Buckets[followup.Classify(next[c.ID], now)]++
		}
		return nil
	})
	if err != nil {
		return domain.FollowUpStats{}, err
	}

	s.statsCache.Set(tenantID, stats)
	return stats, nil
}

func (s *Service) Forecasts(ctx context.Context, req domain.ForecastRequest) (domain.ForecastReport, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.ForecastReport{}, customerdomain.ErrInvalidTenant
	}

	customers, pageInfo, err := s.pageCustomers(ctx, tenantID, req.PageToken, req.PageSize, req.Category, "")
	if err != nil {
		return domain.ForecastReport{}, err
	}

	now := s.clock.Now()
	forecasts, skipped, err := s.materializeForecasts(ctx, tenantID, customers, now)
	if err != nil {
		return domain.ForecastReport{}, err
	}

	if band := strings.TrimSpace(req.Band); band != "" {
		filtered := forecasts[:0]
		for _, f := range forecasts {
			if string(f.RiskBand) == band {
				filtered = append(filtered, f)
			}
		}
		forecasts = filtered
	}

	resp := domain.ForecastReport{
		Forecasts: forecasts,
		Skipped:   skipped,
		SyncedAt:  now,
	}
	for _, f := range forecasts {
		switch f.RiskBand {
		case forecast.BandHigh:
			resp.HighRisk++
		case forecast.BandMedium:
			resp.MediumRisk++
		default:
			resp.LowRisk++
		}
	}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) TenantSummary(ctx context.Context) (domain.TenantSummary, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.TenantSummary{}, customerdomain.ErrInvalidTenant
	}

	if cached, hit := s.summaryCache.Get(tenantID); hit {
		return cached, nil
	}

	now := s.clock.Now()
	summary := domain.TenantSummary{
		TenantID:         tenantID,
		TotalOpening:     decimal.Zero,
		TotalOutstanding: decimal.Zero,
		AvgOutstanding:   decimal.Zero,
		TotalInvoiced:    decimal.Zero,
		TotalReceived:    decimal.Zero,
		AvgInvoiceValue:  decimal.Zero,
		AvgReceiptValue:  decimal.Zero,
		SyncedAt:         now,
	}

	var (
		allRows       []domain.DebtorRow
		stuckSum      int
		sawCandidates bool
	)

	err := s.eachPage(ctx, tenantID, func(customers []*customerdomain.Customer) error {
		sawCandidates = sawCandidates || len(customers) > 0
		rows, skipped, err := s.materializeRows(ctx, tenantID, customers, now)
		if err != nil && !isAggregationFailed(err) {
			return err
		}
		summary.SkippedCustomers += skipped
		allRows = append(allRows, rows...)

		forecasts, _, err := s.materializeForecasts(ctx, tenantID, customers, now)
		if err != nil && !isAggregationFailed(err) {
			return err
		}
		for _, f := range forecasts {
			stuckSum += f.StuckProbability
			if f.RiskBand == forecast.BandHigh {
				summary.HighRiskCustomers++
			}
		}
		return nil
	})
	if err != nil {
		return domain.TenantSummary{}, err
	}
	// Pages where every customer is broken are tolerated individually, but a
	// tenant where no customer at all survives is a fatal aggregation failure.
	if sawCandidates && len(allRows) == 0 {
		return domain.TenantSummary{}, ledgerdomain.ErrAggregationFailed
	}

	for _, row := range allRows {
		summary.Customers++
		summary.TotalOpening = summary.TotalOpening.Add(row.OpeningBalance)
		summary.TotalOutstanding = summary.TotalOutstanding.Add(row.OutstandingBalance)
		summary.TotalInvoiced = summary.TotalInvoiced.Add(row.InvoiceTotal)
		summary.TotalReceived = summary.TotalReceived.Add(row.ReceiptTotal)
		summary.TotalInvoices += row.InvoiceCount
		summary.TotalReceipts += row.ReceiptCount
		if row.OverdueDays > 0 {
			summary.OverdueCustomers++
		}
	}
	if summary.Customers > 0 {
		summary.AvgOutstanding = summary.TotalOutstanding.
			Div(decimal.NewFromInt(int64(summary.Customers))).
			Round(2)
		summary.AvgStuckProb = int(float64(stuckSum)/float64(summary.Customers) + 0.5)
	}
	if summary.TotalInvoices > 0 {
		summary.AvgInvoiceValue = summary.TotalInvoiced.
			Div(decimal.NewFromInt(summary.TotalInvoices)).
			Round(2)
	}
	if summary.TotalReceipts > 0 {
		summary.AvgReceiptValue = summary.TotalReceived.
			Div(decimal.NewFromInt(summary.TotalReceipts)).
			Round(2)
	}
	summary.CategoryBreakdown = rollup(allRows)

	s.summaryCache.Set(tenantID, summary)
	return summary, nil
}

// pageCustomers fetches one cursor page plus a lookahead row and converts it
// into value rows with page info.
func (s *Service) pageCustomers(ctx context.Context, tenantID snowflake.ID, pageToken string, pageSize int, category, search string) ([]*customerdomain.Customer, *pagination.PageInfo, error) {
	filter := customerdomain.ListCustomerFilter{Search: strings.TrimSpace(search)}
	if raw := strings.TrimSpace(category); raw != "" {
		parsed, err := customerdomain.ParseCategory(raw)
		if err != nil {
			return nil, nil, err
		}
		filter.Category = parsed
	}

	if pageSize <= 0 {
		pageSize = 50
	}

	customers, err := s.customers.List(ctx, s.db, tenantID, filter, pagination.Pagination{
		PageToken: pageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, nil, wrapStorageErr(err)
	}

	pageInfo := pagination.BuildCursorPageInfo(customers, pageSize, func(c *customerdomain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: c.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(customers) > pageSize {
		customers = customers[:pageSize]
	}
	return customers, pageInfo, nil
}

// eachPage walks every customer of the tenant in keyset order.
func (s *Service) eachPage(ctx context.Context, tenantID snowflake.ID, fn func([]*customerdomain.Customer) error) error {
	pageSize := s.cfg.RecalcPageSize
	if pageSize <= 0 {
		pageSize = 200
	}

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		customers, err := s.customers.ListAfter(ctx, s.db, tenantID, afterID, pageSize)
		if err != nil {
			return wrapStorageErr(err)
		}
		if len(customers) == 0 {
			return nil
		}
		if err := fn(customers); err != nil {
			return err
		}
		if len(customers) < pageSize {
			return nil
		}
		afterID = customers[len(customers)-1].ID
	}
}

type rowResult struct {
	idx     int
	row     domain.DebtorRow
	skipped bool
}

// materializeRows computes one DebtorRow per customer over a bounded worker
// pool. Customers whose ledger rows are invalid are skipped with a warning;
// when every candidate fails the whole batch aborts.
func (s *Service) materializeRows(ctx context.Context, tenantID snowflake.ID, customers []*customerdomain.Customer, now time.Time) ([]domain.DebtorRow, int, error) {
	if len(customers) == 0 {
		return nil, 0, nil
	}

	ids := customerIDs(customers)
	totals, err := s.ledger.TotalsForCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	payments, err := s.ledger.PaymentsForCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	next, err := s.ledger.NextFollowUpsForCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	results := make([]rowResult, len(customers))
	s.fanOut(ctx, len(customers), func(idx int) {
		c := customers[idx]
		snapshot, err := s.ledger.Snapshot(*c, totals[c.ID])
		if err != nil {
			dataErr, _ := ledgerdomain.AsDataError(err)
			s.warnDataError(tenantID, c.ID, dataErr)
			results[idx] = rowResult{idx: idx, skipped: true}
			return
		}
		s.metrics.IncSnapshot()
		results[idx] = rowResult{
			idx: idx,
			row: domain.DebtorRow{
				CustomerID:         c.ID,
				Name:               c.Name,
				Category:           c.Category,
				OpeningBalance:     snapshot.OpeningBalance,
				InvoiceTotal:       snapshot.InvoiceTotal,
				ReceiptTotal:       snapshot.ReceiptTotal,
				OutstandingBalance: snapshot.OutstandingBalance,
				InvoiceCount:       snapshot.InvoiceCount,
				ReceiptCount:       snapshot.ReceiptCount,
				OverdueDays:        ledgerdomain.OverdueDays(payments[c.ID], now),
				LastInvoiceDate:    snapshot.LastInvoiceDate,
				LastPaymentDate:    snapshot.LastPaymentDate,
				NextFollowUpAt:     next[c.ID],
				FollowUpBucket:     followup.Classify(next[c.ID], now),
			},
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	rows := make([]domain.DebtorRow, 0, len(customers))
	skipped := 0
	for _, r := range results {
		if r.skipped {
			skipped++
			continue
		}
		rows = append(rows, r.row)
	}
	if skipped == len(customers) {
		return nil, skipped, ledgerdomain.ErrAggregationFailed
	}
	return rows, skipped, nil
}

func (s *Service) materializeForecasts(ctx context.Context, tenantID snowflake.ID, customers []*customerdomain.Customer, now time.Time) ([]forecast.Forecast, int, error) {
	if len(customers) == 0 {
		return nil, 0, nil
	}

	ids := customerIDs(customers)
	totals, err := s.ledger.TotalsForCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	payments, err := s.ledger.PaymentsForCustomers(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	weights := forecast.WeightsFromPolicy(s.policy.Get().ForecastWeights)

	type forecastResult struct {
		forecast forecast.Forecast
		skipped  bool
	}
	results := make([]forecastResult, len(customers))
	s.fanOut(ctx, len(customers), func(idx int) {
		c := customers[idx]
		if _, err := s.ledger.Snapshot(*c, totals[c.ID]); err != nil {
			dataErr, _ := ledgerdomain.AsDataError(err)
			s.warnDataError(tenantID, c.ID, dataErr)
			results[idx] = forecastResult{skipped: true}
			return
		}
		s.metrics.IncForecast()
		results[idx] = forecastResult{
			forecast: forecast.Compute(c.ID, payments[c.ID], c.CreditLimit, now, weights),
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	forecasts := make([]forecast.Forecast, 0, len(customers))
	skipped := 0
	for _, r := range results {
		if r.skipped {
			skipped++
			continue
		}
		forecasts = append(forecasts, r.forecast)
	}
	if skipped == len(customers) {
		return nil, skipped, ledgerdomain.ErrAggregationFailed
	}
	return forecasts, skipped, nil
}

// fanOut runs fn(idx) for idx in [0, n) across the bounded pool. Each index
// writes only its own result slot, so no further synchronization is needed.
func (s *Service) fanOut(ctx context.Context, n int, fn func(idx int)) {
	workers := s.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return
			}
			fn(i)
		}
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fn(idx)
			}
		}()
	}

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

func (s *Service) warnDataError(tenantID, customerID snowflake.ID, dataErr *ledgerdomain.DataError) {
	field := "unknown"
	reason := "uncomputable ledger"
	if dataErr != nil {
		field = dataErr.Field
		reason = dataErr.Reason
	}
	s.metrics.IncDataError(field)
	s.log.Warn("skipping customer with invalid ledger data",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("field", field),
		zap.String("reason", reason),
	)
}

func rollup(rows []domain.DebtorRow) []domain.CategoryRollup {
	byCategory := make(map[customerdomain.Category]*domain.CategoryRollup, 4)
	for _, row := range rows {
		entry, ok := byCategory[row.Category]
		if !ok {
			entry = &domain.CategoryRollup{
				Category:    row.Category,
				Outstanding: decimal.Zero,
			}
			byCategory[row.Category] = entry
		}
		entry.Customers++
		entry.Outstanding = entry.Outstanding.Add(row.OutstandingBalance)
		if row.OverdueDays > entry.MaxOverdueDays {
			entry.MaxOverdueDays = row.OverdueDays
		}
	}

	rollups := make([]domain.CategoryRollup, 0, len(byCategory))
	for _, category := range customerdomain.Categories() {
		if entry, ok := byCategory[category]; ok {
			rollups = append(rollups, *entry)
		}
	}
	return rollups
}

func customerIDs(customers []*customerdomain.Customer) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(customers))
	for _, c := range customers {
		ids = append(ids, c.ID)
	}
	return ids
}

func isAggregationFailed(err error) bool {
	return errors.Is(err, ledgerdomain.ErrAggregationFailed)
}

func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ledgerdomain.ErrDependencyUnavailable, err)
}
