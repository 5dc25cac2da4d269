package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service is the reporting facade. Every call reads the live ledger; rows
// with uncomputable data are skipped with a warning and surfaced in the
// response's Skipped count. A batch where every candidate fails aborts with
// ErrAggregationFailed instead of returning an empty success.
type Service interface {
	Debtors(ctx context.Context, req DebtorsRequest) (DebtorsResponse, error)
	FollowUpStats(ctx context.Context) (FollowUpStats, error)
	Forecasts(ctx context.Context, req ForecastRequest) (ForecastReport, error)
	TenantSummary(ctx context.Context) (TenantSummary, error)

	// InvalidateTenant drops the tenant's cached read models, typically after
	// a category recalculation run.
	InvalidateTenant(tenantID snowflake.ID)
}
