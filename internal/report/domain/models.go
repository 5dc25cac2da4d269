// Package domain defines the read models served by the reporting surface:
// debtor rows, follow-up statistics, risk reports and tenant summaries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/smallbiznis/duekeeper/internal/followup"
	"github.com/smallbiznis/duekeeper/internal/forecast"
	"github.com/smallbiznis/duekeeper/pkg/db/pagination"
)

// DebtorRow is one customer's reconciled position at query time. Rows are
// computed from the live ledger and never persisted.
type DebtorRow struct {
	CustomerID         snowflake.ID            `json:"customer_id"`
	Name               string                  `json:"name"`
	Category           customerdomain.Category `json:"category"`
	OpeningBalance     decimal.Decimal         `json:"opening_balance"`
	InvoiceTotal       decimal.Decimal         `json:"invoice_total"`
	ReceiptTotal       decimal.Decimal         `json:"receipt_total"`
	OutstandingBalance decimal.Decimal         `json:"outstanding_balance"`
	InvoiceCount       int64                   `json:"invoice_count"`
	ReceiptCount       int64                   `json:"receipt_count"`
	OverdueDays        int                     `json:"overdue_days"`
	LastInvoiceDate    *time.Time              `json:"last_invoice_date,omitempty"`
	LastPaymentDate    *time.Time              `json:"last_payment_date,omitempty"`
	NextFollowUpAt     *time.Time              `json:"next_follow_up_at,omitempty"`
	FollowUpBucket     followup.Bucket         `json:"follow_up_bucket"`
}

type DebtorsRequest struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
	Search    string `form:"search"`
	Category  string `form:"category"`
	Bucket    string `form:"bucket"`
}

// CategoryRollup folds the returned rows per risk tier.
type CategoryRollup struct {
	Category       customerdomain.Category `json:"category"`
	Customers      int                     `json:"customers"`
	Outstanding    decimal.Decimal         `json:"outstanding"`
	MaxOverdueDays int                     `json:"max_overdue_days"`
}

type DebtorsResponse struct {
	pagination.PageInfo
	Debtors  []DebtorRow      `json:"debtors"`
	Rollups  []CategoryRollup `json:"rollups"`
	Skipped  int              `json:"skipped"`
	SyncedAt time.Time        `json:"synced_at"`
}

// FollowUpStats counts every customer of the tenant into exactly one bucket.
// The per-bucket counts always sum to Total.
type FollowUpStats struct {
	Total    int                     `json:"total"`
	Buckets  map[followup.Bucket]int `json:"buckets"`
	SyncedAt time.Time               `json:"synced_at"`
}

type ForecastRequest struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50"`
	Category  string `form:"category"`
	Band      string `form:"band"`
}

type ForecastReport struct {
	pagination.PageInfo
	Forecasts  []forecast.Forecast `json:"forecasts"`
	HighRisk   int                 `json:"high_risk"`
	MediumRisk int                 `json:"medium_risk"`
	LowRisk    int                 `json:"low_risk"`
	Skipped    int                 `json:"skipped"`
	SyncedAt   time.Time           `json:"synced_at"`
}

// TenantSummary is the tenant-wide aggregate; every average is zero when its
// denominator is zero.
type TenantSummary struct {
	TenantID          snowflake.ID     `json:"tenant_id"`
	Customers         int              `json:"customers"`
	TotalOpening      decimal.Decimal  `json:"total_opening_balance"`
	TotalOutstanding  decimal.Decimal  `json:"total_outstanding"`
	AvgOutstanding    decimal.Decimal  `json:"avg_outstanding"`
	TotalInvoiced     decimal.Decimal  `json:"total_invoiced"`
	TotalReceived     decimal.Decimal  `json:"total_received"`
	AvgInvoiceValue   decimal.Decimal  `json:"avg_invoice_value"`
	AvgReceiptValue   decimal.Decimal  `json:"avg_receipt_value"`
	TotalInvoices     int64            `json:"total_invoices"`
	TotalReceipts     int64            `json:"total_receipts"`
	OverdueCustomers  int              `json:"overdue_customers"`
	HighRiskCustomers int              `json:"high_risk_customers"`
	AvgStuckProb      int              `json:"avg_stuck_probability"`
	CategoryBreakdown []CategoryRollup `json:"category_breakdown"`
	SkippedCustomers  int              `json:"skipped_customers"`
	SyncedAt          time.Time        `json:"synced_at"`
}
