// Package domain contains the receivables ledger entities and the computed
// debtor snapshot types.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is immutable once its amount is posted. DueDate is derived at
// posting time from the customer's payment terms.
type Invoice struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID    snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	CustomerID  snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Amount      decimal.Decimal   `gorm:"type:numeric(18,2);not null" json:"amount"`
	InvoiceDate time.Time         `gorm:"not null" json:"invoice_date"`
	DueDate     time.Time         `gorm:"not null;index" json:"due_date"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Receipt is always additive to a customer's receipt total. InvoiceID links
// the receipt to a specific invoice when the payer said which one it settles.
type Receipt struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID   snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	CustomerID snowflake.ID    `gorm:"not null;index" json:"customer_id"`
	InvoiceID  *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	Amount     decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	ReceivedAt time.Time       `gorm:"not null" json:"received_at"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Receipt) TableName() string { return "receipts" }

// FollowUp records a collection touch. Only the latest NextFollowUpAt per
// customer matters for due bucketing.
type FollowUp struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID  `gorm:"not null;index" json:"tenant_id"`
	CustomerID     snowflake.ID  `gorm:"not null;index" json:"customer_id"`
	FollowUpAt     time.Time     `gorm:"not null" json:"follow_up_at"`
	NextFollowUpAt *time.Time    `gorm:"index" json:"next_follow_up_at,omitempty"`
	Status         string        `gorm:"type:text;not null;default:'open'" json:"status"`
	Notes          string        `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (FollowUp) TableName() string { return "follow_ups" }

// LedgerTotals are the SQL-side aggregates for one customer.
type LedgerTotals struct {
	CustomerID      snowflake.ID
	InvoiceTotal    decimal.Decimal
	ReceiptTotal    decimal.Decimal
	InvoiceCount    int64
	ReceiptCount    int64
	MinInvoice      decimal.Decimal
	MinReceipt      decimal.Decimal
	LastInvoiceDate *time.Time
	LastPaymentDate *time.Time
}

// DebtorSnapshot is a pure function of the ledger at query time; it is never
// persisted. OutstandingBalance always equals
// OpeningBalance + InvoiceTotal - ReceiptTotal, exact to two decimals.
type DebtorSnapshot struct {
	CustomerID         snowflake.ID    `json:"customer_id"`
	OpeningBalance     decimal.Decimal `json:"opening_balance"`
	InvoiceTotal       decimal.Decimal `json:"invoice_total"`
	ReceiptTotal       decimal.Decimal `json:"receipt_total"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	InvoiceCount       int64           `json:"invoice_count"`
	ReceiptCount       int64           `json:"receipt_count"`
	LastInvoiceDate    *time.Time      `json:"last_invoice_date,omitempty"`
	LastPaymentDate    *time.Time      `json:"last_payment_date,omitempty"`
}

// InvoicePayment is the per-invoice timing detail the risk forecaster needs:
// how much of the invoice is settled and when the last receipt landed.
type InvoicePayment struct {
	InvoiceID     snowflake.ID
	CustomerID    snowflake.ID
	Amount        decimal.Decimal
	InvoiceDate   time.Time
	DueDate       time.Time
	PaidAmount    decimal.Decimal
	LastReceiptAt *time.Time
}

// Paid reports whether the invoice is settled in full.
func (p InvoicePayment) Paid() bool {
	return p.PaidAmount.GreaterThanOrEqual(p.Amount)
}

// PaidOnTime reports whether the invoice was settled in full on or before
// its due date.
func (p InvoicePayment) PaidOnTime() bool {
	if !p.Paid() || p.LastReceiptAt == nil {
		return false
	}
	return !p.LastReceiptAt.After(endOfDay(p.DueDate))
}

// DelayDays returns how many whole days after the due date the invoice was
// settled. Zero for on-time or unpaid invoices.
func (p InvoicePayment) DelayDays() int {
	if !p.Paid() || p.LastReceiptAt == nil {
		return 0
	}
	delay := p.LastReceiptAt.Sub(endOfDay(p.DueDate))
	if delay <= 0 {
		return 0
	}
	days := int(delay.Hours() / 24)
	if delay%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
}
