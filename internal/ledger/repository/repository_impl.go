package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type totalsRow struct {
	TenantID   snowflake.ID    `gorm:"column:tenant_id"`
	CustomerID snowflake.ID    `gorm:"column:customer_id"`
	Total      decimal.Decimal `gorm:"column:total"`
	MinAmount  decimal.Decimal `gorm:"column:min_amount"`
	RowCount   int64           `gorm:"column:row_count"`
	LastDate   *time.Time      `gorm:"column:last_date"`
}

func (r *repo) TotalsByCustomer(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID]domain.LedgerTotals, error) {
	totals := make(map[snowflake.ID]domain.LedgerTotals, len(customerIDs))
	if len(customerIDs) == 0 {
		return totals, nil
	}

	var invoiceRows []totalsRow
	if err := db.WithContext(ctx).Raw(
		`SELECT tenant_id, customer_id,
		        COALESCE(SUM(amount), 0) AS total,
		        COALESCE(MIN(amount), 0) AS min_amount,
		        COUNT(*) AS row_count,
		        MAX(invoice_date) AS last_date
		 FROM invoices
		 WHERE tenant_id = ? AND customer_id IN ?
		 GROUP BY tenant_id, customer_id`,
		tenantID,
		customerIDs,
	).Scan(&invoiceRows).Error; err != nil {
		return nil, err
	}

	var receiptRows []totalsRow
	if err := db.WithContext(ctx).Raw(
		`SELECT tenant_id, customer_id,
		        COALESCE(SUM(amount), 0) AS total,
		        COALESCE(MIN(amount), 0) AS min_amount,
		        COUNT(*) AS row_count,
		        MAX(received_at) AS last_date
		 FROM receipts
		 WHERE tenant_id = ? AND customer_id IN ?
		 GROUP BY tenant_id, customer_id`,
		tenantID,
		customerIDs,
	).Scan(&receiptRows).Error; err != nil {
		return nil, err
	}

	for _, row := range invoiceRows {
		if row.TenantID != tenantID {
			return nil, domain.ErrTenantIsolation
		}
		entry := totals[row.CustomerID]
		entry.CustomerID = row.CustomerID
		entry.InvoiceTotal = row.Total
		entry.MinInvoice = row.MinAmount
		entry.InvoiceCount = row.RowCount
		entry.LastInvoiceDate = row.LastDate
		totals[row.CustomerID] = entry
	}
	for _, row := range receiptRows {
		if row.TenantID != tenantID {
			return nil, domain.ErrTenantIsolation
		}
		entry := totals[row.CustomerID]
		entry.CustomerID = row.CustomerID
		entry.ReceiptTotal = row.Total
		entry.MinReceipt = row.MinAmount
		entry.ReceiptCount = row.RowCount
		entry.LastPaymentDate = row.LastDate
		totals[row.CustomerID] = entry
	}

	return totals, nil
}

type paymentRow struct {
	InvoiceID     snowflake.ID    `gorm:"column:invoice_id"`
	TenantID      snowflake.ID    `gorm:"column:tenant_id"`
	CustomerID    snowflake.ID    `gorm:"column:customer_id"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	InvoiceDate   time.Time       `gorm:"column:invoice_date"`
	DueDate       time.Time       `gorm:"column:due_date"`
	PaidAmount    decimal.Decimal `gorm:"column:paid_amount"`
	LastReceiptAt *time.Time      `gorm:"column:last_receipt_at"`
}

func (r *repo) InvoicePayments(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID][]domain.InvoicePayment, error) {
	payments := make(map[snowflake.ID][]domain.InvoicePayment, len(customerIDs))
	if len(customerIDs) == 0 {
		return payments, nil
	}

	var rows []paymentRow
	if err := db.WithContext(ctx).Raw(
		`SELECT i.id AS invoice_id, i.tenant_id, i.customer_id, i.amount,
		        i.invoice_date, i.due_date,
		        COALESCE(SUM(r.amount), 0) AS paid_amount,
		        MAX(r.received_at) AS last_receipt_at
		 FROM invoices i
		 LEFT JOIN receipts r ON r.invoice_id = i.id AND r.tenant_id = i.tenant_id
		 WHERE i.tenant_id = ? AND i.customer_id IN ?
		 GROUP BY i.id, i.tenant_id, i.customer_id, i.amount, i.invoice_date, i.due_date
		 ORDER BY i.due_date ASC, i.id ASC`,
		tenantID,
		customerIDs,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.TenantID != tenantID {
			return nil, domain.ErrTenantIsolation
		}
		payments[row.CustomerID] = append(payments[row.CustomerID], domain.InvoicePayment{
			InvoiceID:     row.InvoiceID,
			CustomerID:    row.CustomerID,
			Amount:        row.Amount,
			InvoiceDate:   row.InvoiceDate,
			DueDate:       row.DueDate,
			PaidAmount:    row.PaidAmount,
			LastReceiptAt: row.LastReceiptAt,
		})
	}

	return payments, nil
}

type followUpRow struct {
	TenantID       snowflake.ID `gorm:"column:tenant_id"`
	CustomerID     snowflake.ID `gorm:"column:customer_id"`
	NextFollowUpAt *time.Time   `gorm:"column:next_follow_up_at"`
}

func (r *repo) NextFollowUps(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID]*time.Time, error) {
	next := make(map[snowflake.ID]*time.Time, len(customerIDs))
	if len(customerIDs) == 0 {
		return next, nil
	}

	var rows []followUpRow
	if err := db.WithContext(ctx).Raw(
		`SELECT f.tenant_id, f.customer_id, f.next_follow_up_at
		 FROM follow_ups f
		 JOIN (
		 	SELECT customer_id, MAX(follow_up_at) AS latest_at
		 	FROM follow_ups
		 	WHERE tenant_id = ? AND customer_id IN ?
		 	GROUP BY customer_id
		 ) latest ON latest.customer_id = f.customer_id AND latest.latest_at = f.follow_up_at
		 WHERE f.tenant_id = ?`,
		tenantID,
		customerIDs,
		tenantID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.TenantID != tenantID {
			return nil, domain.ErrTenantIsolation
		}
		next[row.CustomerID] = row.NextFollowUpAt
	}

	return next, nil
}

func (r *repo) InsertFollowUp(ctx context.Context, db *gorm.DB, followUp *domain.FollowUp) error {
	return db.WithContext(ctx).Create(followUp).Error
}
