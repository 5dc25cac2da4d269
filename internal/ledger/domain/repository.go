package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads tenant-scoped ledger rows. Totals are aggregated SQL-side;
// only InvoicePayments loads row-level detail, because the forecaster needs
// per-invoice timing.
type Repository interface {
	TotalsByCustomer(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID]LedgerTotals, error)
	InvoicePayments(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID][]InvoicePayment, error)
	// NextFollowUps returns the latest scheduled next follow-up per customer.
	NextFollowUps(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, customerIDs []snowflake.ID) (map[snowflake.ID]*time.Time, error)
	InsertFollowUp(ctx context.Context, db *gorm.DB, followUp *FollowUp) error
}
