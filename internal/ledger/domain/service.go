package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
)

// ScheduleFollowUpRequest records a collection touch for one customer.
// FollowUpAt defaults to "now" when zero.
type ScheduleFollowUpRequest struct {
	CustomerID     snowflake.ID
	FollowUpAt     time.Time
	NextFollowUpAt *time.Time
	Status         string
	Notes          string
}

// Service aggregates a tenant's ledger rows into reconciled snapshots.
type Service interface {
	// Snapshot reduces one customer's totals into a DebtorSnapshot. It is a
	// pure function; a *DataError is returned when a ledger amount is invalid.
	Snapshot(customer customerdomain.Customer, totals LedgerTotals) (DebtorSnapshot, error)

	TotalsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID]LedgerTotals, error)
	PaymentsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID][]InvoicePayment, error)
	NextFollowUpsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID]*time.Time, error)

	// ScheduleFollowUp appends a follow-up record. Only the latest record per
	// customer drives bucketing, so rescheduling is a plain insert.
	ScheduleFollowUp(ctx context.Context, req ScheduleFollowUpRequest) (FollowUp, error)
}

// OverdueDays returns whole days since the oldest unpaid invoice's due date,
// or 0 when nothing is unpaid. Payments must be ordered by due date.
func OverdueDays(payments []InvoicePayment, now time.Time) int {
	for _, p := range payments {
		if p.Paid() {
			continue
		}
		elapsed := now.UTC().Sub(endOfDay(p.DueDate))
		if elapsed <= 0 {
			return 0
		}
		return int(elapsed.Hours()/24) + 1
	}
	return 0
}
