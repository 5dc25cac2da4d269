package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/clock"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Repo      domain.Repository
	Customers customerdomain.Repository
	Clock     clock.Clock
	GenID     *snowflake.Node
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	customers customerdomain.Repository
	clock     clock.Clock
	genID     *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		repo:      p.Repo,
		customers: p.Customers,
		clock:     p.Clock,
		genID:     p.GenID,
	}
}

// Snapshot reduces one customer's ledger totals into a reconciled snapshot.
// OutstandingBalance = OpeningBalance + InvoiceTotal - ReceiptTotal, exact to
// two decimals; the identity is never rounded away.
func (s *Service) Snapshot(customer customerdomain.Customer, totals domain.LedgerTotals) (domain.DebtorSnapshot, error) {
	if totals.MinInvoice.IsNegative() {
		return domain.DebtorSnapshot{}, &domain.DataError{
			CustomerID: customer.ID,
			Field:      "invoice.amount",
			Reason:     fmt.Sprintf("negative amount %s", totals.MinInvoice),
		}
	}
	if totals.MinReceipt.IsNegative() {
		return domain.DebtorSnapshot{}, &domain.DataError{
			CustomerID: customer.ID,
			Field:      "receipt.amount",
			Reason:     fmt.Sprintf("negative amount %s", totals.MinReceipt),
		}
	}

	outstanding := customer.OpeningBalance.
		Add(totals.InvoiceTotal).
		Sub(totals.ReceiptTotal)

	return domain.DebtorSnapshot{
		CustomerID:         customer.ID,
		OpeningBalance:     fixed(customer.OpeningBalance),
		InvoiceTotal:       fixed(totals.InvoiceTotal),
		ReceiptTotal:       fixed(totals.ReceiptTotal),
		OutstandingBalance: fixed(outstanding),
		InvoiceCount:       totals.InvoiceCount,
		ReceiptCount:       totals.ReceiptCount,
		LastInvoiceDate:    totals.LastInvoiceDate,
		LastPaymentDate:    totals.LastPaymentDate,
	}, nil
}

func (s *Service) TotalsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID]domain.LedgerTotals, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, customerdomain.ErrInvalidTenant
	}
	totals, err := s.repo.TotalsByCustomer(ctx, s.db, tenantID, customerIDs)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return totals, nil
}

func (s *Service) PaymentsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID][]domain.InvoicePayment, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, customerdomain.ErrInvalidTenant
	}
	payments, err := s.repo.InvoicePayments(ctx, s.db, tenantID, customerIDs)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return payments, nil
}

func (s *Service) NextFollowUpsForCustomers(ctx context.Context, customerIDs []snowflake.ID) (map[snowflake.ID]*time.Time, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, customerdomain.ErrInvalidTenant
	}
	next, err := s.repo.NextFollowUps(ctx, s.db, tenantID, customerIDs)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	return next, nil
}

func (s *Service) ScheduleFollowUp(ctx context.Context, req domain.ScheduleFollowUpRequest) (domain.FollowUp, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return domain.FollowUp{}, customerdomain.ErrInvalidTenant
	}
	if req.CustomerID == 0 {
		return domain.FollowUp{}, customerdomain.ErrInvalidID
	}

	item, err := s.customers.FindByID(ctx, s.db, tenantID, req.CustomerID)
	if err != nil {
		return domain.FollowUp{}, wrapStorageErr(err)
	}
	if item == nil {
		return domain.FollowUp{}, customerdomain.ErrNotFound
	}

	followUpAt := req.FollowUpAt
	if followUpAt.IsZero() {
		followUpAt = s.clock.Now()
	}
	if req.NextFollowUpAt != nil && !req.NextFollowUpAt.After(followUpAt) {
		return domain.FollowUp{}, domain.ErrInvalidFollowUp
	}

	status := req.Status
	if status == "" {
		status = "open"
	}

	followUp := domain.FollowUp{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		CustomerID:     req.CustomerID,
		FollowUpAt:     followUpAt.UTC(),
		NextFollowUpAt: req.NextFollowUpAt,
		Status:         status,
		Notes:          req.Notes,
	}
	if err := s.repo.InsertFollowUp(ctx, s.db, &followUp); err != nil {
		return domain.FollowUp{}, wrapStorageErr(err)
	}

	s.log.Info("follow-up scheduled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", req.CustomerID.String()),
	)
	return followUp, nil
}

// fixed pins a decimal to two places without changing its value; ledger
// amounts are stored as numeric(18,2) so this only normalizes exponents.
func fixed(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTenantIsolation) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
}
