package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/duekeeper/internal/category/domain"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/smallbiznis/duekeeper/internal/lock"
	"github.com/smallbiznis/duekeeper/internal/observability/metrics"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recalcLockTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Policy    *config.CollectionsPolicyHolder
	Clock     clock.Clock
	Repo      domain.Repository
	Customers customerdomain.Repository
	Ledger    ledgerdomain.Service
	Locker    *lock.Locker            `optional:"true"`
	Metrics   *metrics.EngineMetrics  `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	policy    *config.CollectionsPolicyHolder
	clock     clock.Clock
	repo      domain.Repository
	customers customerdomain.Repository
	ledger    ledgerdomain.Service
	locker    *lock.Locker
	metrics   *metrics.EngineMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("category.service"),
		cfg:       p.Cfg,
		policy:    p.Policy,
		clock:     p.Clock,
		repo:      p.Repo,
		customers: p.Customers,
		ledger:    p.Ledger,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

func (s *Service) ListRules(ctx context.Context) ([]domain.CategoryRule, error) {
	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	rules, err := s.repo.ListRules(ctx, s.db, tenantID)
	if err != nil {
		return nil, wrapStorageErr(err)
	}
	if len(rules) == 0 {
		rules = domain.RulesFromPolicy(s.policy.Get().DefaultCategoryRules)
	}
	return rules, nil
}

func (s *Service) Recalculate(ctx context.Context) (domain.RecalcSummary, error) {
	var summary domain.RecalcSummary

	tenantID, ok := tenantctx.TenantIDFromContext(ctx)
	if !ok || tenantID == 0 {
		return summary, domain.ErrInvalidTenant
	}

	if s.locker != nil {
		key := lock.RecalcKey(tenantID)
		token, won, err := s.locker.TryLock(ctx, key, recalcLockTTL)
		if err != nil {
			return summary, fmt.Errorf("%w: acquiring recalc lock: %v", ledgerdomain.ErrDependencyUnavailable, err)
		}
		if !won {
			return summary, domain.ErrRecalcInProgress
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("releasing recalc lock failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
			}
		}()
	}

	rules, err := s.ListRules(ctx)
	if err != nil {
		return summary, err
	}

	pageSize := s.cfg.RecalcPageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	pageTimeout := time.Duration(s.cfg.RecalcPageTimeoutSec) * time.Second
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}

	now := s.clock.Now()
	var afterID snowflake.ID

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		page, err := s.recalcPage(ctx, tenantID, afterID, pageSize, pageTimeout, rules, now, &summary)
		if err != nil {
			return summary, err
		}
		if page == 0 {
			break
		}
		afterID = page
	}

	s.log.Info("category recalculation finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("pages", summary.Pages),
		zap.Int("visited", summary.Visited),
		zap.Int("reassigned", summary.Reassigned),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("skipped", summary.Skipped),
	)

	return summary, nil
}

// recalcPage processes one keyset page under its own deadline. It returns the
// last seen customer ID, or zero when the tenant is exhausted.
func (s *Service) recalcPage(
	ctx context.Context,
	tenantID, afterID snowflake.ID,
	pageSize int,
	pageTimeout time.Duration,
	rules []domain.CategoryRule,
	now time.Time,
	summary *domain.RecalcSummary,
) (snowflake.ID, error) {
	pageCtx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	customers, err := s.customers.ListAfter(pageCtx, s.db, tenantID, afterID, pageSize)
	if err != nil {
		return 0, wrapStorageErr(err)
	}
	if len(customers) == 0 {
		return 0, nil
	}

	summary.Pages++
	s.metrics.IncRecalcPage()

	ids := make([]snowflake.ID, 0, len(customers))
	for _, c := range customers {
		if !c.CategoryManualOverride {
			ids = append(ids, c.ID)
		}
	}

	var (
		totals   map[snowflake.ID]ledgerdomain.LedgerTotals
		payments map[snowflake.ID][]ledgerdomain.InvoicePayment
	)
	if len(ids) > 0 {
		totals, err = s.ledger.TotalsForCustomers(pageCtx, ids)
		if err != nil {
			return 0, err
		}
		payments, err = s.ledger.PaymentsForCustomers(pageCtx, ids)
		if err != nil {
			return 0, err
		}
	}

	for _, c := range customers {
		summary.Visited++

		if c.CategoryManualOverride {
			summary.Skipped++
			s.metrics.IncRecalcCustomer("skipped_override")
			continue
		}

		snapshot, err := s.ledger.Snapshot(*c, totals[c.ID])
		if err != nil {
			if dataErr, isData := ledgerdomain.AsDataError(err); isData {
				s.log.Warn("skipping customer with invalid ledger data",
					zap.String("tenant_id", tenantID.String()),
					zap.String("customer_id", c.ID.String()),
					zap.String("field", dataErr.Field),
					zap.String("reason", dataErr.Reason),
				)
				summary.Skipped++
				s.metrics.IncRecalcCustomer("skipped_data_error")
				continue
			}
			return 0, err
		}

		overdueDays := ledgerdomain.OverdueDays(payments[c.ID], now)
		target, matched := domain.Evaluate(rules, snapshot.OutstandingBalance, overdueDays)
		if !matched || target == c.Category {
			summary.Unchanged++
			s.metrics.IncRecalcCustomer("unchanged")
			continue
		}

		changed, err := s.customers.UpdateCategory(pageCtx, s.db, tenantID, c.ID, target)
		if err != nil {
			return 0, wrapStorageErr(err)
		}
		if changed {
			summary.Reassigned++
			s.metrics.IncRecalcCustomer("reassigned")
		} else {
			summary.Unchanged++
			s.metrics.IncRecalcCustomer("unchanged")
		}
	}

	lastID := customers[len(customers)-1].ID
	if len(customers) < pageSize {
		return 0, nil
	}
	return lastID, nil
}

func wrapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ledgerdomain.ErrTenantIsolation) || errors.Is(err, ledgerdomain.ErrDependencyUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ledgerdomain.ErrDependencyUnavailable, err)
}
