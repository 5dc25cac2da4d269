// Package scheduler drives the nightly background work: re-deriving customer
// categories from the live ledger and refreshing cached read models, tenant
// by tenant.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	categorydomain "github.com/smallbiznis/duekeeper/internal/category/domain"
	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/smallbiznis/duekeeper/internal/config"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	"github.com/smallbiznis/duekeeper/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	AppCfg      config.Config
	Clock       clock.Clock
	CategorySvc categorydomain.Service
	Reports     reportdomain.Service
	Config      Config `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	appCfg      config.Config
	cfg         Config
	clock       clock.Clock
	categorySvc categorydomain.Service
	reports     reportdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		appCfg:      p.AppCfg,
		cfg:         p.Config.withDefaults(),
		clock:       p.Clock,
		categorySvc: p.CategorySvc,
		reports:     p.Reports,
	}
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"category_recalc", s.CategoryRecalcJob},
		{"readmodel_refresh", s.ReadModelRefreshJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
		start := s.clock.Now()
		jobErr := job.Run(ctx)
		cancel()
		if jobErr != nil {
			s.log.Warn("scheduler job failed",
				zap.String("job", job.Name),
				zap.Duration("elapsed", s.clock.Now().Sub(start)),
				zap.Error(jobErr),
			)
			err = errors.Join(err, jobErr)
			continue
		}
		s.log.Info("scheduler job finished",
			zap.String("job", job.Name),
			zap.Duration("elapsed", s.clock.Now().Sub(start)),
		)
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CategoryRecalcJob re-runs classification for every tenant that has
// customers. A tenant whose recalculation lock is held elsewhere is skipped,
// not failed.
func (s *Scheduler) CategoryRecalcJob(ctx context.Context) error {
	return s.eachTenant(ctx, func(tenantCtx context.Context, tenantID snowflake.ID) error {
		summary, err := s.categorySvc.Recalculate(tenantCtx)
		if err != nil {
			if errors.Is(err, categorydomain.ErrRecalcInProgress) {
				s.log.Debug("recalculation already running elsewhere",
					zap.String("tenant_id", tenantID.String()))
				return nil
			}
			return err
		}
		s.reports.InvalidateTenant(tenantID)
		if summary.Reassigned > 0 {
			s.log.Info("tenant categories recalculated",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("reassigned", summary.Reassigned),
			)
		}
		return nil
	})
}

// ReadModelRefreshJob warms the follow-up stats and tenant summary caches so
// the first morning reads hit fresh data.
func (s *Scheduler) ReadModelRefreshJob(ctx context.Context) error {
	return s.eachTenant(ctx, func(tenantCtx context.Context, tenantID snowflake.ID) error {
		if _, err := s.reports.FollowUpStats(tenantCtx); err != nil {
			return err
		}
		_, err := s.reports.TenantSummary(tenantCtx)
		return err
	})
}

// eachTenant fans tenant work over a bounded pool.
func (s *Scheduler) eachTenant(ctx context.Context, fn func(context.Context, snowflake.ID) error) error {
	tenants, err := s.listTenants(ctx)
	if err != nil {
		return err
	}
	if len(tenants) == 0 {
		return nil
	}

	workers := s.appCfg.EngineTenantConcurrent
	if workers <= 0 {
		workers = s.cfg.TenantConcurrency
	}
	if workers > len(tenants) {
		workers = len(tenants)
	}

	jobs := make(chan snowflake.ID)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for tenantID := range jobs {
				tenantCtx := tenantctx.WithTenantID(ctx, int64(tenantID))
				if err := fn(tenantCtx, tenantID); err != nil {
					errs[slot] = errors.Join(errs[slot], err)
				}
			}
		}(w)
	}

	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return errors.Join(append(errs, ctx.Err())...)
		case jobs <- tenantID:
		}
	}
	close(jobs)
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Scheduler) listTenants(ctx context.Context) ([]snowflake.ID, error) {
	var rows []struct {
		TenantID snowflake.ID `gorm:"column:tenant_id"`
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT tenant_id FROM customers ORDER BY tenant_id`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	tenants := make([]snowflake.ID, 0, len(rows))
	for _, row := range rows {
		tenants = append(tenants, row.TenantID)
	}
	return tenants, nil
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
