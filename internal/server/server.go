package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/duekeeper/internal/category"
	categorydomain "github.com/smallbiznis/duekeeper/internal/category/domain"
	"github.com/smallbiznis/duekeeper/internal/config"
	"github.com/smallbiznis/duekeeper/internal/customer"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/smallbiznis/duekeeper/internal/export"
	"github.com/smallbiznis/duekeeper/internal/ledger"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/smallbiznis/duekeeper/internal/observability"
	obsmiddleware "github.com/smallbiznis/duekeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/duekeeper/internal/observability/metrics"
	obstracing "github.com/smallbiznis/duekeeper/internal/observability/tracing"
	"github.com/smallbiznis/duekeeper/internal/ratelimit"
	"github.com/smallbiznis/duekeeper/internal/report"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	customer.Module,
	ledger.Module,
	category.Module,
	report.Module,
	export.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	customerSvc   customerdomain.Service
	ledgerSvc     ledgerdomain.Service
	categorySvc   categorydomain.Service
	reportSvc     reportdomain.Service
	exportSvc     *export.Service
	exportLimiter *ratelimit.ExportLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	CustomerSvc   customerdomain.Service
	LedgerSvc     ledgerdomain.Service
	CategorySvc   categorydomain.Service
	ReportSvc     reportdomain.Service
	ExportSvc     *export.Service
	ExportLimiter *ratelimit.ExportLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		customerSvc:   p.CustomerSvc,
		ledgerSvc:     p.LedgerSvc,
		categorySvc:   p.CategorySvc,
		reportSvc:     p.ReportSvc,
		exportSvc:     p.ExportSvc,
		exportLimiter: p.ExportLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.TenantRequired())

	// -------- Customers --------
	v1.GET("/customers", s.ListCustomers)
	v1.GET("/customers/:id", s.GetCustomerByID)
	v1.POST("/customers/:id/follow-ups", s.ScheduleFollowUp)

	// -------- Debtors --------
	v1.GET("/debtors", s.ListDebtors)
	v1.GET("/debtors/followup-stats", s.GetFollowUpStats)
	v1.GET("/debtors/export", s.ExportDebtors)

	// -------- Risk --------
	v1.GET("/risk/payment-forecaster", s.GetPaymentForecasts)

	// -------- Tenant rollups --------
	v1.GET("/tenants/:tenant_id/summary", s.GetTenantSummary)

	// -------- Category rules --------
	v1.GET("/category-rules", s.ListCategoryRules)
	v1.POST("/category-rules/recalculate", s.RecalculateCategories)
}
