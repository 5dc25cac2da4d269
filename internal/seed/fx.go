package seed

import (
	"github.com/smallbiznis/duekeeper/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(db *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.SeedDemoData {
			return nil
		}
		if err := EnsureDemoTenant(db); err != nil {
			return err
		}
		log.Info("demo tenant seeded")
		return nil
	}),
)
