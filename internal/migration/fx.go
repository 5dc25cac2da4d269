package migration

import (
	categorydomain "github.com/smallbiznis/duekeeper/internal/category/domain"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// SQL migrations target postgres; other dialects (sqlite in dev,
			// mysql) build the schema from the models directly.
			return conn.AutoMigrate(
				&customerdomain.Customer{},
				&ledgerdomain.Invoice{},
				&ledgerdomain.Receipt{},
				&ledgerdomain.FollowUp{},
				&categorydomain.CategoryRule{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
