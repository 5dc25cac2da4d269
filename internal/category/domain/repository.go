package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListRules returns the tenant's ruleset ordered by ascending priority.
	ListRules(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]CategoryRule, error)
}
