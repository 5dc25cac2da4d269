package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/duekeeper/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListCustomerFilter struct {
	Name       string
	Search     string
	Category   Category
	Categories []Category
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, filter ListCustomerFilter, page pagination.Pagination) ([]*Customer, error)
	// ListAfter pages customers by ascending ID for batch jobs.
	ListAfter(ctx context.Context, db *gorm.DB, tenantID, afterID snowflake.ID, limit int) ([]*Customer, error)
	// UpdateCategory writes the single category column. It reports whether a
	// row actually changed, so re-running a batch is idempotent.
	UpdateCategory(ctx context.Context, db *gorm.DB, tenantID, id snowflake.ID, category Category) (bool, error)
}
