package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/duekeeper/internal/category/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) ListRules(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]domain.CategoryRule, error) {
	var rules []domain.CategoryRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority ASC, id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
