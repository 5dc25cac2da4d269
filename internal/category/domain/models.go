// Package domain defines tenant category rules and the rule evaluation that
// assigns customers to risk tiers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/config"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
)

// CategoryRule is one row of a tenant's classification ruleset. Nil bounds
// are unbounded; all bounds are inclusive.
type CategoryRule struct {
	ID             snowflake.ID            `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID            `gorm:"not null;index" json:"tenant_id"`
	Priority       int                     `gorm:"not null" json:"priority"`
	MinBalance     *decimal.Decimal        `gorm:"type:numeric(18,2)" json:"min_balance,omitempty"`
	MaxBalance     *decimal.Decimal        `gorm:"type:numeric(18,2)" json:"max_balance,omitempty"`
	MinOverdueDays *int                    `gorm:"" json:"min_overdue_days,omitempty"`
	MaxOverdueDays *int                    `gorm:"" json:"max_overdue_days,omitempty"`
	TargetCategory customerdomain.Category `gorm:"type:text;not null" json:"target_category"`
	CreatedAt      time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time               `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (CategoryRule) TableName() string { return "category_rules" }

// Matches reports whether a customer's outstanding balance and overdue days
// fall inside the rule's (inclusive) bounds.
func (r CategoryRule) Matches(balance decimal.Decimal, overdueDays int) bool {
	if r.MinBalance != nil && balance.LessThan(*r.MinBalance) {
		return false
	}
	if r.MaxBalance != nil && balance.GreaterThan(*r.MaxBalance) {
		return false
	}
	if r.MinOverdueDays != nil && overdueDays < *r.MinOverdueDays {
		return false
	}
	if r.MaxOverdueDays != nil && overdueDays > *r.MaxOverdueDays {
		return false
	}
	return true
}

// Evaluate walks rules in ascending priority and returns the first match.
// The second return is false when no rule matched, in which case the caller
// keeps the customer's current category. Rules must be pre-sorted.
func Evaluate(rules []CategoryRule, balance decimal.Decimal, overdueDays int) (customerdomain.Category, bool) {
	for _, rule := range rules {
		if rule.Matches(balance, overdueDays) {
			return rule.TargetCategory, true
		}
	}
	return "", false
}

// RulesFromPolicy materializes the config fallback ruleset for tenants that
// have no persisted rules. Rules with an unknown target category are dropped.
func RulesFromPolicy(defaults []config.DefaultCategoryRule) []CategoryRule {
	rules := make([]CategoryRule, 0, len(defaults))
	for _, d := range defaults {
		target, err := customerdomain.ParseCategory(d.TargetCategory)
		if err != nil {
			continue
		}
		rule := CategoryRule{
			Priority:       d.Priority,
			MinOverdueDays: d.MinOverdueDays,
			MaxOverdueDays: d.MaxOverdueDays,
			TargetCategory: target,
		}
		if d.MinBalance != nil {
			min := decimal.NewFromFloat(*d.MinBalance)
			rule.MinBalance = &min
		}
		if d.MaxBalance != nil {
			max := decimal.NewFromFloat(*d.MaxBalance)
			rule.MaxBalance = &max
		}
		rules = append(rules, rule)
	}
	return rules
}

// RecalcSummary reports one recalculation run.
type RecalcSummary struct {
	Pages      int `json:"pages"`
	Visited    int `json:"visited"`
	Reassigned int `json:"reassigned"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
}
