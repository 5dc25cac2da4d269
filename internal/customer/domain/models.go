package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Category is a customer's risk tier. Alpha is the safest band, Delta the
// most delinquent.
type Category string

const (
	CategoryAlpha Category = "ALPHA"
	CategoryBeta  Category = "BETA"
	CategoryGamma Category = "GAMMA"
	CategoryDelta Category = "DELTA"
)

var ErrInvalidCategory = errors.New("invalid_category")

// ParseCategory normalizes a raw category value.
func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToUpper(strings.TrimSpace(raw))) {
	case CategoryAlpha:
		return CategoryAlpha, nil
	case CategoryBeta:
		return CategoryBeta, nil
	case CategoryGamma:
		return CategoryGamma, nil
	case CategoryDelta:
		return CategoryDelta, nil
	default:
		return "", ErrInvalidCategory
	}
}

// Categories lists all tiers in rank order.
func Categories() []Category {
	return []Category{CategoryAlpha, CategoryBeta, CategoryGamma, CategoryDelta}
}

type Customer struct {
	ID                     snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID               snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	Name                   string            `gorm:"not null" json:"name"`
	Email                  string            `gorm:"" json:"email,omitempty"`
	Category               Category          `gorm:"type:text;not null;default:'BETA'" json:"category"`
	CreditLimit            decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"credit_limit"`
	OpeningBalance         decimal.Decimal   `gorm:"type:numeric(18,2);not null;default:0" json:"opening_balance"`
	PaymentTermsDays       int               `gorm:"not null;default:30" json:"payment_terms_days"`
	CategoryManualOverride bool              `gorm:"not null;default:false" json:"category_manual_override"`
	Metadata               datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }
