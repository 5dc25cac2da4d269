// Package seed loads a small demo tenant so a fresh local install has
// something to look at: customers across every risk tier, overdue and settled
// invoices, partial payments and scheduled follow-ups.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	pkgdb "github.com/smallbiznis/duekeeper/pkg/db"
	"gorm.io/gorm"
)

const demoTenantID = snowflake.ID(1)

// Demo rows carry deterministic IDs so two instances racing the seed collide
// on the primary key instead of double-seeding the tenant.
func demoID(customerIdx, offset int) snowflake.ID {
	return snowflake.ID((customerIdx+1)*1000 + offset)
}

type demoCustomer struct {
	name        string
	category    customerdomain.Category
	opening     float64
	creditLimit float64
	invoices    []demoInvoice
	nextDays    *int
}

type demoInvoice struct {
	amount      float64
	dueDaysAgo  int
	paidPortion float64
}

var demoBook = []demoCustomer{
	{
		name:        "Borneo Hardware Supply",
		category:    customerdomain.CategoryAlpha,
		opening:     0,
		creditLimit: 250000,
		invoices: []demoInvoice{
			{amount: 42000, dueDaysAgo: -12, paidPortion: 0},
			{amount: 31000, dueDaysAgo: 45, paidPortion: 1},
		},
	},
	{
		name:        "Cendana Textiles",
		category:    customerdomain.CategoryBeta,
		opening:     15000,
		creditLimit: 180000,
		invoices: []demoInvoice{
			{amount: 58000, dueDaysAgo: 9, paidPortion: 0.5},
		},
		nextDays: intPtr(2),
	},
	{
		name:        "Delima Fresh Produce",
		category:    customerdomain.CategoryGamma,
		opening:     90000,
		creditLimit: 120000,
		invoices: []demoInvoice{
			{amount: 76000, dueDaysAgo: 48, paidPortion: 0},
			{amount: 22000, dueDaysAgo: 20, paidPortion: 0},
		},
		nextDays: intPtr(0),
	},
	{
		name:        "Emas Logistics",
		category:    customerdomain.CategoryDelta,
		opening:     410000,
		creditLimit: 400000,
		invoices: []demoInvoice{
			{amount: 230000, dueDaysAgo: 95, paidPortion: 0.1},
		},
		nextDays: intPtr(-5),
	},
}

// EnsureDemoTenant seeds the demo book once; a tenant that already has
// customers is left untouched. A duplicate-key error means another instance
// seeded concurrently and is not a failure.
func EnsureDemoTenant(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&customerdomain.Customer{}).
			Where("tenant_id = ?", demoTenantID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		for idx, dc := range demoBook {
			customer := customerdomain.Customer{
				ID:               demoID(idx, 0),
				TenantID:         demoTenantID,
				Name:             dc.name,
				Category:         dc.category,
				CreditLimit:      decimal.NewFromFloat(dc.creditLimit),
				OpeningBalance:   decimal.NewFromFloat(dc.opening),
				PaymentTermsDays: 30,
			}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}

			for i, di := range dc.invoices {
				due := now.AddDate(0, 0, -di.dueDaysAgo)
				invoice := ledgerdomain.Invoice{
					ID:          demoID(idx, 100+i),
					TenantID:    demoTenantID,
					CustomerID:  customer.ID,
					Amount:      decimal.NewFromFloat(di.amount),
					InvoiceDate: due.AddDate(0, 0, -30),
					DueDate:     due,
				}
				if err := tx.Create(&invoice).Error; err != nil {
					return err
				}

				if di.paidPortion > 0 {
					receivedAt := due.AddDate(0, 0, -2)
					if di.paidPortion < 1 {
						receivedAt = due.AddDate(0, 0, 5)
					}
					invoiceID := invoice.ID
					receipt := ledgerdomain.Receipt{
						ID:         demoID(idx, 200+i),
						TenantID:   demoTenantID,
						CustomerID: customer.ID,
						InvoiceID:  &invoiceID,
						Amount:     decimal.NewFromFloat(di.amount * di.paidPortion),
						ReceivedAt: receivedAt,
					}
					if err := tx.Create(&receipt).Error; err != nil {
						return err
					}
				}
			}

			if dc.nextDays != nil {
				next := now.AddDate(0, 0, *dc.nextDays)
				followUp := ledgerdomain.FollowUp{
					ID:             demoID(idx, 300),
					TenantID:       demoTenantID,
					CustomerID:     customer.ID,
					FollowUpAt:     now.AddDate(0, 0, -7),
					NextFollowUpAt: &next,
					Status:         "open",
					Notes:          "demo follow-up",
				}
				if err := tx.Create(&followUp).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	if pkgdb.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}

func intPtr(v int) *int {
	return &v
}
