package forecast

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func invoicePaid(amount float64, due time.Time, paidAt time.Time) ledgerdomain.InvoicePayment {
	amt := decimal.NewFromFloat(amount)
	return ledgerdomain.InvoicePayment{
		Amount:        amt,
		InvoiceDate:   due.AddDate(0, 0, -30),
		DueDate:       due,
		PaidAmount:    amt,
		LastReceiptAt: &paidAt,
	}
}

func invoiceUnpaid(amount float64, due time.Time) ledgerdomain.InvoicePayment {
	return ledgerdomain.InvoicePayment{
		Amount:      decimal.NewFromFloat(amount),
		InvoiceDate: due.AddDate(0, 0, -30),
		DueDate:     due,
		PaidAmount:  decimal.Zero,
	}
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandLow, BandFor(0))
	assert.Equal(t, BandLow, BandFor(29))
	assert.Equal(t, BandMedium, BandFor(30))
	assert.Equal(t, BandMedium, BandFor(69))
	assert.Equal(t, BandHigh, BandFor(70))
	assert.Equal(t, BandHigh, BandFor(100))
}

func TestComputeWeightedScore(t *testing.T) {
	// 5 settled invoices, 2 on time: onTimeRate = 40%.
	// 3 settled 30 days late: avgDelayDays = 30, delayFactor = 0.5.
	// 5 unpaid totalling 5000 against a 10000 limit: volumeFactor = 0.5,
	// amountFactor = 0.5.
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []ledgerdomain.InvoicePayment{
		invoicePaid(100, due, due.AddDate(0, 0, -2)),
		invoicePaid(100, due, due),
		invoicePaid(100, due, due.AddDate(0, 0, 30)),
		invoicePaid(100, due, due.AddDate(0, 0, 30)),
		invoicePaid(100, due, due.AddDate(0, 0, 30)),
	}
	for i := 0; i < 5; i++ {
		history = append(history, invoiceUnpaid(1000, due.AddDate(0, 0, i)))
	}

	got := Compute(snowflake.ID(1), history, decimal.NewFromInt(10000), testNow, DefaultWeights())

	require.NotNil(t, got.OnTimeRate)
	assert.InDelta(t, 0.4, *got.OnTimeRate, 1e-9)
	assert.InDelta(t, 30.0, got.AvgDelayDays, 1e-9)
	assert.Equal(t, 5, got.UnpaidInvoices)
	assert.True(t, got.UnpaidAmount.Equal(decimal.NewFromInt(5000)))

	// round(100*(0.40*0.6 + 0.30*0.5 + 0.15*0.5 + 0.15*0.5)) = 54
	assert.Equal(t, 54, got.StuckProbability)
	assert.Equal(t, BandMedium, got.RiskBand)
}

func TestComputeNeutralDefaultWhenNothingSettled(t *testing.T) {
	got := Compute(snowflake.ID(2), nil, decimal.NewFromInt(10000), testNow, DefaultWeights())

	assert.Nil(t, got.OnTimeRate)
	assert.Zero(t, got.AvgDelayDays)
	assert.Zero(t, got.UnpaidInvoices)

	// latePaymentRate defaults to 0.5: round(100*0.40*0.5) = 20.
	assert.Equal(t, 20, got.StuckProbability)
	assert.Equal(t, BandLow, got.RiskBand)
	assert.Nil(t, got.ExpectedPaymentDate)
}

func TestComputeExpectedPaymentDate(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []ledgerdomain.InvoicePayment{
		invoicePaid(100, due, due.AddDate(0, 0, 14)),
		invoiceUnpaid(500, due.AddDate(0, 0, 20)),
	}

	got := Compute(snowflake.ID(3), history, decimal.Zero, testNow, DefaultWeights())

	require.NotNil(t, got.ExpectedPaymentDate)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), *got.ExpectedPaymentDate)
}

func TestComputeMissingCreditLimitContributesNothing(t *testing.T) {
	history := []ledgerdomain.InvoicePayment{
		invoiceUnpaid(100000, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)),
	}

	withLimit := Compute(snowflake.ID(4), history, decimal.NewFromInt(100000), testNow, DefaultWeights())
	withoutLimit := Compute(snowflake.ID(4), history, decimal.Zero, testNow, DefaultWeights())

	assert.Greater(t, withLimit.StuckProbability, withoutLimit.StuckProbability)
}

func TestComputeScoreBoundsAndMonotonicity(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	makeHistory := func(delayDays, unpaid int) []ledgerdomain.InvoicePayment {
		history := []ledgerdomain.InvoicePayment{
			invoicePaid(100, due, due.AddDate(0, 0, delayDays)),
		}
		for i := 0; i < unpaid; i++ {
			history = append(history, invoiceUnpaid(100, due))
		}
		return history
	}

	prev := -1
	for _, delay := range []int{1, 10, 30, 60, 90, 365} {
		got := Compute(snowflake.ID(5), makeHistory(delay, 2), decimal.NewFromInt(1000), testNow, DefaultWeights())
		assert.GreaterOrEqual(t, got.StuckProbability, 0)
		assert.LessOrEqual(t, got.StuckProbability, 100)
		assert.GreaterOrEqual(t, got.StuckProbability, prev, "score must not decrease as delay grows")
		prev = got.StuckProbability
	}

	prev = -1
	for _, unpaid := range []int{0, 1, 3, 5, 10, 25} {
		got := Compute(snowflake.ID(5), makeHistory(30, unpaid), decimal.NewFromInt(100000), testNow, DefaultWeights())
		assert.GreaterOrEqual(t, got.StuckProbability, prev, "score must not decrease as unpaid volume grows")
		prev = got.StuckProbability
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	history := []ledgerdomain.InvoicePayment{
		invoicePaid(250, due, due.AddDate(0, 0, 12)),
		invoiceUnpaid(75.50, due.AddDate(0, 0, 5)),
	}

	first := Compute(snowflake.ID(6), history, decimal.NewFromInt(500), testNow, DefaultWeights())
	second := Compute(snowflake.ID(6), history, decimal.NewFromInt(500), testNow, DefaultWeights())

	assert.Equal(t, first, second)
}
