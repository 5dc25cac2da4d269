// Package forecast scores the likelihood that a customer's payment gets
// stuck, from their invoice settlement history.
package forecast

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/duekeeper/internal/config"
	ledgerdomain "github.com/smallbiznis/duekeeper/internal/ledger/domain"
)

type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// BandFor maps a 0-100 score onto a band: [0,30) low, [30,70) medium,
// [70,100] high.
func BandFor(score int) Band {
	switch {
	case score < 30:
		return BandLow
	case score < 70:
		return BandMedium
	default:
		return BandHigh
	}
}

// Weights are the scoring coefficients. The four rate weights must sum to 1.
type Weights struct {
	LatePayment  float64
	Delay        float64
	Volume       float64
	Amount       float64
	DelayCapDays float64
	VolumeCap    float64
}

// DefaultWeights mirrors the shipped collections policy.
func DefaultWeights() Weights {
	return WeightsFromPolicy(config.DefaultCollectionsPolicy().ForecastWeights)
}

// WeightsFromPolicy converts the hot-reloadable policy representation.
func WeightsFromPolicy(w config.ForecastWeights) Weights {
	return Weights{
		LatePayment:  w.LatePayment,
		Delay:        w.Delay,
		Volume:       w.Volume,
		Amount:       w.Amount,
		DelayCapDays: w.DelayCapDays,
		VolumeCap:    w.VolumeCap,
	}
}

// Forecast is a pure function of a customer's invoice/receipt history; it is
// recomputed on every read and never persisted.
type Forecast struct {
	CustomerID          snowflake.ID    `json:"customer_id"`
	StuckProbability    int             `json:"stuck_probability"`
	RiskBand            Band            `json:"risk_band"`
	ExpectedPaymentDate *time.Time      `json:"expected_payment_date,omitempty"`
	OnTimeRate          *float64        `json:"on_time_rate,omitempty"`
	AvgDelayDays        float64         `json:"avg_delay_days"`
	UnpaidInvoices      int             `json:"unpaid_invoices"`
	UnpaidAmount        decimal.Decimal `json:"unpaid_amount"`
}

// Compute derives the stuck probability and expected payment date for one
// customer.
//
// OnTimeRate is left nil when no invoice has been settled in full; the score
// then substitutes a neutral 50%. A missing or zero credit limit contributes
// nothing to the score rather than erroring.
func Compute(customerID snowflake.ID, history []ledgerdomain.InvoicePayment, creditLimit decimal.Decimal, now time.Time, w Weights) Forecast {
	var (
		paidFull   int
		paidOnTime int
		lateCount  int
		delaySum   int
	)
	unpaidAmount := decimal.Zero
	unpaidInvoices := 0

	for _, p := range history {
		if p.Paid() {
			paidFull++
			if p.PaidOnTime() {
				paidOnTime++
			} else {
				lateCount++
				delaySum += p.DelayDays()
			}
			continue
		}
		unpaidInvoices++
		unpaidAmount = unpaidAmount.Add(p.Amount.Sub(p.PaidAmount))
	}

	var onTimeRate *float64
	effectiveOnTime := 0.5
	if paidFull > 0 {
		rate := float64(paidOnTime) / float64(paidFull)
		onTimeRate = &rate
		effectiveOnTime = rate
	}

	avgDelayDays := 0.0
	if lateCount > 0 {
		avgDelayDays = float64(delaySum) / float64(lateCount)
	}

	latePaymentRate := 1 - effectiveOnTime
	delayFactor := math.Min(1, avgDelayDays/w.DelayCapDays)
	volumeFactor := math.Min(1, float64(unpaidInvoices)/w.VolumeCap)
	amountFactor := 0.0
	if creditLimit.IsPositive() {
		ratio, _ := unpaidAmount.Div(creditLimit).Float64()
		amountFactor = math.Min(1, math.Max(0, ratio))
	}

	score := int(math.Round(100 * (w.LatePayment*latePaymentRate +
		w.Delay*delayFactor +
		w.Volume*volumeFactor +
		w.Amount*amountFactor)))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var expected *time.Time
	if unpaidInvoices > 0 {
		day := floorDay(now).AddDate(0, 0, int(math.Round(avgDelayDays)))
		expected = &day
	}

	return Forecast{
		CustomerID:          customerID,
		StuckProbability:    score,
		RiskBand:            BandFor(score),
		ExpectedPaymentDate: expected,
		OnTimeRate:          onTimeRate,
		AvgDelayDays:        avgDelayDays,
		UnpaidInvoices:      unpaidInvoices,
		UnpaidAmount:        unpaidAmount.Round(2),
	}
}

func floorDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
