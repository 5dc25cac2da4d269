package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/duekeeper/internal/customer/domain"
	"github.com/smallbiznis/duekeeper/internal/followup"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, got)

	got, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, got)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteDebtorsCSV(t *testing.T) {
	next := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	rows := []reportdomain.DebtorRow{
		{
			CustomerID:         snowflake.ID(1),
			Name:               "acme, inc",
			Category:           customerdomain.CategoryGamma,
			OpeningBalance:     decimal.NewFromInt(50000),
			InvoiceTotal:       decimal.NewFromInt(125000),
			ReceiptTotal:       decimal.NewFromInt(75000),
			OutstandingBalance: decimal.NewFromInt(100000),
			InvoiceCount:       3,
			ReceiptCount:       2,
			OverdueDays:        20,
			NextFollowUpAt:     &next,
			FollowUpBucket:     followup.BucketDueTomorrow,
		},
	}

	data, err := writeDebtorsCSV(rows, time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, csvHeader, records[0])

	row := records[1]
	assert.Equal(t, "acme, inc", row[1], "embedded commas survive quoting")
	assert.Equal(t, "100000.00", row[6])
	assert.Equal(t, "20", row[9])
	assert.Equal(t, "due_tomorrow", row[11])
}

func TestWriteDebtorsCSVEmpty(t *testing.T) {
	data, err := writeDebtorsCSV(nil, time.Now())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1, "header only")
}
