package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
)

var csvHeader = []string{
	"customer_id",
	"name",
	"category",
	"opening_balance",
	"invoice_total",
	"receipt_total",
	"outstanding_balance",
	"invoice_count",
	"receipt_count",
	"overdue_days",
	"next_follow_up_at",
	"follow_up_bucket",
	"synced_at",
}

func writeDebtorsCSV(rows []reportdomain.DebtorRow, syncedAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	stamp := syncedAt.Format(time.RFC3339)
	for _, row := range rows {
		next := ""
		if row.NextFollowUpAt != nil {
			next = row.NextFollowUpAt.Format(time.RFC3339)
		}
		record := []string{
			row.CustomerID.String(),
			row.Name,
			string(row.Category),
			row.OpeningBalance.StringFixed(2),
			row.InvoiceTotal.StringFixed(2),
			row.ReceiptTotal.StringFixed(2),
			row.OutstandingBalance.StringFixed(2),
			strconv.FormatInt(row.InvoiceCount, 10),
			strconv.FormatInt(row.ReceiptCount, 10),
			strconv.Itoa(row.OverdueDays),
			next,
			string(row.FollowUpBucket),
			stamp,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
