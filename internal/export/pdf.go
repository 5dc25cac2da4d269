package export

import (
	"strconv"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
)

func renderDebtorsPDF(rows []reportdomain.DebtorRow, syncedAt time.Time) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Debtor Report", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, "As of "+syncedAt.Format("2006-01-02 15:04 MST"), props.Text{
			Size: 9,
		}),
	)

	// Table header
	m.AddRow(8,
		text.NewCol(4, "Customer", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(1, "Tier", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Outstanding", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Overdue (d)", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Follow-up", props.Text{Style: fontstyle.Bold, Size: 9}),
	)

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.OutstandingBalance)
		m.AddRow(7,
			text.NewCol(4, row.Name, props.Text{Size: 8}),
			text.NewCol(1, string(row.Category), props.Text{Size: 8}),
			text.NewCol(2, row.OutstandingBalance.StringFixed(2), props.Text{Size: 8, Align: align.Right}),
			text.NewCol(2, strconv.Itoa(row.OverdueDays), props.Text{Size: 8, Align: align.Right}),
			text.NewCol(3, string(row.FollowUpBucket), props.Text{Size: 8}),
		)
	}

	m.AddRow(10,
		col.New(5),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, total.StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		col.New(3),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
