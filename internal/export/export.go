// Package export renders debtor reports as downloadable CSV or PDF files.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reportdomain "github.com/smallbiznis/duekeeper/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported_export_format")

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// File is a rendered export ready to stream to the client.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Reports reportdomain.Service
}

type Service struct {
	log     *zap.Logger
	reports reportdomain.Service
}

func New(p Params) *Service {
	return &Service{
		log:     p.Log.Named("export.service"),
		reports: p.Reports,
	}
}

// Debtors renders the full debtor report for the tenant in context. It pages
// through the reporting service so very large tenants never load in one shot.
func (s *Service) Debtors(ctx context.Context, req reportdomain.DebtorsRequest, format Format) (*File, error) {
	rows, syncedAt, err := s.collectRows(ctx, req)
	if err != nil {
		return nil, err
	}

	stamp := syncedAt.Format("20060102-150405")
	switch format {
	case FormatCSV:
		data, err := writeDebtorsCSV(rows, syncedAt)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        fmt.Sprintf("debtors-%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case FormatPDF:
		data, err := renderDebtorsPDF(rows, syncedAt)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        fmt.Sprintf("debtors-%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

func (s *Service) collectRows(ctx context.Context, req reportdomain.DebtorsRequest) ([]reportdomain.DebtorRow, time.Time, error) {
	var rows []reportdomain.DebtorRow
	var at time.Time

	req.PageSize = 200
	req.PageToken = ""
	for {
		resp, err := s.reports.Debtors(ctx, req)
		if err != nil {
			return nil, at, err
		}
		rows = append(rows, resp.Debtors...)
		at = resp.SyncedAt
		if !resp.HasMore || resp.NextPageToken == "" {
			return rows, at, nil
		}
		req.PageToken = resp.NextPageToken
	}
}
