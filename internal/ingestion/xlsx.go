package ingestion

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"eod-normalizer/internal/domain"
)

// XLSXNoticeSource reads corporate-action notices from an Excel workbook.
// The header row is the first row carrying the notice columns, so title
// rows above the table are skipped. Column names match CSVNoticeSource.
type XLSXNoticeSource struct {
	Path  string
	Sheet string // empty = first sheet with a notice header
}

// Fetch implements NoticeSource.
func (s *XLSXNoticeSource) Fetch(ctx context.Context) ([]domain.RawNotice, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if s.Sheet != "" {
		sheets = []string{s.Sheet}
	}

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%s: read sheet %q: %w", s.Path, sheet, err)
		}
		headerAt := findHeader(rows, noticeColumns)
		if headerAt < 0 {
			continue
		}
		return noticesFromRows(ctx, s.Path, sheet, rows, headerAt)
	}

	if s.Sheet != "" {
		return nil, fmt.Errorf("%s: sheet %q has no notice header", s.Path, s.Sheet)
	}
	return nil, fmt.Errorf("%s: no sheet with a notice header", s.Path)
}

// findHeader returns the index of the first row carrying every required column, or -1.
func findHeader(rows [][]string, required []string) int {
	for i, row := range rows {
		if blankRow(row) {
			continue
		}
		if newHeader(row).require(required...) == nil {
			return i
		}
	}
	return -1
}

func noticesFromRows(ctx context.Context, path, sheet string, rows [][]string, headerAt int) ([]domain.RawNotice, error) {
	h := newHeader(rows[headerAt])
	var out []domain.RawNotice
	for i := headerAt + 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if blankRow(rows[i]) {
			continue
		}
		n, err := noticeRow(h, rows[i], len(out)+1)
		if err != nil {
			// Excel rows are 1-based.
			return nil, fmt.Errorf("%s sheet %q row %d: %w", path, sheet, i+1, err)
		}
		out = append(out, n)
	}
	return out, nil
}
