package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"eod-normalizer/internal/domain"
)

// readCSV reads path and calls fn for every non-blank data row.
// line is the 1-based line number in the file.
func readCSV(path string, required []string, fn func(h header, row []string, line int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return fmt.Errorf("%s: read header: %w", path, err)
	}
	h := newHeader(first)
	if err := h.require(required...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if blankRow(row) {
			continue
		}
		if err := fn(h, row, line); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

// CSVSymbolMasterSource reads a symbol master listing from a CSV file.
// Columns: instrument_id, exchange, symbol, [security_id], [status], [lot_size].
type CSVSymbolMasterSource struct {
	Path string
}

// Fetch implements SymbolMasterSource.
func (s *CSVSymbolMasterSource) Fetch(ctx context.Context) ([]*domain.SymbolMasterEntry, error) {
	var out []*domain.SymbolMasterEntry
	err := readCSV(s.Path, symbolMasterColumns, func(h header, row []string, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := symbolMasterRow(h, row)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CSVNoticeSource reads corporate-action notices from a CSV file.
// Columns: exchange, symbol, purpose, ex_date, [purpose_hint], [security_id],
// [record_date], [face_value], [sequence], [reference_close].
type CSVNoticeSource struct {
	Path string
}

// Fetch implements NoticeSource.
func (s *CSVNoticeSource) Fetch(ctx context.Context) ([]domain.RawNotice, error) {
	var out []domain.RawNotice
	err := readCSV(s.Path, noticeColumns, func(h header, row []string, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := noticeRow(h, row, len(out)+1)
		if err != nil {
			return err
		}
		out = append(out, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCalendarCSV reads exchange holidays into a trading calendar.
// Columns: exchange, date, [description].
func LoadCalendarCSV(path string) (*domain.TradingCalendar, error) {
	cal := domain.NewTradingCalendar()
	err := readCSV(path, []string{"exchange", "date"}, func(h header, row []string, _ int) error {
		d, err := domain.ParseFlexibleDate(h.get(row, "date"))
		if err != nil {
			return err
		}
		exchange := strings.ToUpper(h.get(row, "exchange"))
		if exchange == "" {
			return errors.New("exchange is required")
		}
		cal.AddHoliday(exchange, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cal, nil
}
