package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"eod-normalizer/internal/domain"
)

// header maps lower-cased column names to their positions.
type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if name == "" {
			continue
		}
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// get returns the trimmed cell for column name, "" when the column or cell is absent.
func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var symbolMasterColumns = []string{"instrument_id", "exchange", "symbol"}

// symbolMasterRow maps one listing row to an entry.
// Status defaults to ACTIVE and lot size to 1.
func symbolMasterRow(h header, row []string) (*domain.SymbolMasterEntry, error) {
	e := &domain.SymbolMasterEntry{
		InstrumentID: h.get(row, "instrument_id"),
		Exchange:     strings.ToUpper(h.get(row, "exchange")),
		Symbol:       strings.ToUpper(h.get(row, "symbol")),
		Status:       strings.ToUpper(h.get(row, "status")),
		LotSize:      1,
	}
	if e.InstrumentID == "" || e.Exchange == "" || e.Symbol == "" {
		return nil, fmt.Errorf("instrument_id, exchange and symbol are required")
	}
	if v := h.get(row, "security_id"); v != "" {
		e.SecurityID = &v
	}
	switch e.Status {
	case "":
		e.Status = domain.SymbolStatusActive
	case domain.SymbolStatusActive, domain.SymbolStatusSuspended, domain.SymbolStatusDelisted:
	default:
		return nil, fmt.Errorf("unknown status %q", e.Status)
	}
	if v := h.get(row, "lot_size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid lot_size %q", v)
		}
		e.LotSize = n
	}
	return e, nil
}

var noticeColumns = []string{"exchange", "symbol", "purpose", "ex_date"}

// noticeRow maps one notice row. ordinal is the 1-based data row number and
// becomes the sequence when the file has none.
func noticeRow(h header, row []string, ordinal int) (domain.RawNotice, error) {
	n := domain.RawNotice{
		Exchange:    strings.ToUpper(h.get(row, "exchange")),
		Symbol:      strings.ToUpper(h.get(row, "symbol")),
		Purpose:     h.get(row, "purpose"),
		PurposeHint: h.get(row, "purpose_hint"),
		Sequence:    int64(ordinal),
	}
	if n.Exchange == "" || n.Symbol == "" || n.Purpose == "" {
		return n, fmt.Errorf("exchange, symbol and purpose are required")
	}

	exDate, err := domain.ParseFlexibleDate(h.get(row, "ex_date"))
	if err != nil {
		return n, fmt.Errorf("ex_date: %w", err)
	}
	n.ExDate = exDate

	if v := h.get(row, "record_date"); v != "" {
		d, err := domain.ParseFlexibleDate(v)
		if err != nil {
			return n, fmt.Errorf("record_date: %w", err)
		}
		n.RecordDate = &d
	}
	if v := h.get(row, "security_id"); v != "" {
		n.SecurityID = &v
	}
	if v := h.get(row, "face_value"); v != "" {
		fv, err := decimal.NewFromString(v)
		if err != nil {
			return n, fmt.Errorf("face_value %q: %w", v, err)
		}
		n.FaceValue = decimal.NewNullDecimal(fv)
	}
	if v := h.get(row, "sequence"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return n, fmt.Errorf("sequence %q: %w", v, err)
		}
		n.Sequence = seq
	}
	if v := h.get(row, "reference_close"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil || !(c > 0) || math.IsInf(c, 0) {
			return n, fmt.Errorf("invalid reference_close %q", v)
		}
		n.ReferenceClose = &c
	}
	return n, nil
}
