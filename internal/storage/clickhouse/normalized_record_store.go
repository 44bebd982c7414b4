package clickhouse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// NormalizedRecordStore implements storage.NormalizedRecordStore using ClickHouse.
//
// normalized_records is a ReplacingMergeTree keyed by (instrument_id, trade_date).
// Every Upsert writes a higher version than the last one, and reads use FINAL,
// so a recomputed row replaces the previous one.
type NormalizedRecordStore struct {
	conn *Conn

	mu          sync.Mutex
	lastVersion uint64
}

// NewNormalizedRecordStore creates a new NormalizedRecordStore.
func NewNormalizedRecordStore(conn *Conn) *NormalizedRecordStore {
	return &NormalizedRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.NormalizedRecordStore = (*NormalizedRecordStore)(nil)

const normalizedColumns = `
	instrument_id, trade_date, exchange, symbol, security_id, source, event_id,
	open, high, low, close, prev_close, last, settlement, volume, turnover,
	adjustment_factor, adjustment_date, is_trading_day
`

// Upsert writes records. Fails on a repeated (instrument_id, trade_date) within the batch.
func (s *NormalizedRecordStore) Upsert(ctx context.Context, records []*domain.NormalizedRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		instrumentID string
		tradeDate    string
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.InstrumentID == "" || r.Prices.Close == nil {
			return storage.ErrInvalidInput
		}
		k := key{r.InstrumentID, domain.FormatDate(r.TradeDate)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	defer func(start time.Time) { observe("normalized_records.upsert", start, err) }(time.Now())

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO normalized_records (`+normalizedColumns+`, version)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer batch.Abort()

	version := s.nextVersion()
	for _, r := range records {
		p := r.Prices
		err = batch.Append(
			r.InstrumentID, domain.DateOf(r.TradeDate), r.Exchange, r.Symbol, r.SecurityID, r.Source, r.EventID,
			p.Open, p.High, p.Low, *p.Close, p.PrevClose, p.Last, p.Settlement, r.Volume, r.Turnover,
			r.AdjustmentFactor, dateOrNil(r.AdjustmentDate), r.IsTradingDay,
			version,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrument retrieves records for an instrument, ordered by trade_date ASC.
func (s *NormalizedRecordStore) GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.NormalizedRecord, error) {
	query := `
		SELECT ` + normalizedColumns + `
		FROM normalized_records FINAL
		WHERE instrument_id = ?
		ORDER BY trade_date ASC
	`
	return s.query(ctx, "normalized_records.get_by_instrument", query, instrumentID)
}

// GetByDateRange retrieves records with trade_date within [start, end] (inclusive).
func (s *NormalizedRecordStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]*domain.NormalizedRecord, error) {
	query := `
		SELECT ` + normalizedColumns + `
		FROM normalized_records FINAL
		WHERE trade_date >= toDate(?) AND trade_date <= toDate(?)
		ORDER BY instrument_id ASC, trade_date ASC
	`
	return s.query(ctx, "normalized_records.get_by_date_range", query,
		domain.FormatDate(start), domain.FormatDate(end))
}

func (s *NormalizedRecordStore) query(ctx context.Context, op, query string, args ...any) (records []*domain.NormalizedRecord, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query normalized records: %w", err)
	}
	defer rows.Close()

	return scanNormalizedRecords(rows)
}

// nextVersion returns a strictly increasing ReplacingMergeTree version.
func (s *NormalizedRecordStore) nextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := uint64(time.Now().UnixNano())
	if v <= s.lastVersion {
		v = s.lastVersion + 1
	}
	s.lastVersion = v
	return v
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOf(*t)
	return &d
}

// scanNormalizedRecords scans multiple rows into a slice.
func scanNormalizedRecords(rows chRows) ([]*domain.NormalizedRecord, error) {
	var records []*domain.NormalizedRecord

	for rows.Next() {
		var r domain.NormalizedRecord
		var closePrice float64

		err := rows.Scan(
			&r.InstrumentID, &r.TradeDate, &r.Exchange, &r.Symbol, &r.SecurityID, &r.Source, &r.EventID,
			&r.Prices.Open, &r.Prices.High, &r.Prices.Low, &closePrice,
			&r.Prices.PrevClose, &r.Prices.Last, &r.Prices.Settlement, &r.Volume, &r.Turnover,
			&r.AdjustmentFactor, &r.AdjustmentDate, &r.IsTradingDay,
		)
		if err != nil {
			return nil, fmt.Errorf("scan normalized row: %w", err)
		}

		r.Prices.Close = &closePrice
		r.TradeDate = domain.DateOf(r.TradeDate)
		r.AdjustmentDate = dateOrNil(r.AdjustmentDate)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate normalized rows: %w", err)
	}

	return records, nil
}
