package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// SymbolMasterStore implements storage.SymbolMasterStore using PostgreSQL.
type SymbolMasterStore struct {
	pool *Pool
}

// NewSymbolMasterStore creates a new SymbolMasterStore.
func NewSymbolMasterStore(pool *Pool) *SymbolMasterStore {
	return &SymbolMasterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SymbolMasterStore = (*SymbolMasterStore)(nil)

const symbolMasterColumns = `instrument_id, exchange, symbol, security_id, status, valid_from, valid_to, lot_size`

const insertSymbolMaster = `
	INSERT INTO symbol_master (
		instrument_id, exchange, symbol, security_id, status, valid_from, valid_to, lot_size
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

// Insert adds a new entry. Returns ErrDuplicateKey if the key exists.
func (s *SymbolMasterStore) Insert(ctx context.Context, e *domain.SymbolMasterEntry) error {
	if e == nil || e.InstrumentID == "" || e.Symbol == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertSymbolMaster, symbolMasterArgs(e)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert symbol master entry: %w", err)
	}
	return nil
}

// GetAll retrieves every entry, open and closed.
func (s *SymbolMasterStore) GetAll(ctx context.Context) ([]*domain.SymbolMasterEntry, error) {
	return s.query(ctx, "symbol_master.get_all", `
		SELECT `+symbolMasterColumns+`
		FROM symbol_master
		ORDER BY exchange ASC, symbol ASC, valid_from ASC, instrument_id ASC
	`)
}

// GetOpen retrieves entries with no valid_to.
func (s *SymbolMasterStore) GetOpen(ctx context.Context) ([]*domain.SymbolMasterEntry, error) {
	return s.query(ctx, "symbol_master.get_open", `
		SELECT `+symbolMasterColumns+`
		FROM symbol_master
		WHERE valid_to IS NULL
		ORDER BY exchange ASC, symbol ASC, valid_from ASC, instrument_id ASC
	`)
}

// ApplyChanges closes toClose at validTo and inserts toOpen in one transaction.
// A row opened on validTo itself has an empty window once closed, so it is
// removed instead and may be reopened with the same key.
func (s *SymbolMasterStore) ApplyChanges(ctx context.Context, toClose []*domain.SymbolMasterEntry, validTo time.Time, toOpen []*domain.SymbolMasterEntry) (err error) {
	defer func(start time.Time) { observe("symbol_master.apply_changes", start, err) }(time.Now())

	for _, e := range toOpen {
		if e == nil || e.InstrumentID == "" || e.Symbol == "" {
			return storage.ErrInvalidInput
		}
	}
	to := dateArg(validTo)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range toClose {
		var query string
		args := []any{e.InstrumentID, e.Exchange, e.Symbol, dateArg(e.ValidFrom)}
		if !dateArg(e.ValidFrom).Before(to) {
			query = `
				DELETE FROM symbol_master
				WHERE instrument_id = $1 AND exchange = $2 AND symbol = $3 AND valid_from = $4
				  AND valid_to IS NULL
			`
		} else {
			query = `
				UPDATE symbol_master SET valid_to = $5
				WHERE instrument_id = $1 AND exchange = $2 AND symbol = $3 AND valid_from = $4
				  AND valid_to IS NULL
			`
			args = append(args, to)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("close symbol master entry: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
	}

	for _, e := range toOpen {
		if _, err := tx.Exec(ctx, insertSymbolMaster, symbolMasterArgs(e)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("open symbol master entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SymbolMasterStore) query(ctx context.Context, op, query string) (entries []*domain.SymbolMasterEntry, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query symbol master: %w", err)
	}
	defer rows.Close()

	return scanSymbolMasterEntries(rows)
}

func symbolMasterArgs(e *domain.SymbolMasterEntry) []any {
	return []any{
		e.InstrumentID,
		e.Exchange,
		e.Symbol,
		e.SecurityID,
		e.Status,
		dateArg(e.ValidFrom),
		optDateArg(e.ValidTo),
		e.LotSize,
	}
}

// scanSymbolMasterEntries scans multiple rows into a slice.
func scanSymbolMasterEntries(rows pgx.Rows) ([]*domain.SymbolMasterEntry, error) {
	var entries []*domain.SymbolMasterEntry

	for rows.Next() {
		var e domain.SymbolMasterEntry
		err := rows.Scan(
			&e.InstrumentID,
			&e.Exchange,
			&e.Symbol,
			&e.SecurityID,
			&e.Status,
			&e.ValidFrom,
			&e.ValidTo,
			&e.LotSize,
		)
		if err != nil {
			return nil, fmt.Errorf("scan symbol master row: %w", err)
		}
		e.ValidFrom = dateArg(e.ValidFrom)
		e.ValidTo = optDateArg(e.ValidTo)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol master rows: %w", err)
	}

	return entries, nil
}
