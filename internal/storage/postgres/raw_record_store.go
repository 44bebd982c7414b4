package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// RawRecordStore implements storage.RawRecordStore using PostgreSQL.
// The payload is stored as JSONB exactly as received.
type RawRecordStore struct {
	pool *Pool
}

// NewRawRecordStore creates a new RawRecordStore.
func NewRawRecordStore(pool *Pool) *RawRecordStore {
	return &RawRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawRecordStore = (*RawRecordStore)(nil)

// InsertBulk adds multiple records in one transaction. Fails entire batch on any duplicate event_id.
func (s *RawRecordStore) InsertBulk(ctx context.Context, records []*domain.RawRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("raw_records.insert_bulk", start, err) }(time.Now())

	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[r.EventID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.EventID] = struct{}{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload %s: %w", r.EventID, err)
		}
		batch.Queue(`
			INSERT INTO raw_records (
				event_id, event_time, ingest_time, source, schema_version, entity_id, payload
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.EventID, r.EventTime, r.IngestTime, r.Source, r.SchemaVersion, r.EntityID, payload)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert raw record: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return tx.Commit(ctx)
}

// GetByEventID retrieves a record by event_id. Returns ErrNotFound if not exists.
func (s *RawRecordStore) GetByEventID(ctx context.Context, eventID string) (*domain.RawRecord, error) {
	query := `
		SELECT event_id, event_time, ingest_time, source, schema_version, entity_id, payload
		FROM raw_records
		WHERE event_id = $1
	`

	r, err := scanRawRecord(s.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get raw record by event id: %w", err)
	}
	return r, nil
}

// GetByIngestTimeRange retrieves records ingested within [start, end], ordered by event_id.
func (s *RawRecordStore) GetByIngestTimeRange(ctx context.Context, start, end time.Time) ([]*domain.RawRecord, error) {
	query := `
		SELECT event_id, event_time, ingest_time, source, schema_version, entity_id, payload
		FROM raw_records
		WHERE ingest_time >= $1 AND ingest_time <= $2
		ORDER BY event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query raw records by ingest time: %w", err)
	}
	defer rows.Close()

	var records []*domain.RawRecord
	for rows.Next() {
		r, err := scanRawRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw record row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw record rows: %w", err)
	}
	return records, nil
}

// scanRawRecord scans a single row into a RawRecord.
func scanRawRecord(row pgx.Row) (*domain.RawRecord, error) {
	var r domain.RawRecord
	var payload []byte

	err := row.Scan(
		&r.EventID,
		&r.EventTime,
		&r.IngestTime,
		&r.Source,
		&r.SchemaVersion,
		&r.EntityID,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &r.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload %s: %w", r.EventID, err)
	}
	r.EventTime = r.EventTime.UTC()
	r.IngestTime = r.IngestTime.UTC()
	return &r, nil
}
