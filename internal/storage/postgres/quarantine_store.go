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

// QuarantineStore implements storage.QuarantineStore using PostgreSQL.
type QuarantineStore struct {
	pool *Pool
}

// NewQuarantineStore creates a new QuarantineStore.
func NewQuarantineStore(pool *Pool) *QuarantineStore {
	return &QuarantineStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuarantineStore = (*QuarantineStore)(nil)

const quarantineColumns = `
	quarantine_id, event_id, source, stage, reason_code, rule_id,
	field, raw_value, violations, payload, quarantined_at
`

// Insert adds a quarantine record. Returns ErrDuplicateKey if quarantine_id exists.
func (s *QuarantineStore) Insert(ctx context.Context, q *domain.QuarantineRecord) (err error) {
	if q == nil || q.QuarantineID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("quarantine.insert", start, err) }(time.Now())

	violations := q.Violations
	if violations == nil {
		violations = []domain.Violation{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}

	var payload []byte
	if len(q.Payload) > 0 {
		payload = q.Payload
	}

	query := `
		INSERT INTO quarantine_records (` + quarantineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.pool.Exec(ctx, query,
		q.QuarantineID,
		q.EventID,
		q.Source,
		string(q.Stage),
		q.ReasonCode,
		q.RuleID,
		q.Field,
		q.RawValue,
		violationsJSON,
		payload,
		q.QuarantinedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert quarantine record: %w", err)
	}
	return nil
}

// GetByEventID retrieves all quarantine records for an event, ordered by quarantined_at ASC.
func (s *QuarantineStore) GetByEventID(ctx context.Context, eventID string) ([]*domain.QuarantineRecord, error) {
	return s.query(ctx, "quarantine.get_by_event_id", `
		SELECT `+quarantineColumns+`
		FROM quarantine_records
		WHERE event_id = $1
		ORDER BY quarantined_at ASC, quarantine_id ASC
	`, eventID)
}

// GetByReason retrieves all records with a reason code.
func (s *QuarantineStore) GetByReason(ctx context.Context, reasonCode string) ([]*domain.QuarantineRecord, error) {
	return s.query(ctx, "quarantine.get_by_reason", `
		SELECT `+quarantineColumns+`
		FROM quarantine_records
		WHERE reason_code = $1
		ORDER BY quarantined_at ASC, quarantine_id ASC
	`, reasonCode)
}

// GetByTimeRange retrieves records quarantined within [start, end] (inclusive).
func (s *QuarantineStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.QuarantineRecord, error) {
	return s.query(ctx, "quarantine.get_by_time_range", `
		SELECT `+quarantineColumns+`
		FROM quarantine_records
		WHERE quarantined_at >= $1 AND quarantined_at <= $2
		ORDER BY quarantined_at ASC, quarantine_id ASC
	`, start, end)
}

func (s *QuarantineStore) query(ctx context.Context, op, query string, args ...any) (records []*domain.QuarantineRecord, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quarantine records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuarantine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarantine row: %w", err)
		}
		records = append(records, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quarantine rows: %w", err)
	}
	return records, nil
}

func scanQuarantine(row pgx.Row) (*domain.QuarantineRecord, error) {
	var q domain.QuarantineRecord
	var stage string
	var violations, payload []byte

	err := row.Scan(
		&q.QuarantineID,
		&q.EventID,
		&q.Source,
		&stage,
		&q.ReasonCode,
		&q.RuleID,
		&q.Field,
		&q.RawValue,
		&violations,
		&payload,
		&q.QuarantinedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Stage = domain.QuarantineStage(stage)
	q.QuarantinedAt = q.QuarantinedAt.UTC()
	q.Payload = payload
	if err := json.Unmarshal(violations, &q.Violations); err != nil {
		return nil, fmt.Errorf("unmarshal violations %s: %w", q.QuarantineID, err)
	}
	return &q, nil
}
