package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/storage"
)

// CorporateActionStore implements storage.CorporateActionStore using PostgreSQL.
// The table rejects UPDATE and DELETE through a trigger.
type CorporateActionStore struct {
	pool *Pool
}

// NewCorporateActionStore creates a new CorporateActionStore.
func NewCorporateActionStore(pool *Pool) *CorporateActionStore {
	return &CorporateActionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CorporateActionStore = (*CorporateActionStore)(nil)

// NUMERIC columns are read as text so decimal values round-trip exactly.
const corporateActionColumns = `
	action_id, instrument_id, action_type, ex_date, record_date, purpose, sequence,
	ratio_numerator, ratio_denominator, amount::text, subscription_price::text, face_value::text,
	reference_close, adjustment_factor, parse_confidence, needs_review, review_reason, created_at
`

// Insert adds a new event. Returns ErrDuplicateKey if action_id exists.
func (s *CorporateActionStore) Insert(ctx context.Context, e *domain.CorporateActionEvent) (err error) {
	if e == nil || e.ActionID == "" || e.InstrumentID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("corporate_actions.insert", start, err) }(time.Now())

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO corporate_action_events (
			action_id, instrument_id, action_type, ex_date, record_date, purpose, sequence,
			ratio_numerator, ratio_denominator, amount, subscription_price, face_value,
			reference_close, adjustment_factor, parse_confidence, needs_review, review_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10::numeric, $11::numeric, $12::numeric,
			$13, $14, $15, $16, $17, $18
		)
	`

	_, err = s.pool.Exec(ctx, query,
		e.ActionID,
		e.InstrumentID,
		string(e.ActionType),
		dateArg(e.ExDate),
		optDateArg(e.RecordDate),
		e.Purpose,
		e.Sequence,
		e.RatioNumerator,
		e.RatioDenominator,
		decimalArg(e.Amount),
		decimalArg(e.SubscriptionPrice),
		decimalArg(e.FaceValue),
		e.ReferenceClose,
		e.AdjustmentFactor,
		string(e.ParseConfidence),
		e.NeedsReview,
		e.ReviewReason,
		createdAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert corporate action: %w", err)
	}
	return nil
}

// GetByID retrieves an event by action_id. Returns ErrNotFound if not exists.
func (s *CorporateActionStore) GetByID(ctx context.Context, actionID string) (*domain.CorporateActionEvent, error) {
	query := `SELECT ` + corporateActionColumns + ` FROM corporate_action_events WHERE action_id = $1`

	e, err := scanCorporateAction(s.pool.QueryRow(ctx, query, actionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get corporate action by id: %w", err)
	}
	return e, nil
}

// GetByInstrument retrieves events for an instrument in timeline order.
func (s *CorporateActionStore) GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.CorporateActionEvent, error) {
	return s.query(ctx, "corporate_actions.get_by_instrument", `
		SELECT `+corporateActionColumns+`
		FROM corporate_action_events
		WHERE instrument_id = $1
		ORDER BY ex_date ASC, sequence ASC, action_id ASC
	`, instrumentID)
}

// GetAll retrieves every event ordered by (instrument_id, ex_date, sequence, action_id).
func (s *CorporateActionStore) GetAll(ctx context.Context) ([]*domain.CorporateActionEvent, error) {
	return s.query(ctx, "corporate_actions.get_all", `
		SELECT `+corporateActionColumns+`
		FROM corporate_action_events
		ORDER BY instrument_id ASC, ex_date ASC, sequence ASC, action_id ASC
	`)
}

// GetNeedsReview retrieves events flagged for manual review.
func (s *CorporateActionStore) GetNeedsReview(ctx context.Context) ([]*domain.CorporateActionEvent, error) {
	return s.query(ctx, "corporate_actions.get_needs_review", `
		SELECT `+corporateActionColumns+`
		FROM corporate_action_events
		WHERE needs_review
		ORDER BY instrument_id ASC, ex_date ASC, sequence ASC, action_id ASC
	`)
}

func (s *CorporateActionStore) query(ctx context.Context, op, query string, args ...any) (events []*domain.CorporateActionEvent, err error) {
	defer func(start time.Time) { observe(op, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corporate actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanCorporateAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan corporate action row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corporate action rows: %w", err)
	}
	return events, nil
}

// scanCorporateAction scans a single row into a CorporateActionEvent.
func scanCorporateAction(row pgx.Row) (*domain.CorporateActionEvent, error) {
	var e domain.CorporateActionEvent
	var actionType, confidence string
	var amount, price, faceValue *string

	err := row.Scan(
		&e.ActionID,
		&e.InstrumentID,
		&actionType,
		&e.ExDate,
		&e.RecordDate,
		&e.Purpose,
		&e.Sequence,
		&e.RatioNumerator,
		&e.RatioDenominator,
		&amount,
		&price,
		&faceValue,
		&e.ReferenceClose,
		&e.AdjustmentFactor,
		&confidence,
		&e.NeedsReview,
		&e.ReviewReason,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ActionType = domain.ActionType(actionType)
	e.ParseConfidence = domain.ParseConfidence(confidence)
	e.ExDate = dateArg(e.ExDate)
	e.RecordDate = optDateArg(e.RecordDate)
	e.CreatedAt = e.CreatedAt.UTC()

	if e.Amount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	if e.SubscriptionPrice, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if e.FaceValue, err = parseDecimal(faceValue); err != nil {
		return nil, err
	}
	return &e, nil
}
