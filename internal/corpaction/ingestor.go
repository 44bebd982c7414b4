package corpaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/observability"
	"eod-normalizer/internal/storage"
	"eod-normalizer/internal/symbols"
)

// ReferencePriceSource supplies the traded close strictly before an ex-date.
type ReferencePriceSource interface {
	CloseBefore(ctx context.Context, instrumentID string, exDate time.Time) (float64, error)
}

// Rejection is a notice that could not be turned into an event.
type Rejection struct {
	Notice     domain.RawNotice
	ReasonCode string
	Err        error
}

// IngestResult summarizes one notice ingestion run.
type IngestResult struct {
	Parsed      int
	Inserted    int
	Duplicates  int // already stored; re-ingestion is a no-op
	NeedsReview int
	ByType      map[domain.ActionType]int
	Rejected    []Rejection
	Events      []*domain.CorporateActionEvent
}

// Ingestor resolves, parses and appends notices to the event store.
type Ingestor struct {
	parser *Parser
	store  storage.CorporateActionStore
	prices ReferencePriceSource // optional
	logger *slog.Logger
}

// NewIngestor creates an Ingestor. prices may be nil, in which case only
// notices that already carry a reference close get price-dependent factors.
func NewIngestor(parser *Parser, store storage.CorporateActionStore, prices ReferencePriceSource, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{parser: parser, store: store, prices: prices, logger: logger}
}

// needsClose reports whether an action's factor depends on the pre-ex close.
func (i *Ingestor) needsClose(t domain.ActionType) bool {
	return t == domain.ActionRights || (t == domain.ActionDividend && i.parser.Policy() == DividendPolicyDrop)
}

// Ingest processes notices in order. Events are never dropped: unresolvable
// notices are returned as rejections, everything else is stored.
func (i *Ingestor) Ingest(ctx context.Context, snap *symbols.Snapshot, notices []domain.RawNotice) (*IngestResult, error) {
	result := &IngestResult{ByType: make(map[domain.ActionType]int)}

	for _, n := range notices {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if n.InstrumentID == "" {
			id, err := snap.Resolve(n.Symbol, n.Exchange, n.ExDate)
			if err != nil {
				reason := symbols.ReasonCode(err)
				result.Rejected = append(result.Rejected, Rejection{Notice: n, ReasonCode: reason, Err: err})
				observability.RecordNoticeRejected(reason)
				i.logger.Warn("notice rejected",
					"symbol", n.Symbol, "exchange", n.Exchange,
					"ex_date", domain.FormatDate(n.ExDate), "reason", reason, "error", err)
				continue
			}
			n.InstrumentID = id
		}

		if n.ReferenceClose == nil && i.prices != nil && i.needsClose(i.parser.Classify(n.Purpose)) {
			c, err := i.prices.CloseBefore(ctx, n.InstrumentID, n.ExDate)
			if err == nil {
				n.ReferenceClose = &c
			} else {
				i.logger.Debug("reference close unavailable",
					"instrument_id", n.InstrumentID, "ex_date", domain.FormatDate(n.ExDate), "error", err)
			}
		}

		e := i.parser.Parse(n)
		result.Parsed++
		result.ByType[e.ActionType]++
		if e.NeedsReview {
			result.NeedsReview++
		}
		observability.RecordNoticeParsed(string(e.ActionType), string(e.ParseConfidence), e.NeedsReview)

		if err := i.store.Insert(ctx, e); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				result.Duplicates++
				continue
			}
			return result, fmt.Errorf("store event %s: %w", e.ActionID, err)
		}
		result.Inserted++
		result.Events = append(result.Events, e)

		if e.NeedsReview {
			i.logger.Info("event flagged for review",
				"action_id", e.ActionID, "instrument_id", e.InstrumentID,
				"action_type", e.ActionType, "reason", e.ReviewReason)
		}
	}

	i.logger.Info("notices ingested",
		"parsed", result.Parsed, "inserted", result.Inserted,
		"duplicates", result.Duplicates, "rejected", len(result.Rejected),
		"needs_review", result.NeedsReview)
	return result, nil
}
