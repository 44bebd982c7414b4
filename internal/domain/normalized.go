package domain

import "time"

// NormalizedRecord is the final adjusted daily record for one instrument.
// Corresponds to normalized_records table in ClickHouse. Fully recomputable
// from raw and reference data; (InstrumentID, TradeDate) is unique.
type NormalizedRecord struct {
	InstrumentID string
	TradeDate    time.Time
	Exchange     string
	Symbol       string
	SecurityID   *string
	Source       string // surviving source after deduplication
	EventID      string // event_id of the surviving raw record

	Prices   Prices   // adjusted
	Volume   *float64 // never adjusted
	Turnover *float64 // never adjusted

	AdjustmentFactor float64
	AdjustmentDate   *time.Time // ex_date of the latest price-affecting action applied, nil if none
	IsTradingDay     bool
}
