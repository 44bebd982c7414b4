package domain

import "time"

// Symbol master status values.
const (
	SymbolStatusActive    = "ACTIVE"
	SymbolStatusSuspended = "SUSPENDED"
	SymbolStatusDelisted  = "DELISTED"
)

// SymbolMasterEntry maps an exchange-native symbol to a canonical instrument
// over a validity window. Corresponds to symbol_master table in PostgreSQL.
// Refreshes follow SCD Type 2: the old row is closed, a new row is opened.
type SymbolMasterEntry struct {
	InstrumentID string
	Exchange     string
	Symbol       string
	SecurityID   *string    // ISIN-like identifier (nullable)
	Status       string     // ACTIVE | SUSPENDED | DELISTED
	ValidFrom    time.Time  // inclusive
	ValidTo      *time.Time // exclusive; nil = still open
	LotSize      int64
}

// Covers reports whether asOf falls in [ValidFrom, ValidTo).
func (e *SymbolMasterEntry) Covers(asOf time.Time) bool {
	if asOf.Before(e.ValidFrom) {
		return false
	}
	return e.ValidTo == nil || asOf.Before(*e.ValidTo)
}

// IsOpen reports whether the entry has no end date.
func (e *SymbolMasterEntry) IsOpen() bool {
	return e.ValidTo == nil
}

// SameAttributes reports whether two entries describe the same mapping,
// ignoring the validity window.
func (e *SymbolMasterEntry) SameAttributes(o *SymbolMasterEntry) bool {
	if e.InstrumentID != o.InstrumentID || e.Exchange != o.Exchange || e.Symbol != o.Symbol ||
		e.Status != o.Status || e.LotSize != o.LotSize {
		return false
	}
	if (e.SecurityID == nil) != (o.SecurityID == nil) {
		return false
	}
	return e.SecurityID == nil || *e.SecurityID == *o.SecurityID
}
