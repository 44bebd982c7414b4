package domain

import "time"

// Envelope is the header every upstream feed record carries.
type Envelope struct {
	EventID       string    `json:"event_id"`       // globally unique
	EventTime     time.Time `json:"event_time"`     // time the exchange published the line
	IngestTime    time.Time `json:"ingest_time"`    // time the ingestion layer fetched it
	Source        string    `json:"source"`         // feed identifier, e.g. NSE_BHAV
	SchemaVersion string    `json:"schema_version"` // payload contract version
	EntityID      string    `json:"entity_id"`      // partition/grouping key
}

// RawPayload holds exchange-native fields exactly as received.
// Every field is nullable text; typing happens in the validator.
type RawPayload struct {
	Exchange   *string `json:"exchange"`
	Symbol     *string `json:"symbol"`
	Series     *string `json:"series"`
	SecurityID *string `json:"security_id"` // ISIN-like identifier
	TradeDate  *string `json:"trade_date"`
	Open       *string `json:"open"`
	High       *string `json:"high"`
	Low        *string `json:"low"`
	Close      *string `json:"close"`
	PrevClose  *string `json:"prev_close"`
	Last       *string `json:"last"`
	Settlement *string `json:"settlement"`
	Volume     *string `json:"volume"`
	Turnover   *string `json:"turnover"`
}

// Payload field names. Validation rules and quarantine records refer to these.
const (
	FieldExchange   = "exchange"
	FieldSymbol     = "symbol"
	FieldSeries     = "series"
	FieldSecurityID = "security_id"
	FieldTradeDate  = "trade_date"
	FieldOpen       = "open"
	FieldHigh       = "high"
	FieldLow        = "low"
	FieldClose      = "close"
	FieldPrevClose  = "prev_close"
	FieldLast       = "last"
	FieldSettlement = "settlement"
	FieldVolume     = "volume"
	FieldTurnover   = "turnover"
)

// PayloadFields lists payload fields in canonical order.
var PayloadFields = []string{
	FieldExchange, FieldSymbol, FieldSeries, FieldSecurityID, FieldTradeDate,
	FieldOpen, FieldHigh, FieldLow, FieldClose, FieldPrevClose, FieldLast, FieldSettlement,
	FieldVolume, FieldTurnover,
}

// RawRecord is one exchange-sourced OHLC line for one instrument/date.
// Immutable once ingested.
type RawRecord struct {
	Envelope
	Payload RawPayload `json:"payload"`
}

// Field returns the raw value of a payload field by name.
// Unknown names and null values both return nil.
func (r *RawRecord) Field(name string) *string {
	p := &r.Payload
	switch name {
	case FieldExchange:
		return p.Exchange
	case FieldSymbol:
		return p.Symbol
	case FieldSeries:
		return p.Series
	case FieldSecurityID:
		return p.SecurityID
	case FieldTradeDate:
		return p.TradeDate
	case FieldOpen:
		return p.Open
	case FieldHigh:
		return p.High
	case FieldLow:
		return p.Low
	case FieldClose:
		return p.Close
	case FieldPrevClose:
		return p.PrevClose
	case FieldLast:
		return p.Last
	case FieldSettlement:
		return p.Settlement
	case FieldVolume:
		return p.Volume
	case FieldTurnover:
		return p.Turnover
	}
	return nil
}

// Prices holds the price-class fields of a daily record. Nil means not reported.
type Prices struct {
	Open       *float64
	High       *float64
	Low        *float64
	Close      *float64
	PrevClose  *float64
	Last       *float64
	Settlement *float64
}

// Scale returns a copy with every present price multiplied by factor.
func (p Prices) Scale(factor float64) Prices {
	mul := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		out := *v * factor
		return &out
	}
	return Prices{
		Open:       mul(p.Open),
		High:       mul(p.High),
		Low:        mul(p.Low),
		Close:      mul(p.Close),
		PrevClose:  mul(p.PrevClose),
		Last:       mul(p.Last),
		Settlement: mul(p.Settlement),
	}
}

// ValidatedRecord is a RawRecord that passed the schema contract, with typed fields.
type ValidatedRecord struct {
	EventID    string
	Source     string
	Exchange   string
	Symbol     string
	Series     string
	SecurityID *string // nil when the feed does not carry one
	TradeDate  time.Time
	Prices     Prices
	Volume     *float64
	Turnover   *float64
}

// ResolvedRecord is a validated record mapped to a canonical instrument.
type ResolvedRecord struct {
	ValidatedRecord
	InstrumentID string
	LotSize      int64
}
