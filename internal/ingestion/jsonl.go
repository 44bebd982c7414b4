package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"eod-normalizer/internal/domain"
)

// JSONLRawSource reads raw records from a JSON-lines file, one envelope per line:
//
//	{"event_id":"...","source":"NSE_BHAV","ingest_time":"...","payload":{"symbol":"ABC","close":2500}}
//
// Payload values may be strings, numbers or null. Numbers keep their literal
// text so the validator sees exactly what the feed sent.
type JSONLRawSource struct {
	Path string
}

type jsonlRecord struct {
	domain.Envelope
	Payload map[string]any `json:"payload"`
}

// Fetch implements RawRecordSource.
func (s *JSONLRawSource) Fetch(ctx context.Context) ([]*domain.RawRecord, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()
	return DecodeRawRecords(ctx, f)
}

// DecodeRawRecords decodes a stream of JSON envelopes.
func DecodeRawRecords(ctx context.Context, r io.Reader) ([]*domain.RawRecord, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var out []*domain.RawRecord
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var line jsonlRecord
		if err := dec.Decode(&line); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		if line.EventID == "" {
			return nil, fmt.Errorf("record %d: event_id is required", n)
		}

		rec := &domain.RawRecord{Envelope: line.Envelope}
		for name, v := range line.Payload {
			slot := payloadSlot(&rec.Payload, name)
			if slot == nil {
				continue // not part of the payload contract
			}
			text, err := payloadText(v)
			if err != nil {
				return nil, fmt.Errorf("record %d (%s): field %s: %w", n, line.EventID, name, err)
			}
			*slot = text
		}
		out = append(out, rec)
	}
}

func payloadText(v any) (*string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &x, nil
	case json.Number:
		s := x.String()
		return &s, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func payloadSlot(p *domain.RawPayload, name string) **string {
	switch name {
	case domain.FieldExchange:
		return &p.Exchange
	case domain.FieldSymbol:
		return &p.Symbol
	case domain.FieldSeries:
		return &p.Series
	case domain.FieldSecurityID:
		return &p.SecurityID
	case domain.FieldTradeDate:
		return &p.TradeDate
	case domain.FieldOpen:
		return &p.Open
	case domain.FieldHigh:
		return &p.High
	case domain.FieldLow:
		return &p.Low
	case domain.FieldClose:
		return &p.Close
	case domain.FieldPrevClose:
		return &p.PrevClose
	case domain.FieldLast:
		return &p.Last
	case domain.FieldSettlement:
		return &p.Settlement
	case domain.FieldVolume:
		return &p.Volume
	case domain.FieldTurnover:
		return &p.Turnover
	}
	return nil
}
