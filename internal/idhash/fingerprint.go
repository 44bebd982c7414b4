package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"eod-normalizer/internal/domain"
)

// Fingerprint computes a SHA256 over the canonical text form of normalized
// records. Input order does not matter; records are hashed in
// (instrument_id, trade_date) order. Two runs with equal fingerprints produced
// byte-identical output.
func Fingerprint(records []*domain.NormalizedRecord) string {
	sorted := make([]*domain.NormalizedRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].InstrumentID != sorted[j].InstrumentID {
			return sorted[i].InstrumentID < sorted[j].InstrumentID
		}
		return sorted[i].TradeDate.Before(sorted[j].TradeDate)
	})

	h := sha256.New()
	for _, r := range sorted {
		h.Write([]byte(CanonicalLine(r)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalLine renders one record as pipe-separated text. Floats use the
// shortest exact representation; absent values render as empty fields.
func CanonicalLine(r *domain.NormalizedRecord) string {
	fields := []string{
		r.InstrumentID,
		domain.FormatDate(r.TradeDate),
		r.Exchange,
		r.Symbol,
		optString(r.SecurityID),
		r.Source,
		r.EventID,
		optFloat(r.Prices.Open),
		optFloat(r.Prices.High),
		optFloat(r.Prices.Low),
		optFloat(r.Prices.Close),
		optFloat(r.Prices.PrevClose),
		optFloat(r.Prices.Last),
		optFloat(r.Prices.Settlement),
		optFloat(r.Volume),
		optFloat(r.Turnover),
		strconv.FormatFloat(r.AdjustmentFactor, 'g', -1, 64),
		"",
		strconv.FormatBool(r.IsTradingDay),
	}
	if r.AdjustmentDate != nil {
		fields[17] = domain.FormatDate(*r.AdjustmentDate)
	}
	return strings.Join(fields, "|")
}

func optString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
