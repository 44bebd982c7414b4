package ingestion

import (
	"testing"
	"time"

	"eod-normalizer/internal/domain"
)

func TestSortRawRecords(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)
	records := []*domain.RawRecord{
		{Envelope: domain.Envelope{EventID: "c", IngestTime: t0.Add(time.Minute)}},
		{Envelope: domain.Envelope{EventID: "b", IngestTime: t0}},
		{Envelope: domain.Envelope{EventID: "a", IngestTime: t0}},
	}

	SortRawRecords(records)

	want := []string{"a", "b", "c"}
	for i, r := range records {
		if r.EventID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, r.EventID, want[i])
		}
	}
	if err := ValidateRawRecordOrdering(records); err != nil {
		t.Errorf("sorted records failed validation: %v", err)
	}
}

func TestValidateRawRecordOrdering(t *testing.T) {
	t0 := time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		records []*domain.RawRecord
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []*domain.RawRecord{
			{Envelope: domain.Envelope{EventID: "a", IngestTime: t0}},
			{Envelope: domain.Envelope{EventID: "b", IngestTime: t0}},
		}, false},
		{"reversed", []*domain.RawRecord{
			{Envelope: domain.Envelope{EventID: "b", IngestTime: t0}},
			{Envelope: domain.Envelope{EventID: "a", IngestTime: t0}},
		}, true},
		{"duplicate", []*domain.RawRecord{
			{Envelope: domain.Envelope{EventID: "a", IngestTime: t0}},
			{Envelope: domain.Envelope{EventID: "a", IngestTime: t0}},
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRawRecordOrdering(tt.records)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRawRecordOrdering() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSortNotices(t *testing.T) {
	notices := []domain.RawNotice{
		{Exchange: "NSE", Symbol: "ABC", ExDate: domain.MustDate("2024-03-01"), Sequence: 2, Purpose: "second"},
		{Exchange: "NSE", Symbol: "ABC", ExDate: domain.MustDate("2024-03-01"), Sequence: 1, Purpose: "first"},
		{Exchange: "BSE", Symbol: "ZZZ", ExDate: domain.MustDate("2024-03-01"), Sequence: 9, Purpose: "bse"},
		{Exchange: "NSE", Symbol: "XYZ", ExDate: domain.MustDate("2024-01-01"), Sequence: 5, Purpose: "early"},
	}

	SortNotices(notices)

	want := []string{"early", "bse", "first", "second"}
	for i, n := range notices {
		if n.Purpose != want[i] {
			t.Errorf("position %d: got %s, want %s", i, n.Purpose, want[i])
		}
	}
}
