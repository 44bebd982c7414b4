package stub

import (
	"context"

	"eod-normalizer/internal/domain"
)

// StubRawRecordSource returns fixed in-memory raw records for testing.
// Records can be intentionally unordered to test sorting.
// Implements ingestion.RawRecordSource interface.
type StubRawRecordSource struct {
	records []*domain.RawRecord
	err     error
}

// NewStubRawRecordSource creates a new stub raw record source with the given records.
func NewStubRawRecordSource(records []*domain.RawRecord) *StubRawRecordSource {
	return &StubRawRecordSource{records: records}
}

// NewFailingRawRecordSource creates a source whose Fetch always returns err.
func NewFailingRawRecordSource(err error) *StubRawRecordSource {
	return &StubRawRecordSource{err: err}
}

// Fetch returns copies of the records to prevent mutation.
func (s *StubRawRecordSource) Fetch(_ context.Context) ([]*domain.RawRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := make([]*domain.RawRecord, 0, len(s.records))
	for _, r := range s.records {
		copy := *r
		result = append(result, &copy)
	}
	return result, nil
}

// StubSymbolMasterSource returns a fixed listing.
// Implements ingestion.SymbolMasterSource interface.
type StubSymbolMasterSource struct {
	entries []*domain.SymbolMasterEntry
}

// NewStubSymbolMasterSource creates a new stub symbol master source.
func NewStubSymbolMasterSource(entries []*domain.SymbolMasterEntry) *StubSymbolMasterSource {
	return &StubSymbolMasterSource{entries: entries}
}

// Fetch returns copies of the entries.
func (s *StubSymbolMasterSource) Fetch(_ context.Context) ([]*domain.SymbolMasterEntry, error) {
	result := make([]*domain.SymbolMasterEntry, 0, len(s.entries))
	for _, e := range s.entries {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}

// StubNoticeSource returns fixed notices.
// Implements ingestion.NoticeSource interface.
type StubNoticeSource struct {
	notices []domain.RawNotice
}

// NewStubNoticeSource creates a new stub notice source.
func NewStubNoticeSource(notices []domain.RawNotice) *StubNoticeSource {
	return &StubNoticeSource{notices: notices}
}

// Fetch returns a copy of the notices.
func (s *StubNoticeSource) Fetch(_ context.Context) ([]domain.RawNotice, error) {
	return append([]domain.RawNotice(nil), s.notices...), nil
}
