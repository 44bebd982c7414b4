package reporting

import (
	"bytes"
	"encoding/csv"
	"strings"

	"eod-normalizer/internal/domain"
)

var quarantineCSVHeader = []string{
	"quarantine_id", "event_id", "source", "stage", "reason_code",
	"rule_id", "field", "raw_value", "violations", "quarantined_at",
}

// RenderQuarantineCSV renders quarantine records as CSV string, one row per record.
// Additional violations are joined into the violations column as rule_id:field pairs.
func RenderQuarantineCSV(records []*domain.QuarantineRecord) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(quarantineCSVHeader); err != nil {
		return "", err
	}

	for _, q := range records {
		violations := make([]string, 0, len(q.Violations))
		for _, v := range q.Violations {
			violations = append(violations, v.RuleID+":"+v.Field)
		}
		row := []string{
			q.QuarantineID,
			q.EventID,
			q.Source,
			string(q.Stage),
			q.ReasonCode,
			q.RuleID,
			q.Field,
			q.RawValue,
			strings.Join(violations, ";"),
			q.QuarantinedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
