package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Normalization Batch Report\n\n")
	sb.WriteString(fmt.Sprintf("Batch: `%s`\n\n", r.BatchID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Summary.Cancelled {
		sb.WriteString("**Batch was cancelled.** Output covers only the instruments finished before cancellation.\n\n")
	}

	// Summary
	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	if !s.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("| Started | %s |\n", s.StartedAt.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Finished | %s |\n", s.FinishedAt.Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("| Symbol Snapshot | %s |\n", s.SymbolSnapshotVersion))
	sb.WriteString(fmt.Sprintf("| Records In | %d |\n", s.RecordsIn))
	sb.WriteString(fmt.Sprintf("| Validated | %d |\n", s.Validated))
	sb.WriteString(fmt.Sprintf("| Resolved | %d |\n", s.Resolved))
	sb.WriteString(fmt.Sprintf("| Duplicates Dropped | %d |\n", s.DuplicatesDropped))
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", s.Instruments))
	sb.WriteString(fmt.Sprintf("| Normalized | %d |\n", s.RecordsNormalized))
	sb.WriteString(fmt.Sprintf("| Adjusted | %d |\n", s.RecordsAdjusted))
	sb.WriteString(fmt.Sprintf("| Quarantined | %d |\n", s.RecordsQuarantined))
	sb.WriteString(fmt.Sprintf("| Output Fingerprint | `%s` |\n", s.OutputFingerprint))
	sb.WriteString("\n")

	// Quarantine
	sb.WriteString("## Quarantine\n\n")
	if len(r.QuarantineByReason) > 0 {
		sb.WriteString("| Stage | Reason | Count | Top Rule |\n")
		sb.WriteString("|-------|--------|-------|----------|\n")
		for _, q := range r.QuarantineByReason {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", q.Stage, q.ReasonCode, q.Count, q.TopRuleID))
		}
	} else {
		sb.WriteString("No records quarantined.\n")
	}
	sb.WriteString("\n")

	// Failed instruments
	sb.WriteString("## Failed Instruments\n\n")
	if len(r.FailedInstruments) > 0 {
		sb.WriteString("| Instrument | Reason | Records | Error |\n")
		sb.WriteString("|------------|--------|---------|-------|\n")
		for _, f := range r.FailedInstruments {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
				f.InstrumentID, f.ReasonCode, f.Records, escapeCell(f.Error)))
		}
	} else {
		sb.WriteString("No instruments failed.\n")
	}
	sb.WriteString("\n")

	// Manual review
	sb.WriteString("## Corporate Actions Needing Review\n\n")
	if len(r.NeedsReview) > 0 {
		sb.WriteString("| Action | Instrument | Type | Ex-Date | Purpose | Reason |\n")
		sb.WriteString("|--------|------------|------|---------|---------|--------|\n")
		for _, a := range r.NeedsReview {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				shortID(a.ActionID), a.InstrumentID, a.ActionType, a.ExDate,
				escapeCell(a.Purpose), escapeCell(a.Reason)))
		}
	} else {
		sb.WriteString("No corporate actions awaiting review.\n")
	}
	sb.WriteString("\n")

	if len(r.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range r.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// escapeCell keeps free text from breaking the table.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
