package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ComputeActionID computes a deterministic action_id using SHA256.
// Formula: SHA256(instrument_id|ex_date|purpose)
// Purpose is whitespace-collapsed and upper-cased first, so cosmetic
// differences between notice files do not create new events.
// Returns hex-encoded hash (64 characters).
func ComputeActionID(instrumentID string, exDate time.Time, purpose string) string {
	data := fmt.Sprintf("%s|%s|%s",
		instrumentID,
		exDate.UTC().Format("2006-01-02"),
		canonicalPurpose(purpose),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeQuarantineID computes a deterministic quarantine_id.
// Formula: SHA256(event_id|stage|rule_id)
// Re-quarantining the same record for the same rule yields the same id.
func ComputeQuarantineID(eventID, stage, ruleID string) string {
	data := fmt.Sprintf("%s|%s|%s", eventID, stage, ruleID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func canonicalPurpose(purpose string) string {
	return strings.ToUpper(strings.Join(strings.Fields(purpose), " "))
}
