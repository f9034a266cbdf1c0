package types

import "github.com/google/uuid"

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewLogID generates a UUIDv7 execution log identifier.
// Time-ordered IDs keep append-only log inserts clustered in B-tree pages.
func NewLogID() LogID {
	return LogID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the store.
func ParseRuleID(s string) (RuleID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RuleID(s), nil
}
