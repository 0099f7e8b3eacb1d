package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseRuleID validates and converts a string to RuleID.
// Accepts stored UUIDs and ids derived through inheritance ("<uuid>+<field>").
func ParseRuleID(s string) (RuleID, error) {
	base, _, _ := strings.Cut(s, "+")
	if _, err := uuid.Parse(base); err != nil {
		return "", fmt.Errorf("%w: id %q: %v", ErrInvalidRule, s, err)
	}
	return RuleID(s), nil
}

// InheritedRuleID derives the id of a rule propagated onto a child field.
// Deterministic so that sibling expansions never collide.
func InheritedRuleID(parent RuleID, field string) RuleID {
	return RuleID(string(parent) + "+" + field)
}

// CustomRuleID formats the progressive id of a dependency declared in code.
func CustomRuleID(n int) RuleID {
	return RuleID(fmt.Sprintf("custom-%d", n))
}

// RuleIDTime extracts the creation timestamp embedded in a UUIDv7 rule id.
// Returns zero time for derived or invalid ids; caller should check IsZero().
func RuleIDTime(id RuleID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
