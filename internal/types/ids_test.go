package types

import (
	"errors"
	"testing"
	"time"
)

func TestParseRuleID(t *testing.T) {
	id := NewRuleID()

	if _, err := ParseRuleID(string(id)); err != nil {
		t.Errorf("ParseRuleID(%q) error = %v", id, err)
	}
	inherited := InheritedRuleID(id, "field_child")
	if got, err := ParseRuleID(string(inherited)); err != nil || got != inherited {
		t.Errorf("ParseRuleID(%q) = %q, %v", inherited, got, err)
	}
	if _, err := ParseRuleID("not-a-uuid"); !errors.Is(err, ErrInvalidRule) {
		t.Errorf("ParseRuleID() error = %v, want ErrInvalidRule", err)
	}
}

func TestRuleIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts := RuleIDTime(NewRuleID())
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("RuleIDTime() = %v, want close to now", ts)
	}
	if !RuleIDTime(CustomRuleID(1)).IsZero() {
		t.Errorf("RuleIDTime(custom) is not zero")
	}
}
