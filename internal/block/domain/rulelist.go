package domain

import (
	"fmt"
	"slices"
	"strings"
)

// BlocklistName is the name of the privacy list created for blocking.
const BlocklistName = "blocklist"

// RuleList is a named privacy list as stored on the server.
// Names are unique per account.
type RuleList struct {
	Name  string
	Rules []Rule
}

// Clone returns a deep copy of l.
func (l RuleList) Clone() RuleList {
	return RuleList{Name: l.Name, Rules: slices.Clone(l.Rules)}
}

// Empty reports whether the list holds no rules.
func (l RuleList) Empty() bool { return len(l.Rules) == 0 }

// Add appends r unless an identical rule is already present. Address
// rules are compared by normalised address, so a hand-edited
// "Alice@Example.COM" matches "alice@example.com".
// It reports whether the list changed.
func (l *RuleList) Add(r Rule) bool {
	if slices.ContainsFunc(l.Rules, r.sameAs) {
		return false
	}
	l.Rules = append(l.Rules, r)
	return true
}

// RemoveDenies removes every deny address rule for addr and returns how
// many were removed. Hand-edited lists may hold duplicates, so all of them
// go.
func (l *RuleList) RemoveDenies(addr Address) int {
	before := len(l.Rules)
	l.Rules = slices.DeleteFunc(l.Rules, func(r Rule) bool { return r.Denies(addr) })
	return before - len(l.Rules)
}

// BlockedAddresses projects the addresses of every deny address rule.
// Rules of other types are ignored.
func (l RuleList) BlockedAddresses() BlockedSet {
	var set BlockedSet
	for _, r := range l.Rules {
		if r.Allow {
			continue
		}
		if a, ok := r.Address(); ok {
			set.Add(a)
		}
	}
	return set
}

// BlockingShaped reports whether every rule is an all-traffic deny address
// rule, i.e. the list could have been written by a blocking client.
func (l RuleList) BlockingShaped() bool {
	for _, r := range l.Rules {
		if !r.IsAddressRule() || r.Allow || !r.Scope.IsAll() {
			return false
		}
	}
	return true
}

// Sorted returns the rules in evaluation order. Rules sharing an order keep
// their relative position.
func (l RuleList) Sorted() []Rule {
	out := slices.Clone(l.Rules)
	slices.SortStableFunc(out, func(a, b Rule) int {
		switch {
		case a.Order < b.Order:
			return -1
		case a.Order > b.Order:
			return 1
		}
		return 0
	})
	return out
}

// Validate checks the list name and every rule.
func (l RuleList) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("list name must not be empty")
	}
	for i, r := range l.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return nil
}

// PrivacyState is the account's server-held list designations.
// An empty name means the designation is unset.
type PrivacyState struct {
	Default string
	Active  string
}
