package domain

import (
	"fmt"
	"strings"
)

// Stanza is a bit set of traffic categories a rule applies to.
// The zero value means all traffic.
type Stanza uint8

const (
	StanzaMessage Stanza = 1 << iota
	StanzaPresenceIn
	StanzaPresenceOut
	StanzaIQ

	stanzaMask = StanzaMessage | StanzaPresenceIn | StanzaPresenceOut | StanzaIQ
)

// StanzaAll scopes a rule to every traffic category.
const StanzaAll Stanza = 0

// IsAll reports whether the scope covers every traffic category.
func (s Stanza) IsAll() bool { return s&stanzaMask == 0 || s&stanzaMask == stanzaMask }

// Covers reports whether the scope includes kind.
func (s Stanza) Covers(kind Stanza) bool { return s.IsAll() || s&kind != 0 }

// String returns a stable, human readable form such as "message|iq".
func (s Stanza) String() string {
	if s.IsAll() {
		return "all"
	}
	var parts []string
	for _, p := range []struct {
		bit  Stanza
		name string
	}{
		{StanzaMessage, "message"},
		{StanzaPresenceIn, "presence-in"},
		{StanzaPresenceOut, "presence-out"},
		{StanzaIQ, "iq"},
	} {
		if s&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "|")
}

// RuleType selects what a rule matches on.
type RuleType uint8

const (
	// RuleFallThrough matches every sender.
	RuleFallThrough RuleType = iota
	// RuleJID matches one address. Rules of this type are address rules.
	RuleJID
	// RuleGroup matches roster group members.
	RuleGroup
	// RuleSubscription matches a roster subscription state.
	RuleSubscription
)

func (t RuleType) String() string {
	switch t {
	case RuleFallThrough:
		return "fall-through"
	case RuleJID:
		return "jid"
	case RuleGroup:
		return "group"
	case RuleSubscription:
		return "subscription"
	default:
		return fmt.Sprintf("RuleType(%d)", t)
	}
}

// Rule is a single privacy list item. Lower Order values are evaluated
// first and the first match wins.
type Rule struct {
	Order uint32
	Allow bool
	Type  RuleType
	// Value is the match key: a canonical JID for RuleJID, a group name for
	// RuleGroup, a subscription state for RuleSubscription; empty otherwise.
	Value string
	Scope Stanza
}

// NewAddressRule returns an all-traffic rule scoped to addr.
func NewAddressRule(addr Address, allow bool, order uint32) Rule {
	return Rule{Order: order, Allow: allow, Type: RuleJID, Value: addr.String(), Scope: StanzaAll}
}

// IsAddressRule reports whether the rule is scoped to one address.
func (r Rule) IsAddressRule() bool { return r.Type == RuleJID }

// Address returns the address of an address rule. ok is false for other
// rule types and for values that do not parse.
func (r Rule) Address() (Address, bool) {
	if !r.IsAddressRule() {
		return Address{}, false
	}
	a, err := ParseAddress(r.Value)
	if err != nil {
		return Address{}, false
	}
	return a, true
}

// sameAs reports whether o is the same rule as r, comparing address rule
// values after normalisation.
func (r Rule) sameAs(o Rule) bool {
	if r.Order != o.Order || r.Allow != o.Allow || r.Type != o.Type || r.Scope != o.Scope {
		return false
	}
	if r.Value == o.Value {
		return true
	}
	a, ok := r.Address()
	b, okb := o.Address()
	return ok && okb && a == b
}

// Denies reports whether the rule is a deny address rule for addr,
// regardless of scope.
func (r Rule) Denies(addr Address) bool {
	if r.Allow {
		return false
	}
	a, ok := r.Address()
	return ok && a == addr
}

// Validate checks the rule for supported values.
func (r Rule) Validate() error {
	switch r.Type {
	case RuleFallThrough:
		if r.Value != "" {
			return fmt.Errorf("fall-through rule must not carry a value")
		}
	case RuleJID:
		if _, err := ParseAddress(r.Value); err != nil {
			return err
		}
	case RuleGroup, RuleSubscription:
		if strings.TrimSpace(r.Value) == "" {
			return fmt.Errorf("%s rule requires a value", r.Type)
		}
	default:
		return fmt.Errorf("unsupported rule type: %d", r.Type)
	}
	if r.Scope&^stanzaMask != 0 {
		return fmt.Errorf("unsupported stanza scope: %#x", uint8(r.Scope))
	}
	return nil
}
