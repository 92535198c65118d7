package domain

import (
	"slices"
	"strings"
)

// BlockedSet is the set of blocked addresses. The zero value is an empty
// set ready to use.
type BlockedSet struct {
	m map[Address]struct{}
}

// NewBlockedSet returns a set holding addrs. Zero addresses are skipped.
func NewBlockedSet(addrs ...Address) BlockedSet {
	var s BlockedSet
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add inserts a into the set.
func (s *BlockedSet) Add(a Address) {
	if a.IsZero() {
		return
	}
	if s.m == nil {
		s.m = make(map[Address]struct{})
	}
	s.m[a] = struct{}{}
}

// Contains reports whether a is in the set.
func (s BlockedSet) Contains(a Address) bool {
	_, ok := s.m[a]
	return ok
}

// Len returns the number of addresses in the set.
func (s BlockedSet) Len() int { return len(s.m) }

// Slice returns the addresses sorted by their string form.
func (s BlockedSet) Slice() []Address {
	out := make([]Address, 0, len(s.m))
	for a := range s.m {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Address) int { return strings.Compare(a.String(), b.String()) })
	return out
}

// Strings returns the sorted string forms.
func (s BlockedSet) Strings() []string {
	addrs := s.Slice()
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}
