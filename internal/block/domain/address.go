package domain

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// maxPartLen is the byte limit for each JID part (RFC 7622 §3).
const maxPartLen = 1023

// Address is a normalized XMPP address (JID). The zero value is the empty
// address and is never valid as a block target.
//
// Two addresses are equal when their canonical string forms are equal, so
// Address values can be compared with == and used as map keys.
type Address struct {
	local    string
	domain   string
	resource string
}

// ParseAddress parses and normalizes a JID of the form
// [localpart@]domainpart[/resourcepart].
//
// Normalization:
//   - localpart is case-mapped with the PRECIS UsernameCaseMapped profile
//   - domainpart is lowercased, stripped of a trailing dot and IDNA-mapped
//   - resourcepart is enforced with the PRECIS OpaqueString profile
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	var local, dom, res string
	rest := s
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		res = rest[i+1:]
		rest = rest[:i]
		if res == "" {
			return Address{}, fmt.Errorf("%w: empty resourcepart in %q", ErrInvalidAddress, s)
		}
	}
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		local = rest[:i]
		dom = rest[i+1:]
		if local == "" {
			return Address{}, fmt.Errorf("%w: empty localpart in %q", ErrInvalidAddress, s)
		}
	} else {
		dom = rest
	}

	a, err := newAddress(local, dom, res)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func newAddress(local, dom, res string) (Address, error) {
	var err error
	if local != "" {
		local, err = precis.UsernameCaseMapped.String(local)
		if err != nil {
			return Address{}, fmt.Errorf("localpart: %w", err)
		}
		if len(local) > maxPartLen {
			return Address{}, fmt.Errorf("localpart longer than %d bytes", maxPartLen)
		}
	}

	dom, err = normalizeDomain(dom)
	if err != nil {
		return Address{}, err
	}

	if res != "" {
		res, err = precis.OpaqueString.String(res)
		if err != nil {
			return Address{}, fmt.Errorf("resourcepart: %w", err)
		}
		if len(res) > maxPartLen {
			return Address{}, fmt.Errorf("resourcepart longer than %d bytes", maxPartLen)
		}
	}
	return Address{local: local, domain: dom, resource: res}, nil
}

func normalizeDomain(dom string) (string, error) {
	dom = strings.ToLower(strings.TrimSuffix(dom, "."))
	if dom == "" {
		return "", fmt.Errorf("empty domainpart")
	}
	// IP literals are taken as-is.
	if strings.HasPrefix(dom, "[") && strings.HasSuffix(dom, "]") {
		return dom, nil
	}
	u, err := idna.Lookup.ToUnicode(dom)
	if err != nil {
		return "", fmt.Errorf("domainpart: %w", err)
	}
	if len(u) > maxPartLen {
		return "", fmt.Errorf("domainpart longer than %d bytes", maxPartLen)
	}
	return u, nil
}

// Localpart returns the localpart, or "" for domain addresses.
func (a Address) Localpart() string { return a.local }

// Domainpart returns the domainpart.
func (a Address) Domainpart() string { return a.domain }

// Resourcepart returns the resourcepart, or "" for bare addresses.
func (a Address) Resourcepart() string { return a.resource }

// IsZero reports whether a is the empty address.
func (a Address) IsZero() bool { return a.domain == "" }

// Bare returns the address without its resourcepart.
func (a Address) Bare() Address { return Address{local: a.local, domain: a.domain} }

// Domain returns the address reduced to its domainpart.
func (a Address) Domain() Address { return Address{domain: a.domain} }

// Equal reports whether a and b are the same normalized address.
func (a Address) Equal(b Address) bool { return a == b }

// String returns the canonical JID string.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	var b strings.Builder
	if a.local != "" {
		b.WriteString(a.local)
		b.WriteByte('@')
	}
	b.WriteString(a.domain)
	if a.resource != "" {
		b.WriteByte('/')
		b.WriteString(a.resource)
	}
	return b.String()
}

// MatchCandidates returns the addresses a blocklist entry may be written as
// to match a, most specific first: full JID, bare JID, domain/resource,
// domain. Duplicates are omitted.
func (a Address) MatchCandidates() []Address {
	if a.IsZero() {
		return nil
	}
	all := []Address{
		a,
		a.Bare(),
		{domain: a.domain, resource: a.resource},
		a.Domain(),
	}
	out := make([]Address, 0, len(all))
	seen := make(map[Address]struct{}, len(all))
	for _, c := range all {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
