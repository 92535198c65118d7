package domain

import "fmt"

// BlockDecision is the outcome of screening a sender against the blocked set.
type BlockDecision struct {
	Blocked bool    // true if the sender matched a blocked entry
	Matched Address // blocked entry that matched (full, bare, domain/resource or domain)
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// EmptyDecision returns a not-blocked decision.
func EmptyDecision() BlockDecision { return BlockDecision{Blocked: false} }

// BlockOp is a native blocking command.
type BlockOp uint8

const (
	OpBlock BlockOp = iota
	OpUnblock
)

func (o BlockOp) String() string {
	switch o {
	case OpBlock:
		return "block"
	case OpUnblock:
		return "unblock"
	default:
		return fmt.Sprintf("BlockOp(%d)", o)
	}
}
