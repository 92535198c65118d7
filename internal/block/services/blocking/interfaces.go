package blocking

import (
	"context"

	"github.com/haukened/rr-block/internal/block/domain"
)

// Service discovery features consulted by the capability probe.
const (
	FeatureBlocking = "urn:xmpp:blocking"
	FeaturePrivacy  = "jabber:iq:privacy"
)

// BlockCommander sends native blocking commands to the server.
type BlockCommander interface {
	// SendBlockCommand adds addr to (OpBlock) or removes it from (OpUnblock)
	// the server-held blocklist.
	SendBlockCommand(ctx context.Context, op domain.BlockOp, addr domain.Address) error
	// QueryNativeBlocklist returns the server-held blocklist.
	QueryNativeBlocklist(ctx context.Context) (domain.BlockedSet, error)
}

// FeatureDiscoverer answers service discovery feature queries.
type FeatureDiscoverer interface {
	IsFeatureSupported(ctx context.Context, feature string) (bool, error)
}

// PrivacyListStore is the server's privacy list API. Default and active
// designations live on the server; the empty name means unset.
type PrivacyListStore interface {
	// ListNames returns the names of all lists on the account.
	ListNames(ctx context.Context) ([]string, error)
	// GetList fetches a list by name, or returns domain.ErrListNotFound.
	GetList(ctx context.Context, name string) (domain.RuleList, error)
	// DefaultListName returns the default list name, or "" when unset.
	DefaultListName(ctx context.Context) (string, error)
	// SetDefaultListName designates the default list; "" clears it.
	SetDefaultListName(ctx context.Context, name string) error
	// SetActiveListName designates the session's active list; "" clears it.
	SetActiveListName(ctx context.Context, name string) error
	// SaveList creates or fully replaces a list.
	SaveList(ctx context.Context, list domain.RuleList) error
	// RemoveList deletes a list.
	RemoveList(ctx context.Context, name string) error
}

// Backend is one blocking mechanism. Implementations issue requests on
// every call and keep no state between calls.
type Backend interface {
	Name() string
	Block(ctx context.Context, addr domain.Address) error
	Unblock(ctx context.Context, addr domain.Address) error
	Blocklist(ctx context.Context) (domain.BlockedSet, error)
}

// Blocker is the public blocking surface implemented by Facade and
// Serialized.
type Blocker interface {
	Block(ctx context.Context, addr domain.Address) error
	Unblock(ctx context.Context, addr domain.Address) error
	Blocklist(ctx context.Context) (domain.BlockedSet, error)
}
