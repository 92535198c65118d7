package blocking

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/haukened/rr-block/internal/block/domain"
)

// Serialized guards one account's Blocker. The privacy list emulation
// reads a list, edits it locally and saves it back; two unguarded updates
// for the same account would race and the later save would silently drop
// the earlier one. Serialized holds a lock across each call. Concurrent
// Blocklist queries share one request.
//
// Use one Serialized per account.
type Serialized struct {
	inner Blocker
	mu    sync.Mutex
	reads singleflight.Group
}

// NewSerialized wraps inner.
func NewSerialized(inner Blocker) *Serialized {
	return &Serialized{inner: inner}
}

func (s *Serialized) Block(ctx context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Block(ctx, addr)
}

func (s *Serialized) Unblock(ctx context.Context, addr domain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Unblock(ctx, addr)
}

// Blocklist returns the blocked set. Callers arriving while a query is in
// flight receive its result, which is computed with the first caller's
// context. Each caller gets its own copy.
func (s *Serialized) Blocklist(ctx context.Context) (domain.BlockedSet, error) {
	v, err, _ := s.reads.Do("blocklist", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inner.Blocklist(ctx)
	})
	if err != nil {
		return domain.BlockedSet{}, err
	}
	shared := v.(domain.BlockedSet)
	return domain.NewBlockedSet(shared.Slice()...), nil
}

var _ Blocker = (*Serialized)(nil)
