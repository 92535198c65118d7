package blocking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/domain"
)

func TestSerialized_ConcurrentBlocksAreNotLost(t *testing.T) {
	store := newMemStore()
	s := NewSerialized(NewPrivacyBackend(store, nil))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addr := domain.MustParseAddress(fmt.Sprintf("user%d@example.com", i))
			assert.NoError(t, s.Block(ctx, addr))
		}()
	}
	wg.Wait()

	set, err := s.Blocklist(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, set.Len())
}

// slowBlocker counts Blocklist calls and holds each one until released.
type slowBlocker struct {
	calls   atomic.Int32
	release chan struct{}
}

func (b *slowBlocker) Block(context.Context, domain.Address) error   { return nil }
func (b *slowBlocker) Unblock(context.Context, domain.Address) error { return nil }
func (b *slowBlocker) Blocklist(context.Context) (domain.BlockedSet, error) {
	b.calls.Add(1)
	<-b.release
	return domain.NewBlockedSet(alice), nil
}

func TestSerialized_SharesInflightBlocklist(t *testing.T) {
	inner := &slowBlocker{release: make(chan struct{})}
	s := NewSerialized(inner)

	const n = 5
	var wg sync.WaitGroup
	results := make([]domain.BlockedSet, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := s.Blocklist(context.Background())
			assert.NoError(t, err)
			results[i] = set
		}()
	}
	require.Eventually(t, func() bool { return inner.calls.Load() == 1 }, time.Second, time.Millisecond)
	// give the remaining callers time to join the in-flight query
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.LessOrEqual(t, inner.calls.Load(), int32(n))
	for _, set := range results {
		assert.True(t, set.Contains(alice))
	}
}

func TestSerialized_CallersGetIndependentSets(t *testing.T) {
	inner := &slowBlocker{release: make(chan struct{})}
	s := NewSerialized(inner)

	const n = 4
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := s.Blocklist(context.Background())
			assert.NoError(t, err)
			set.Add(domain.MustParseAddress("extra@example.com"))
			assert.Equal(t, 2, set.Len())
		}()
	}
	require.Eventually(t, func() bool { return inner.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	set, err := s.Blocklist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}
