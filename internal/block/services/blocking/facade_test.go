package blocking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

func TestNewFacade_RequiresAMechanism(t *testing.T) {
	_, err := NewFacade(FacadeOptions{Logger: log.NewNoopLogger()})
	assert.Error(t, err)
}

func TestFacade_NativePathNeverTouchesPrivacyLists(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	disco := new(MockDiscoverer)
	disco.On("IsFeatureSupported", mock.Anything, FeatureBlocking).Return(true, nil).Once()
	cmd := new(MockCommander)
	cmd.On("SendBlockCommand", mock.Anything, domain.OpBlock, alice).Return(nil).Once()
	cmd.On("SendBlockCommand", mock.Anything, domain.OpUnblock, alice).Return(nil).Once()
	cmd.On("QueryNativeBlocklist", mock.Anything).Return(domain.NewBlockedSet(bob), nil).Once()

	f, err := NewFacade(FacadeOptions{Commander: cmd, Discoverer: disco, Store: store})
	require.NoError(t, err)

	require.NoError(t, f.Block(ctx, alice))
	require.NoError(t, f.Unblock(ctx, alice))
	set, err := f.Blocklist(ctx)
	require.NoError(t, err)
	assert.True(t, set.Contains(bob))

	assert.Empty(t, store.calls, "no privacy list call may occur when native blocking is supported")
	cmd.AssertExpectations(t)
	disco.AssertExpectations(t)

	name, err := f.Backend(ctx)
	require.NoError(t, err)
	assert.Equal(t, "native", name)
}

func TestFacade_FallsBackToPrivacyLists(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name  string
		ok    bool
		error error
	}{
		{"not advertised", false, nil},
		{"probe failed", true, errors.New("disco timeout")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			disco := new(MockDiscoverer)
			disco.On("IsFeatureSupported", mock.Anything, FeatureBlocking).Return(tc.ok, tc.error).Once()
			cmd := new(MockCommander)
			store := newMemStore()

			f, err := NewFacade(FacadeOptions{Commander: cmd, Discoverer: disco, Store: store})
			require.NoError(t, err)

			require.NoError(t, f.Block(ctx, alice))
			set, err := f.Blocklist(ctx)
			require.NoError(t, err)
			assert.True(t, set.Contains(alice))

			cmd.AssertNotCalled(t, "SendBlockCommand", mock.Anything, mock.Anything, mock.Anything)
			disco.AssertExpectations(t)
		})
	}
}

func TestFacade_SelectsOncePerSession(t *testing.T) {
	ctx := context.Background()
	disco := new(MockDiscoverer)
	disco.On("IsFeatureSupported", mock.Anything, FeatureBlocking).Return(false, nil).Twice()
	f, err := NewFacade(FacadeOptions{Discoverer: disco, Commander: new(MockCommander), Store: newMemStore()})
	require.NoError(t, err)

	for range 3 {
		_, err := f.Blocklist(ctx)
		require.NoError(t, err)
	}
	disco.AssertNumberOfCalls(t, "IsFeatureSupported", 1)

	f.Reset()
	_, err = f.Blocklist(ctx)
	require.NoError(t, err)
	disco.AssertNumberOfCalls(t, "IsFeatureSupported", 2)
}

func TestFacade_RejectsEmptyAddressBeforeNetwork(t *testing.T) {
	ctx := context.Background()
	disco := new(MockDiscoverer)
	cmd := new(MockCommander)
	store := newMemStore()
	f, err := NewFacade(FacadeOptions{Commander: cmd, Discoverer: disco, Store: store})
	require.NoError(t, err)

	assert.ErrorIs(t, f.Block(ctx, domain.Address{}), domain.ErrInvalidAddress)
	assert.ErrorIs(t, f.Unblock(ctx, domain.Address{}), domain.ErrInvalidAddress)

	disco.AssertNotCalled(t, "IsFeatureSupported", mock.Anything, mock.Anything)
	assert.Empty(t, store.calls)
}

func TestFacade_NotSupportedWithoutUsableMechanism(t *testing.T) {
	disco := new(MockDiscoverer)
	disco.On("IsFeatureSupported", mock.Anything, FeatureBlocking).Return(false, nil)
	f, err := NewFacade(FacadeOptions{Commander: new(MockCommander), Discoverer: disco})
	require.NoError(t, err)

	err = f.Block(context.Background(), alice)
	assert.ErrorIs(t, err, domain.ErrNotSupported)
	_, err = f.Blocklist(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}

func TestFacade_ProtocolErrorsSurfaceUnchanged(t *testing.T) {
	disco := new(MockDiscoverer)
	disco.On("IsFeatureSupported", mock.Anything, FeatureBlocking).Return(true, nil)
	rejected := &domain.ProtocolError{Condition: "not-acceptable", Text: "jid malformed"}
	cmd := new(MockCommander)
	cmd.On("SendBlockCommand", mock.Anything, domain.OpBlock, alice).Return(rejected)

	f, err := NewFacade(FacadeOptions{Commander: cmd, Discoverer: disco})
	require.NoError(t, err)

	err = f.Block(context.Background(), alice)
	var pe *domain.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Same(t, rejected, pe)
	cmd.AssertNumberOfCalls(t, "SendBlockCommand", 1)
}

// Property checks over the privacy emulation driven through the facade.
func TestFacade_BlockUnblockProperties(t *testing.T) {
	ctx := context.Background()
	addrs := []domain.Address{
		alice, bob, carol,
		domain.MustParseAddress("example.net"),
		domain.MustParseAddress("dave@example.com/phone"),
	}
	store := newMemStore()
	f, err := NewFacade(FacadeOptions{Store: store})
	require.NoError(t, err)

	for _, a := range addrs {
		require.NoError(t, f.Block(ctx, a))
		set, err := f.Blocklist(ctx)
		require.NoError(t, err)
		assert.True(t, set.Contains(a))
	}
	for i, a := range addrs {
		require.NoError(t, f.Unblock(ctx, a))
		set, err := f.Blocklist(ctx)
		require.NoError(t, err)
		assert.False(t, set.Contains(a))
		assert.Equal(t, len(addrs)-i-1, set.Len())
	}
	assert.Empty(t, store.names())
	assert.Empty(t, store.def)
}
