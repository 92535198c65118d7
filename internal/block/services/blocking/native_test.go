package blocking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/domain"
)

func TestNativeBackend_ForwardsCommands(t *testing.T) {
	cmd := new(MockCommander)
	cmd.On("SendBlockCommand", mock.Anything, domain.OpBlock, alice).Return(nil).Once()
	cmd.On("SendBlockCommand", mock.Anything, domain.OpUnblock, bob).Return(nil).Once()
	b := NewNativeBackend(cmd, nil)

	require.NoError(t, b.Block(context.Background(), alice))
	require.NoError(t, b.Unblock(context.Background(), bob))
	cmd.AssertExpectations(t)
	assert.Equal(t, "native", b.Name())
}

func TestNativeBackend_Blocklist(t *testing.T) {
	cmd := new(MockCommander)
	cmd.On("QueryNativeBlocklist", mock.Anything).Return(domain.NewBlockedSet(alice, carol), nil).Once()
	b := NewNativeBackend(cmd, nil)

	set, err := b.Blocklist(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "carol@example.org"}, set.Strings())
}

func TestNativeBackend_WrapsErrors(t *testing.T) {
	timeout := &domain.NetworkError{Op: "iq", Err: context.DeadlineExceeded}
	cmd := new(MockCommander)
	cmd.On("SendBlockCommand", mock.Anything, domain.OpBlock, alice).Return(timeout)
	cmd.On("QueryNativeBlocklist", mock.Anything).Return(domain.BlockedSet{}, errors.New("closed"))
	b := NewNativeBackend(cmd, nil)

	err := b.Block(context.Background(), alice)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "block alice@example.com")

	_, err = b.Blocklist(context.Background())
	assert.EqualError(t, err, "query blocklist: closed")
}
