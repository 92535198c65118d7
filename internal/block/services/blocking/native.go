package blocking

import (
	"context"
	"fmt"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// nativeBackend passes block, unblock and query straight to the server's
// blocking command. The server is the only source of truth.
type nativeBackend struct {
	cmd    BlockCommander
	logger log.Logger
}

// NewNativeBackend returns a Backend over the native blocking command.
func NewNativeBackend(cmd BlockCommander, logger log.Logger) Backend {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &nativeBackend{cmd: cmd, logger: log.With(logger, map[string]any{"backend": "native"})}
}

func (n *nativeBackend) Name() string { return "native" }

func (n *nativeBackend) Block(ctx context.Context, addr domain.Address) error {
	return n.send(ctx, domain.OpBlock, addr)
}

func (n *nativeBackend) Unblock(ctx context.Context, addr domain.Address) error {
	return n.send(ctx, domain.OpUnblock, addr)
}

func (n *nativeBackend) send(ctx context.Context, op domain.BlockOp, addr domain.Address) error {
	if err := n.cmd.SendBlockCommand(ctx, op, addr); err != nil {
		return fmt.Errorf("%s %s: %w", op, addr, err)
	}
	n.logger.Debug(map[string]any{"op": op.String(), "address": addr.String()}, "blocking command sent")
	return nil
}

func (n *nativeBackend) Blocklist(ctx context.Context) (domain.BlockedSet, error) {
	set, err := n.cmd.QueryNativeBlocklist(ctx)
	if err != nil {
		return domain.BlockedSet{}, fmt.Errorf("query blocklist: %w", err)
	}
	return set, nil
}

var _ Backend = (*nativeBackend)(nil)
