package blocking

import (
	"context"
	"fmt"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// Facade is the single entry point for blocking. It picks the native
// backend when the server advertises it and the privacy list emulation
// otherwise. The choice is made once per session; call Reset after
// reconnecting.
type Facade struct {
	probe   *CapabilityProbe
	native  Backend
	privacy Backend
	logger  log.Logger

	mu       sync.Mutex
	selected Backend
}

// FacadeOptions wires a Facade. Commander and Discoverer are needed for
// native blocking; Store for the privacy list emulation. Metrics is
// optional.
type FacadeOptions struct {
	Commander  BlockCommander
	Discoverer FeatureDiscoverer
	Store      PrivacyListStore
	Logger     log.Logger
	Metrics    *Metrics
}

// NewFacade constructs a Facade. At least one mechanism must be wired.
func NewFacade(opts FacadeOptions) (*Facade, error) {
	if opts.Commander == nil && opts.Store == nil {
		return nil, fmt.Errorf("facade requires a block commander or a privacy list store")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	logger := log.With(opts.Logger, map[string]any{"component": "blocking"})

	f := &Facade{
		probe:  NewCapabilityProbe(opts.Discoverer, logger),
		logger: logger,
	}
	if opts.Commander != nil {
		f.native = opts.Metrics.Instrument(NewNativeBackend(opts.Commander, logger))
	}
	if opts.Store != nil {
		f.privacy = opts.Metrics.Instrument(NewPrivacyBackend(opts.Store, logger))
	}
	return f, nil
}

// backend returns the session's backend, selecting it on first use.
func (f *Facade) backend(ctx context.Context) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selected != nil {
		return f.selected, nil
	}

	switch {
	case f.native != nil && f.probe.Supported(ctx):
		f.selected = f.native
	case f.privacy != nil:
		f.selected = f.privacy
	default:
		return nil, domain.ErrNotSupported
	}
	f.logger.Info(map[string]any{"backend": f.selected.Name()}, "blocking backend selected")
	return f.selected, nil
}

// Backend returns the name of the selected backend, selecting it if needed.
func (f *Facade) Backend(ctx context.Context) (string, error) {
	b, err := f.backend(ctx)
	if err != nil {
		return "", err
	}
	return b.Name(), nil
}

// Reset forgets the selected backend and the cached capability probe.
func (f *Facade) Reset() {
	f.mu.Lock()
	f.selected = nil
	f.mu.Unlock()
	f.probe.Reset()
}

// Block blocks addr.
func (f *Facade) Block(ctx context.Context, addr domain.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("block: %w: empty address", domain.ErrInvalidAddress)
	}
	b, err := f.backend(ctx)
	if err != nil {
		return err
	}
	return b.Block(ctx, addr)
}

// Unblock unblocks addr. Unblocking an address that is not blocked is not
// an error.
func (f *Facade) Unblock(ctx context.Context, addr domain.Address) error {
	if addr.IsZero() {
		return fmt.Errorf("unblock: %w: empty address", domain.ErrInvalidAddress)
	}
	b, err := f.backend(ctx)
	if err != nil {
		return err
	}
	return b.Unblock(ctx, addr)
}

// Blocklist returns the currently blocked addresses.
func (f *Facade) Blocklist(ctx context.Context) (domain.BlockedSet, error) {
	b, err := f.backend(ctx)
	if err != nil {
		return domain.BlockedSet{}, err
	}
	return b.Blocklist(ctx)
}

var _ Blocker = (*Facade)(nil)
