package blocking

import (
	"context"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/log"
)

// CapabilityProbe reports whether the server supports native blocking.
// The answer is fetched once and kept until Reset, which callers invoke on
// reconnect.
type CapabilityProbe struct {
	disco  FeatureDiscoverer
	logger log.Logger

	mu        sync.Mutex
	probed    bool
	supported bool
}

// NewCapabilityProbe returns a probe backed by disco. A nil disco always
// reports unsupported.
func NewCapabilityProbe(disco FeatureDiscoverer, logger log.Logger) *CapabilityProbe {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &CapabilityProbe{disco: disco, logger: logger}
}

// Supported reports whether FeatureBlocking is advertised. Discovery errors
// count as unsupported so callers fall back to privacy lists.
func (p *CapabilityProbe) Supported(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.probed {
		return p.supported
	}
	p.supported = p.probe(ctx)
	p.probed = true
	return p.supported
}

func (p *CapabilityProbe) probe(ctx context.Context) bool {
	if p.disco == nil {
		return false
	}
	ok, err := p.disco.IsFeatureSupported(ctx, FeatureBlocking)
	if err != nil {
		p.logger.Warn(map[string]any{
			"feature": FeatureBlocking,
			"error":   err.Error(),
		}, "capability probe failed, assuming native blocking is unavailable")
		return false
	}
	p.logger.Debug(map[string]any{"feature": FeatureBlocking, "supported": ok}, "capability probed")
	return ok
}

// Reset forgets the cached answer so the next Supported call probes again.
func (p *CapabilityProbe) Reset() {
	p.mu.Lock()
	p.probed = false
	p.supported = false
	p.mu.Unlock()
}
