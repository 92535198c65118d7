package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-block/internal/block/services/screen"
)

// factory builds the per-refresh prefilter, sized for the snapshot being
// published.
type factory struct {
	sizer screen.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() screen.BloomFactory { return factory{sizer: NewSizer()} }

// New returns an empty filter for capacity blocked addresses at fpRate.
// An empty snapshot still gets a one-entry filter so lookups stay valid.
func (f factory) New(capacity uint64, fpRate float64) screen.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
