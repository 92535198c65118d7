package screen

import (
	"context"

	"github.com/haukened/rr-block/internal/block/domain"
)

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the screener needs from Bloom filters.
// A filter is built once per refresh and never cleared.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds a filter sized for capacity entries at fpRate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches block decisions by sender address with basic metrics.
type DecisionCache interface {
	Get(addr string) (domain.BlockDecision, bool)
	Put(addr string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// Source yields the authoritative blocked set. blocking.Facade and
// blocking.Serialized satisfy it.
type Source interface {
	Blocklist(ctx context.Context) (domain.BlockedSet, error)
}
