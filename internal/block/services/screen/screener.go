// Package screen decides whether an incoming sender is blocked. It keeps a
// local snapshot of the blocked set and answers from it through a
// bloom → cache → set pipeline, so screening never waits on the server.
package screen

import (
	"context"
	"errors"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/clock"
	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// Options configures a Screener. Source, Cache and Factory are required.
type Options struct {
	Source  Source
	Cache   DecisionCache
	Factory BloomFactory
	FPRate  float64
	Clock   clock.Clock
	Logger  log.Logger
}

// Screener matches senders against the last refreshed blocked set.
type Screener struct {
	source  Source
	cache   DecisionCache
	factory BloomFactory
	fpRate  float64
	clock   clock.Clock
	logger  log.Logger

	mu          sync.RWMutex
	set         domain.BlockedSet
	bloom       BloomFilter
	gen         uint64 // bumped on every refresh
	lastRefresh int64
}

// New constructs a Screener. Until the first Refresh nothing is blocked.
func New(opts Options) (*Screener, error) {
	if opts.Source == nil || opts.Cache == nil || opts.Factory == nil {
		return nil, errors.New("screener requires a source, a decision cache and a bloom factory")
	}
	if opts.Clock == nil {
		opts.Clock = &clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Screener{
		source:  opts.Source,
		cache:   opts.Cache,
		factory: opts.Factory,
		fpRate:  opts.FPRate,
		clock:   opts.Clock,
		logger:  log.With(opts.Logger, map[string]any{"component": "screen"}),
	}, nil
}

// Refresh pulls the blocked set from the source and swaps it in together
// with a freshly built Bloom filter. The decision cache is purged. On
// error the previous snapshot stays in place.
func (s *Screener) Refresh(ctx context.Context) error {
	set, err := s.source.Blocklist(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"error": err.Error()}, "blocklist refresh failed, keeping previous snapshot")
		return err
	}

	bf := s.factory.New(uint64(set.Len()), s.fpRate)
	for _, a := range set.Slice() {
		bf.Add([]byte(a.String()))
	}

	now := s.clock.Now().Unix()
	s.mu.Lock()
	s.set = set
	s.bloom = bf
	s.gen++
	s.lastRefresh = now
	s.cache.Purge()
	s.mu.Unlock()

	s.logger.Debug(map[string]any{"entries": set.Len()}, "blocklist snapshot refreshed")
	return nil
}

// Decide reports whether addr is blocked. Candidates are tried in match
// order: full address, bare address, domain/resource, then domain.
func (s *Screener) Decide(addr domain.Address) domain.BlockDecision {
	if addr.IsZero() {
		return domain.EmptyDecision()
	}
	key := addr.String()

	// 1) checkBloom: early-allow if every candidate is definitely absent
	candidates, gen, ok := s.checkBloom(addr)
	if !ok {
		return domain.EmptyDecision()
	}
	// 2) checkCache
	if d, ok := s.checkCache(key); ok {
		return d
	}
	// 3) checkSet
	dec := s.checkSet(candidates)
	// 4) updateCache
	s.updateCache(gen, key, dec)
	return dec
}

// checkBloom returns the candidates that might be blocked and the snapshot
// generation they were tested against, and false when none can be blocked.
// Without a snapshot nothing is blocked.
func (s *Screener) checkBloom(addr domain.Address) ([]domain.Address, uint64, bool) {
	s.mu.RLock()
	bf, gen := s.bloom, s.gen
	s.mu.RUnlock()
	if bf == nil {
		return nil, gen, false
	}
	var maybe []domain.Address
	for _, c := range addr.MatchCandidates() {
		if bf.MightContain([]byte(c.String())) {
			maybe = append(maybe, c)
		}
	}
	return maybe, gen, len(maybe) > 0
}

func (s *Screener) checkCache(key string) (domain.BlockDecision, bool) {
	s.mu.RLock()
	d, ok := s.cache.Get(key)
	s.mu.RUnlock()
	return d, ok
}

// checkSet consults the snapshot and materializes a decision.
func (s *Screener) checkSet(candidates []domain.Address) domain.BlockDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range candidates {
		if s.set.Contains(c) {
			return domain.BlockDecision{Blocked: true, Matched: c}
		}
	}
	return domain.EmptyDecision()
}

// updateCache writes the decision unless a refresh happened since gen.
func (s *Screener) updateCache(gen uint64, key string, dec domain.BlockDecision) {
	s.mu.Lock()
	if s.gen == gen {
		s.cache.Put(key, dec)
	}
	s.mu.Unlock()
}

// Stats returns cache counters and snapshot metadata.
func (s *Screener) Stats() Stats {
	hits, misses, evictions := s.cache.Stats()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entries:     s.set.Len(),
		CacheSize:   s.cache.Len(),
		Hits:        hits,
		Misses:      misses,
		Evictions:   evictions,
		LastRefresh: s.lastRefresh,
	}
}
