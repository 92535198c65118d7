package screen

// Stats reports lightweight screener metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type Stats struct {
	Entries     int    // blocked addresses in the current snapshot
	CacheSize   int    // current number of cached decisions
	Hits        uint64 // total cache hits since construction
	Misses      uint64 // total cache misses since construction
	Evictions   uint64 // total evictions since construction
	LastRefresh int64  // unix seconds of the last successful refresh (0 if never)
}
