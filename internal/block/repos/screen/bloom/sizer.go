package bloom

import (
	"math"

	"github.com/haukened/rr-block/internal/block/services/screen"
)

// sizer implements screen.BloomSizer using standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// n is the number of blocked addresses in a snapshot. An empty snapshot
// is sized as one entry and an out-of-range rate falls back to 1%, so every
// refresh yields a usable filter.
type sizer struct{}

// NewSizer returns a BloomSizer implementation.
func NewSizer() screen.BloomSizer { return sizer{} }

func (s sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = 0.01 // default 1% if invalid
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}
