package blocking

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haukened/rr-block/internal/block/domain"
)

// Result label values.
const (
	resultOK           = "ok"
	resultError        = "error"
	resultInconsistent = "inconsistent"
	resultUnsupported  = "unsupported"
)

// Metrics counts blocking operations per backend. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the blocking collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rrblock_operations_total",
			Help: "Blocking operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rrblock_operation_duration_seconds",
			Help:    "Blocking operation latency by backend and operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "op"}),
	}
	if err := reg.Register(m.ops); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// Instrument wraps b so each call is counted and timed.
func (m *Metrics) Instrument(b Backend) Backend {
	if m == nil {
		return b
	}
	return &instrumented{inner: b, m: m}
}

func (m *Metrics) observe(backend, op string, start time.Time, err error) {
	m.duration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	m.ops.WithLabelValues(backend, op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	var inconsistent *domain.InconsistentStateError
	switch {
	case err == nil:
		return resultOK
	case errors.As(err, &inconsistent):
		return resultInconsistent
	case errors.Is(err, domain.ErrNotSupported):
		return resultUnsupported
	default:
		return resultError
	}
}

type instrumented struct {
	inner Backend
	m     *Metrics
}

func (i *instrumented) Name() string { return i.inner.Name() }

func (i *instrumented) Block(ctx context.Context, addr domain.Address) error {
	start := time.Now()
	err := i.inner.Block(ctx, addr)
	i.m.observe(i.inner.Name(), "block", start, err)
	return err
}

func (i *instrumented) Unblock(ctx context.Context, addr domain.Address) error {
	start := time.Now()
	err := i.inner.Unblock(ctx, addr)
	i.m.observe(i.inner.Name(), "unblock", start, err)
	return err
}

func (i *instrumented) Blocklist(ctx context.Context) (domain.BlockedSet, error) {
	start := time.Now()
	set, err := i.inner.Blocklist(ctx)
	i.m.observe(i.inner.Name(), "blocklist", start, err)
	return set, err
}

var _ Backend = (*instrumented)(nil)
