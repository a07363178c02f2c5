package authsession

import (
	"sync/atomic"
	"time"

	"github.com/trackwise/authsession/apierror"
)

// MetricID identifies one session counter or histogram.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterFailure
	MetricRegisterConflict
	MetricLoginSuccess
	MetricLoginFailure
	// MetricAutoLoginFailure counts register-then-login flows whose login leg failed.
	MetricAutoLoginFailure
	MetricLogout
	MetricSessionPersistFailure
	MetricSessionClearFailure
	MetricCacheWarmHit
	MetricCacheWarmMiss
	MetricFailureTimeout
	MetricFailureNetworkUnavailable
	MetricFailureServerError
	MetricFailureUnauthorized
	MetricFailureForbidden
	MetricFailureNotFound
	MetricFailureValidation
	MetricFailureUnknown
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type latencyHistogram [histBucketCount]atomic.Uint64

// paddedCounter keeps each counter on its own cache line.
type paddedCounter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics
// accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	loginLatency  latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the login latency histogram records.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram for id. Only MetricLoginLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	m.loginLatency[bucketIndex(d)].Add(1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter; the latency histogram is included only
// when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		s.Counters[id] = m.counters[id].Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.loginLatency[i].Load()
		}
		s.Histograms[MetricLoginLatency] = buckets
	}
	return s
}

// incFailure bumps the per-kind failure counter for err.
func (m *Metrics) incFailure(err error) {
	switch apierror.KindOf(err) {
	case apierror.KindTimeout:
		m.Inc(MetricFailureTimeout)
	case apierror.KindNetworkUnavailable:
		m.Inc(MetricFailureNetworkUnavailable)
	case apierror.KindServerError:
		m.Inc(MetricFailureServerError)
	case apierror.KindUnauthorized:
		m.Inc(MetricFailureUnauthorized)
	case apierror.KindForbidden:
		m.Inc(MetricFailureForbidden)
	case apierror.KindNotFound:
		m.Inc(MetricFailureNotFound)
	case apierror.KindValidationFailed:
		m.Inc(MetricFailureValidation)
	default:
		m.Inc(MetricFailureUnknown)
	}
}

// Buckets are sized for network round trips: 25ms..2.5s, then overflow.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 25:
		return 0
	case ms <= 50:
		return 1
	case ms <= 100:
		return 2
	case ms <= 250:
		return 3
	case ms <= 500:
		return 4
	case ms <= 1000:
		return 5
	case ms <= 2500:
		return 6
	default:
		return 7
	}
}
