// Package drift provides a streaming, bounded-memory change detector over a
// scalar summary of the feature stream, plus alert bookkeeping.
package drift

import (
	"math"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	driftAlerts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sentra", Subsystem: "drift", Name: "alerts_total",
		Help: "Total number of concept drift triggers.",
	})
	driftScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentra", Subsystem: "drift", Name: "score",
		Help: "Absolute sub-window mean divergence at the last check.",
	})
)

func init() {
	_ = prometheus.Register(driftAlerts)
	_ = prometheus.Register(driftScore)
}

// maxBucketsPerRow bounds memory: rows hold at most this many buckets before
// the two oldest merge into the next row (doubling their capacity).
const maxBucketsPerRow = 5

type bucket struct {
	sum   float64
	count int
}

// Monitor is an adaptive-window change detector. It keeps a compressed
// window of the recent stream and flags a change as soon as the mean of the
// newest sub-window diverges from the older sub-window beyond an adaptive
// Hoeffding-style bound. Single-writer: the window logic is not designed for
// concurrent mutation, so all Add calls must come from one goroutine (the
// internal mutex only protects readers).
type Monitor struct {
	mu      sync.Mutex
	delta   float64
	buckets []bucket // oldest first; bucket i aggregates capacities by row
	total   float64
	width   int
	changed bool
}

// NewMonitor creates a monitor; delta is the false-positive budget of the
// adaptive bound (smaller = more conservative).
func NewMonitor(delta float64) *Monitor {
	if delta <= 0 {
		delta = 0.002
	}
	return &Monitor{delta: delta}
}

// Add feeds one scalar observation and reports whether this observation
// tripped the change flag. Once tripped, the flag stays set until Reset.
func (m *Monitor) Add(v float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buckets = append(m.buckets, bucket{sum: v, count: 1})
	m.total += v
	m.width++
	m.compress()
	return m.detect()
}

// Changed reports whether a change has been flagged since the last Reset.
func (m *Monitor) Changed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// Width returns the current adaptive window size.
func (m *Monitor) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.width
}

// Mean returns the mean of the current window.
func (m *Monitor) Mean() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.width == 0 {
		return 0
	}
	return m.total / float64(m.width)
}

// Reset clears the window and the change flag. Called after a retraining
// cycle acknowledges the drift so the same shift is not re-reported.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets = nil
	m.total = 0
	m.width = 0
	m.changed = false
}

// compress merges old buckets so memory stays logarithmic in window width.
func (m *Monitor) compress() {
	rowCount := 0
	rowCapacity := 1
	// Walk from the newest end; buckets of equal capacity form a row.
	for i := len(m.buckets) - 1; i >= 0; i-- {
		if m.buckets[i].count != rowCapacity {
			rowCount = 0
			rowCapacity = m.buckets[i].count
		}
		rowCount++
		if rowCount > maxBucketsPerRow && i > 0 && m.buckets[i-1].count == rowCapacity {
			merged := bucket{
				sum:   m.buckets[i-1].sum + m.buckets[i].sum,
				count: m.buckets[i-1].count + m.buckets[i].count,
			}
			m.buckets = append(m.buckets[:i-1], append([]bucket{merged}, m.buckets[i+1:]...)...)
			rowCount = 0
			rowCapacity = merged.count
		}
	}
}

// detect scans every split of the window, comparing the older and newer
// sub-window means under the adaptive confidence bound. On a cut the stale
// prefix is dropped and the change flag set.
func (m *Monitor) detect() bool {
	if m.width < 10 {
		return false
	}

	triggered := false
	for {
		cut := -1
		sum0, n0 := 0.0, 0
		for i := 0; i < len(m.buckets)-1; i++ {
			sum0 += m.buckets[i].sum
			n0 += m.buckets[i].count
			n1 := m.width - n0
			if n0 < 5 || n1 < 5 {
				continue
			}
			mu0 := sum0 / float64(n0)
			mu1 := (m.total - sum0) / float64(n1)
			diff := math.Abs(mu0 - mu1)
			driftScore.Set(diff)
			if diff > m.cutThreshold(n0, n1) {
				cut = i
				break
			}
		}
		if cut < 0 {
			break
		}

		// Drop the stale prefix through the cut point.
		for i := 0; i <= cut; i++ {
			m.total -= m.buckets[i].sum
			m.width -= m.buckets[i].count
		}
		m.buckets = m.buckets[cut+1:]
		if !m.changed {
			driftAlerts.Inc()
		}
		m.changed = true
		triggered = true
	}
	return triggered
}

// cutThreshold is the Hoeffding-style adaptive bound over the two sub-window
// sizes, scaled by the observed window variance.
func (m *Monitor) cutThreshold(n0, n1 int) float64 {
	mInv := 1.0/float64(n0) + 1.0/float64(n1)
	dd := math.Log(2.0 * math.Log(float64(m.width)) / m.delta)
	v := m.windowVariance()
	return math.Sqrt(2*mInv*v*dd) + 2.0/3.0*mInv*dd
}

func (m *Monitor) windowVariance() float64 {
	if m.width < 2 {
		return 0
	}
	mean := m.total / float64(m.width)
	// Bucket means approximate the spread well enough for the bound.
	v := 0.0
	for _, b := range m.buckets {
		bm := b.sum / float64(b.count)
		v += float64(b.count) * (bm - mean) * (bm - mean)
	}
	v /= float64(m.width)
	if v < 1e-12 {
		v = 1e-12 // constant streams must never trigger on rounding noise
	}
	return v
}
