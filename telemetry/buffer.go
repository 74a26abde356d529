package telemetry

import (
	"errors"
	"math"
	"sync"
	"time"
)

// DefaultMaxPoints is the sliding-window capacity used when none is configured.
const DefaultMaxPoints = 500

// ErrInvalidWindow is returned by SetWindow for a non-positive capacity.
var ErrInvalidWindow = errors.New("series window must be positive")

// SeriesBuffer is the bounded multi-channel time series store behind the live
// plot. One writer (the link reader) appends; any number of readers take
// snapshots concurrently. Every series always has exactly as many points as
// there are timestamps: channels first seen mid-stream are backfilled with
// NaN, and channels absent from a frame get NaN appended, so the plot can
// simply skip non-finite points.
type SeriesBuffer struct {
	mu         sync.RWMutex
	maxPoints  int
	timestamps []time.Time
	order      []string // channel registration order
	series     map[string][]float64
}

// Snapshot is a point-in-time, deep copy of the buffer contents. It is safe
// to read from any goroutine while appends continue.
type Snapshot struct {
	Timestamps []time.Time
	Order      []string
	Series     map[string][]float64
}

// NewSeriesBuffer creates a buffer holding at most maxPoints samples per
// channel. Non-positive capacities fall back to DefaultMaxPoints.
func NewSeriesBuffer(maxPoints int) *SeriesBuffer {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &SeriesBuffer{
		maxPoints: maxPoints,
		series:    make(map[string][]float64),
	}
}

// Append commits one decoded record at the given capture instant. New channel
// keys are registered on first sight with NaN history padding; eviction of
// the oldest sample happens atomically with the append, so readers never
// observe mismatched lengths. Appends are indexed by arrival order; equal
// timestamps are kept as distinct points.
func (b *SeriesBuffer) Append(ts time.Time, rec Record) {
	if len(rec) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	depth := len(b.timestamps)
	for _, s := range rec {
		if _, ok := b.series[s.Key]; ok {
			continue
		}
		// Register on first sight, pad history back to the window start
		padded := make([]float64, depth, depth+1)
		for i := range padded {
			padded[i] = math.NaN()
		}
		b.series[s.Key] = padded
		b.order = append(b.order, s.Key)
	}

	b.timestamps = append(b.timestamps, ts)
	for _, key := range b.order {
		if v, ok := rec.Get(key); ok {
			b.series[key] = append(b.series[key], v)
		} else {
			b.series[key] = append(b.series[key], math.NaN())
		}
	}

	b.evictLocked()
}

// evictLocked drops the oldest entries until the window bound holds.
// Elements are copied down in place so backing arrays stay capacity-stable.
func (b *SeriesBuffer) evictLocked() {
	excess := len(b.timestamps) - b.maxPoints
	if excess <= 0 {
		return
	}
	b.timestamps = b.timestamps[:copy(b.timestamps, b.timestamps[excess:])]
	for key, vals := range b.series {
		b.series[key] = vals[:copy(vals, vals[excess:])]
	}
}

// Snapshot returns a deep copy of the current contents. The critical section
// is bounded by the copy itself; it never blocks on I/O.
func (b *SeriesBuffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		Timestamps: make([]time.Time, len(b.timestamps)),
		Order:      make([]string, len(b.order)),
		Series:     make(map[string][]float64, len(b.series)),
	}
	copy(snap.Timestamps, b.timestamps)
	copy(snap.Order, b.order)
	for key, vals := range b.series {
		dup := make([]float64, len(vals))
		copy(dup, vals)
		snap.Series[key] = dup
	}
	return snap
}

// Clear resets the buffer to its empty state, forgetting all channels.
func (b *SeriesBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timestamps = nil
	b.order = nil
	b.series = make(map[string][]float64)
}

// SetWindow changes the capacity. Shrinking evicts immediately from the
// front. A non-positive capacity is rejected and the state is unchanged.
func (b *SeriesBuffer) SetWindow(maxPoints int) error {
	if maxPoints <= 0 {
		return ErrInvalidWindow
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxPoints = maxPoints
	b.evictLocked()
	return nil
}

// Window returns the configured capacity.
func (b *SeriesBuffer) Window() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxPoints
}

// Len returns the number of samples currently held.
func (b *SeriesBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.timestamps)
}
