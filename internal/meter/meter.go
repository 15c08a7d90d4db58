// Package meter samples audio levels on a fixed cadence and tracks a decaying peak.
package meter

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultPeriod is the tick cadence used when none is configured (10/s).
	DefaultPeriod = 100 * time.Millisecond
	// DefaultDecay is the fraction of the peak-to-current gap removed per tick.
	DefaultDecay = 0.05
)

// Source yields the instantaneous raw level in [0, 1].
// ok=false means no reading is available right now.
type Source interface {
	RawLevel() (level float32, ok bool)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (float32, bool)

func (f SourceFunc) RawLevel() (float32, bool) { return f() }

// Sample is one meter reading.
type Sample struct {
	Current float32   `json:"current"`
	Peak    float32   `json:"peak"`
	At      time.Time `json:"at"`
}

// Options tune meter behavior. Zero values select defaults.
type Options struct {
	Decay float64
	// DisablePeak makes Peak mirror Current.
	DisablePeak bool
	Now         func() time.Time
}

// Meter keeps the latest sample behind an atomic pointer: Tick is the only
// writer path and Snapshot never blocks on it.
type Meter struct {
	source    Source
	decay     float32
	trackPeak bool
	now       func() time.Time

	writeMu sync.Mutex
	latest  atomic.Pointer[Sample]
}

// New builds a meter reading from source.
func New(source Source, opts Options) *Meter {
	decay := opts.Decay
	if decay <= 0 || decay > 1 {
		decay = DefaultDecay
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if source == nil {
		source = SourceFunc(func() (float32, bool) { return 0, false })
	}

	m := &Meter{
		source:    source,
		decay:     float32(decay),
		trackPeak: !opts.DisablePeak,
		now:       now,
	}
	m.latest.Store(&Sample{})
	return m
}

// Tick pulls one raw reading and publishes the updated sample.
// When the source has nothing to offer the previous sample is returned unchanged.
// The source is read before the write lock so it may take its own locks freely.
func (m *Meter) Tick() Sample {
	raw, ok := m.source.RawLevel()

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	prev := *m.latest.Load()
	if !ok || math.IsNaN(float64(raw)) {
		return prev
	}
	raw = clamp(raw)

	next := Sample{Current: raw, Peak: raw, At: m.now()}
	if m.trackPeak && raw < prev.Peak {
		next.Peak = prev.Peak - (prev.Peak-raw)*m.decay
		if next.Peak < raw {
			next.Peak = raw
		}
	}

	m.latest.Store(&next)
	return next
}

// Reset zeroes current and peak.
func (m *Meter) Reset() {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.latest.Store(&Sample{At: m.now()})
}

// Snapshot returns the latest published sample.
func (m *Meter) Snapshot() Sample {
	return *m.latest.Load()
}

// Run ticks every period until ctx is done. onSample may be nil.
func (m *Meter) Run(ctx context.Context, period time.Duration, onSample func(Sample)) {
	if period <= 0 {
		period = DefaultPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample := m.Tick()
			if onSample != nil {
				onSample(sample)
			}
		}
	}
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
