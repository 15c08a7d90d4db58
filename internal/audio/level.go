package audio

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// RMS16 returns the normalized root-mean-square level of little-endian s16 PCM.
func RMS16(pcm []byte) float32 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += s * s
	}
	return float32(math.Sqrt(sum / float64(n)))
}

// LevelTracker holds the most recent chunk level for lock-free readers.
type LevelTracker struct {
	bits  atomic.Uint32
	valid atomic.Bool
}

// Observe records the level of one PCM chunk.
func (l *LevelTracker) Observe(pcm []byte) {
	l.Set(RMS16(pcm))
}

// Set records a precomputed level.
func (l *LevelTracker) Set(level float32) {
	l.bits.Store(math.Float32bits(level))
	l.valid.Store(true)
}

// Clear marks the level unavailable.
func (l *LevelTracker) Clear() {
	l.valid.Store(false)
	l.bits.Store(0)
}

// Level returns the last observed level; ok is false before any chunk or after Clear.
func (l *LevelTracker) Level() (float32, bool) {
	if !l.valid.Load() {
		return 0, false
	}
	return math.Float32frombits(l.bits.Load()), true
}

// RMSInt16 returns the normalized root-mean-square level of decoded s16 samples.
func RMSInt16(samples []int16) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768
		sum += v * v
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
