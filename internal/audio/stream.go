package audio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultSampleRate matches the recognizer's expected capture format.
const DefaultSampleRate = 16000

// Config selects a capture backend and device.
type Config struct {
	Backend    string
	Input      string
	Fallback   string
	SampleRate int
}

// Stream is one running capture: fixed-duration s16le mono chunks plus a live level.
type Stream interface {
	Device() Device
	Chunks() <-chan []byte
	Level() (float32, bool)
	BytesCaptured() int64
	Stop() error
}

// Opener starts a capture stream for cfg.
type Opener func(ctx context.Context, cfg Config) (Stream, Selection, error)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Opener{
		"pulse": openPulse,
	}
)

// RegisterBackend makes an additional capture backend available by name.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[strings.ToLower(name)] = open
}

// Backends lists registered capture backend names.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open starts a capture stream on the configured backend (pulse when empty).
func Open(ctx context.Context, cfg Config) (Stream, Selection, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if name == "" {
		name = "pulse"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}

	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, Selection{}, fmt.Errorf("unknown audio backend %q (available: %s)", name, strings.Join(Backends(), ", "))
	}
	return open(ctx, cfg)
}

// chunkBytes is 20ms of s16 mono audio at rate.
func chunkBytes(rate int) int {
	return rate / 50 * 2
}
