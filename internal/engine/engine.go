// Package engine implements the grammar-constrained speech recognizer on top of audio capture.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rbright/jarvis/internal/session"
)

// Decoder turns PCM chunks into recognized utterances for one listening session.
type Decoder interface {
	// Accept consumes one s16le chunk; final reports a completed utterance in text.
	Accept(pcm []byte) (text string, final bool, err error)
	Close() error
}

// DecoderConfig is what a backend needs to build a decoder bound to one grammar.
type DecoderConfig struct {
	ModelPath  string
	SampleRate int
	Grammar    []string
}

// DecoderFactory builds a decoder. Errors wrapping session.ErrResourceInvalid
// mean the grammar itself was rejected.
type DecoderFactory func(DecoderConfig) (Decoder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]DecoderFactory{
		"monitor": newMonitorDecoder,
	}
)

// Register makes a decoder backend available by name.
func Register(name string, factory DecoderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Backends lists registered decoder backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (DecoderFactory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: recognizer backend %q not built in (available: %s)",
			session.ErrEngineUnavailable, name, strings.Join(backendNamesLocked(), ", "))
	}
	return factory, nil
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// monitorDecoder recognizes nothing; it keeps capture and level metering alive.
type monitorDecoder struct{}

func newMonitorDecoder(DecoderConfig) (Decoder, error) { return monitorDecoder{}, nil }

func (monitorDecoder) Accept([]byte) (string, bool, error) { return "", false, nil }
func (monitorDecoder) Close() error                        { return nil }
