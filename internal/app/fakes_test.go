package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/jarvis/internal/config"
	"github.com/rbright/jarvis/internal/session"
)

type fakeRecognizer struct {
	mu       sync.Mutex
	listener session.RecognitionListener
}

func (f *fakeRecognizer) StartListening(_ context.Context, _, _ string, l session.RecognitionListener) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
	return nil
}

func (f *fakeRecognizer) StopListening(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = nil
	return nil
}

func (f *fakeRecognizer) RawLevel() (float32, bool) { return 0.1, true }

// fakeSynth finishes every utterance shortly after it starts.
type fakeSynth struct{}

func (fakeSynth) Speak(_ context.Context, _, _ string, done func(error)) error {
	go func() {
		time.Sleep(20 * time.Millisecond)
		done(nil)
	}()
	return nil
}

func (fakeSynth) Cancel(context.Context) error { return nil }

func (fakeSynth) HasVoice(_ context.Context, voice string) (bool, error) {
	return voice == "kal" || voice == "slt", nil
}

func (fakeSynth) Voices(context.Context) ([]string, error) { return []string{"kal", "slt"}, nil }

func (fakeSynth) OutputLevel() (float32, bool) { return 0.2, true }

func fakeEngines(rec *fakeRecognizer) EngineFactory {
	return func(config.Config, *slog.Logger) (session.Recognizer, session.Synthesizer, error) {
		return rec, fakeSynth{}, nil
	}
}

// holdingSynth keeps speaking until Cancel is called.
type holdingSynth struct {
	fakeSynth
	once      sync.Once
	cancelled chan struct{}
}

func newHoldingSynth() *holdingSynth {
	return &holdingSynth{cancelled: make(chan struct{})}
}

func (h *holdingSynth) Speak(_ context.Context, _, _ string, done func(error)) error {
	go func() {
		<-h.cancelled
		done(nil)
	}()
	return nil
}

func (h *holdingSynth) Cancel(context.Context) error {
	h.once.Do(func() { close(h.cancelled) })
	return nil
}
