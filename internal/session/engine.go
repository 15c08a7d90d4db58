package session

import (
	"context"

	"github.com/rbright/jarvis/internal/resource"
)

// RecognitionListener receives asynchronous recognizer callbacks.
type RecognitionListener interface {
	UtteranceRecognized(text string)
	EngineFailed(err error)
}

// Recognizer abstracts the external grammar-constrained speech recognizer.
//
// StartListening should return an error wrapping ErrResourceInvalid when the
// grammar or dictionary content is rejected; any other error is an engine fault.
type Recognizer interface {
	StartListening(ctx context.Context, dictionaryPath, grammarPath string, l RecognitionListener) error
	StopListening(ctx context.Context) error
	RawLevel() (float32, bool)
}

// Synthesizer abstracts the external voice synthesis engine.
//
// Speak returns once playback is underway and calls done exactly once when it ends.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string, done func(error)) error
	Cancel(ctx context.Context) error
	HasVoice(ctx context.Context, voice string) (bool, error)
	OutputLevel() (float32, bool)
}

// Generator builds dynamic language resources from vocabulary words.
type Generator interface {
	Generate(ctx context.Context, words []string) (resource.Language, error)
}

// PlaceholderRecognizer rejects every start; used when no backend is wired.
type PlaceholderRecognizer struct{}

func (PlaceholderRecognizer) StartListening(context.Context, string, string, RecognitionListener) error {
	return ErrEngineUnavailable
}

func (PlaceholderRecognizer) StopListening(context.Context) error { return nil }
func (PlaceholderRecognizer) RawLevel() (float32, bool)           { return 0, false }

// PlaceholderSynthesizer knows no voices; used when no backend is wired.
type PlaceholderSynthesizer struct{}

func (PlaceholderSynthesizer) Speak(context.Context, string, string, func(error)) error {
	return ErrEngineUnavailable
}

func (PlaceholderSynthesizer) Cancel(context.Context) error { return nil }

func (PlaceholderSynthesizer) HasVoice(context.Context, string) (bool, error) {
	return false, nil
}

func (PlaceholderSynthesizer) OutputLevel() (float32, bool) { return 0, false }
