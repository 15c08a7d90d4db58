package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rbright/jarvis/internal/audio"
	"github.com/rbright/jarvis/internal/session"
)

// ErrAlreadyListening is returned when StartListening is called twice without a stop.
var ErrAlreadyListening = errors.New("recognizer already listening")

// Options configures a Recognizer.
type Options struct {
	Backend   string
	ModelPath string
	Audio     audio.Config
	Logger    *slog.Logger
	// Open overrides audio.Open; used by tests.
	Open audio.Opener
}

// Recognizer feeds captured audio to a decoder bound to the active grammar.
type Recognizer struct {
	logger  *slog.Logger
	backend string
	factory DecoderFactory
	model   string
	audio   audio.Config
	open    audio.Opener

	mu     sync.Mutex
	active *listenSession
}

// listenSession is one StartListening..StopListening span.
type listenSession struct {
	stream   audio.Stream
	decoder  Decoder
	done     chan struct{}
	stopping atomic.Bool
}

// New resolves the decoder backend and returns an idle recognizer.
func New(opts Options) (*Recognizer, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = "monitor"
	}
	factory, err := lookup(backend)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	open := opts.Open
	if open == nil {
		open = audio.Open
	}
	cfg := opts.Audio
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.DefaultSampleRate
	}

	return &Recognizer{
		logger:  logger,
		backend: backend,
		factory: factory,
		model:   opts.ModelPath,
		audio:   cfg,
		open:    open,
	}, nil
}

// Backend reports the decoder backend name.
func (r *Recognizer) Backend() string {
	return r.backend
}

// StartListening validates the resource, builds a decoder, and starts capture.
func (r *Recognizer) StartListening(ctx context.Context, dictionaryPath, grammarPath string, l session.RecognitionListener) error {
	phrases, err := LoadGrammar(grammarPath)
	if err != nil {
		return err
	}
	dict, err := LoadDictionary(dictionaryPath)
	if err != nil {
		return err
	}
	if missing := dict.Missing(phrases); len(missing) > 0 {
		return fmt.Errorf("%w: no pronunciation for %s", session.ErrResourceInvalid, strings.Join(missing, ", "))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return ErrAlreadyListening
	}

	decoder, err := r.factory(DecoderConfig{
		ModelPath:  r.model,
		SampleRate: r.audio.SampleRate,
		Grammar:    phrases,
	})
	if err != nil {
		if errors.Is(err, session.ErrResourceInvalid) {
			return err
		}
		return fmt.Errorf("create %s decoder: %w", r.backend, err)
	}

	stream, selection, err := r.open(context.WithoutCancel(ctx), r.audio)
	if err != nil {
		_ = decoder.Close()
		return fmt.Errorf("open audio capture: %w", err)
	}
	if selection.Warning != "" {
		r.logger.Warn(selection.Warning)
	}
	r.logger.Debug("recognizer listening",
		"backend", r.backend,
		"device", selection.Device.ID,
		"phrases", len(phrases),
	)

	ls := &listenSession{stream: stream, decoder: decoder, done: make(chan struct{})}
	r.active = ls
	go r.decodeLoop(ls, l)
	return nil
}

// StopListening stops capture and releases the decoder. Stopping an idle recognizer is a no-op.
func (r *Recognizer) StopListening(context.Context) error {
	r.mu.Lock()
	ls := r.active
	r.active = nil
	r.mu.Unlock()

	if ls == nil {
		return nil
	}
	ls.stopping.Store(true)
	stopErr := ls.stream.Stop()
	<-ls.done
	closeErr := ls.decoder.Close()
	return errors.Join(stopErr, closeErr)
}

// RawLevel returns the capture level of the current session.
func (r *Recognizer) RawLevel() (float32, bool) {
	r.mu.Lock()
	ls := r.active
	r.mu.Unlock()
	if ls == nil {
		return 0, false
	}
	return ls.stream.Level()
}

func (r *Recognizer) decodeLoop(ls *listenSession, l session.RecognitionListener) {
	defer close(ls.done)

	for chunk := range ls.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		text, final, err := ls.decoder.Accept(chunk)
		if err != nil {
			if !ls.stopping.Load() {
				l.EngineFailed(fmt.Errorf("decode audio: %w", err))
			}
			_ = ls.stream.Stop()
			// Drain so Stop's flush never blocks.
			for range ls.stream.Chunks() {
			}
			return
		}
		text = strings.TrimSpace(text)
		if final && text != "" {
			r.logger.Debug("utterance recognized", "text", text)
			l.UtteranceRecognized(text)
		}
	}

	if !ls.stopping.Load() {
		l.EngineFailed(errors.New("audio capture ended unexpectedly"))
	}
}
