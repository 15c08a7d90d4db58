// Package responder reacts to recognized utterances: a switch phrase toggles
// between the start vocabulary and a generated one, and other utterances can
// be echoed back in alternating voices.
package responder

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/rbright/jarvis/internal/resource"
	"github.com/rbright/jarvis/internal/session"
)

const queueSize = 16

// Controller is the coordinator surface the responder drives.
type Controller interface {
	UsingStartLanguageModel() bool
	StartResource() resource.Language
	SwitchLanguageResource(ctx context.Context, res resource.Language) error
	SwitchVocabulary(ctx context.Context, words []string) error
	Speak(ctx context.Context, text string, voice resource.Voice) error
}

// Options configures responder behavior.
type Options struct {
	SwitchPhrase string
	Vocabulary   []string
	Echo         bool
	Primary      resource.Voice
	Secondary    resource.Voice
}

// Responder is a session.EventSink that queues utterances for a worker.
type Responder struct {
	opts   Options
	logger *slog.Logger
	queue  chan string

	echoes int
}

// New builds a responder. A blank secondary voice falls back to primary.
func New(opts Options, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Secondary.IsZero() {
		opts.Secondary = opts.Primary
	}
	opts.SwitchPhrase = normalize(opts.SwitchPhrase)
	return &Responder{opts: opts, logger: logger, queue: make(chan string, queueSize)}
}

// Publish implements session.EventSink. It never blocks; utterances arriving
// while the queue is full are dropped.
func (r *Responder) Publish(_ context.Context, event session.Event) {
	if event.Kind != session.EventUtterance {
		return
	}
	select {
	case r.queue <- event.Text:
	default:
		r.logger.Warn("responder queue full; utterance dropped", "text", event.Text)
	}
}

// Run handles queued utterances against ctrl until ctx is canceled.
func (r *Responder) Run(ctx context.Context, ctrl Controller) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text := <-r.queue:
			if err := r.handle(ctx, ctrl, text); err != nil {
				r.logger.Warn("responder action failed",
					"text", text,
					"reason", session.Reason(session.KindOf(err)),
					"error", err.Error(),
				)
			}
		}
	}
}

func (r *Responder) handle(ctx context.Context, ctrl Controller, text string) error {
	phrase := normalize(text)
	if phrase == "" {
		return nil
	}

	if r.opts.SwitchPhrase != "" && phrase == r.opts.SwitchPhrase {
		if !ctrl.UsingStartLanguageModel() {
			r.logger.Info("responder switching to start vocabulary")
			return ctrl.SwitchLanguageResource(ctx, ctrl.StartResource())
		}
		if len(r.opts.Vocabulary) == 0 {
			return errors.New("no vocabulary configured for switch phrase")
		}
		r.logger.Info("responder switching to generated vocabulary", "words", len(r.opts.Vocabulary))
		return ctrl.SwitchVocabulary(ctx, r.opts.Vocabulary)
	}

	if !r.opts.Echo {
		return nil
	}
	voice := r.opts.Primary
	if r.echoes%2 == 1 {
		voice = r.opts.Secondary
	}
	r.echoes++
	return ctrl.Speak(ctx, "You said "+phrase, voice)
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
